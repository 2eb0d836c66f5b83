// Package gemini wraps the Google generative AI SDK behind the text
// generation surface the generation chain needs.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
)

const defaultModel = "gemini-2.5-flash-lite"

// Client generates text with a Gemini model.
type Client interface {
	// Generate runs one prompt and returns the concatenated text parts
	// of the first candidate.
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateJSON runs one prompt with a JSON response MIME type so
	// the model returns a bare JSON document.
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	Close() error
}

// Option configures the client.
type Option func(*sdkClient)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *sdkClient) {
		c.modelName = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(c *sdkClient) {
		c.temperature = &t
	}
}

type sdkClient struct {
	client      *genai.Client
	modelName   string
	temperature *float32
}

// NewClient creates a Gemini client. The caller owns the returned
// client and must Close it.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	c := &sdkClient{modelName: defaultModel}
	for _, o := range opts {
		o(c)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	c.client = client
	return c, nil
}

func (c *sdkClient) Close() error {
	return c.client.Close()
}

func (c *sdkClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, "")
}

func (c *sdkClient) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, "application/json")
}

func (c *sdkClient) generate(ctx context.Context, prompt, mimeType string) (string, error) {
	model := c.client.GenerativeModel(c.modelName)
	model.SetMaxOutputTokens(4096)
	if c.temperature != nil {
		model.SetTemperature(*c.temperature)
	}
	if mimeType != "" {
		model.ResponseMIMEType = mimeType
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", eris.Wrap(err, "gemini: generate content")
	}

	text := firstCandidateText(resp)
	if text == "" {
		return "", eris.New("gemini: no content generated")
	}
	return text, nil
}

// firstCandidateText concatenates the text parts of the first candidate.
func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		} else {
			sb.WriteString(fmt.Sprintf("%v", part))
		}
	}
	return strings.TrimSpace(sb.String())
}
