package genchain

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractJSON strips markdown code fences and surrounding prose from
// model output, returning the outermost JSON object or array. Models
// frequently wrap JSON in ```json fences or add a leading sentence;
// both are tolerated.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)

	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if j := strings.Index(rest, "\n"); j >= 0 {
			rest = rest[j+1:] // drop the fence language tag line
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		text = strings.TrimSpace(rest)
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}

	open := text[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text[start:]
}

// DecodeBatch parses generated text into raw persona records. Accepts
// either a bare array or an object with a "personas" key.
func DecodeBatch(text string) ([]map[string]any, error) {
	doc := ExtractJSON(text)

	var arr []map[string]any
	if err := json.Unmarshal([]byte(doc), &arr); err == nil {
		return arr, nil
	}

	var wrapper struct {
		Personas []map[string]any `json:"personas"`
	}
	if err := json.Unmarshal([]byte(doc), &wrapper); err != nil {
		return nil, eris.Wrap(err, "genchain: decode batch")
	}
	if wrapper.Personas == nil {
		return nil, eris.New("genchain: no personas array in output")
	}
	return wrapper.Personas, nil
}
