package task

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/leadgen-engine/internal/config"
	"github.com/sells-group/leadgen-engine/internal/model"
	"github.com/sells-group/leadgen-engine/internal/store"
	"github.com/sells-group/leadgen-engine/pkg/jina"
	"github.com/sells-group/leadgen-engine/pkg/places"
)

// dmSearchTerms drive the decision-maker web lookup per business.
const dmSearchTerms = "CEO OR founder OR managing director"

// discoveryTask finds real businesses per country and industry via
// Places text search, then looks up decision makers for the strongest
// hits. A single failed country degrades the result set; the task only
// fails when every country lookup fails.
type discoveryTask struct {
	places  places.Client
	jina    jina.Client
	store   store.Store
	limiter *semaphore.Weighted
	cfg     config.DiscoveryConfig
}

func (t *discoveryTask) Key() model.TaskKey { return model.TaskBusinessDiscovery }
func (t *discoveryTask) Essential() bool    { return true }
func (t *discoveryTask) Weight() int        { return weightFor(model.TaskBusinessDiscovery) }

func (t *discoveryTask) Run(ctx context.Context, sctx model.SearchContext) error {
	if len(sctx.Countries) == 0 {
		return eris.New("task: discovery requires at least one country")
	}

	industries := sctx.Industries
	if n := t.cfg.MaxIndustries; n > 0 && len(industries) > n {
		industries = industries[:n]
	}
	if len(industries) == 0 {
		industries = []string{sctx.ProductService}
	}

	var (
		mu         sync.Mutex
		businesses []model.Business
		failures   int
		attempts   int
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(3)

	for _, country := range sctx.Countries {
		for _, industry := range industries {
			attempts++
			g.Go(func() error {
				found, err := t.lookupCountry(gCtx, country, industry, sctx)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures++
					zap.L().Warn("discovery lookup failed",
						zap.String("search_id", sctx.SearchID),
						zap.String("country", country),
						zap.String("industry", industry),
						zap.Error(err))
					return nil
				}
				businesses = append(businesses, found...)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if failures == attempts {
		return eris.Errorf("task: discovery failed for all %d country/industry lookups", attempts)
	}

	businesses = dedupeBusinesses(businesses)
	if len(businesses) == 0 {
		return eris.New("task: discovery found no businesses")
	}

	inserted, err := t.store.InsertBusinesses(ctx, businesses)
	if err != nil {
		return eris.Wrap(err, "task: persist businesses")
	}
	zap.L().Info("businesses persisted",
		zap.String("search_id", sctx.SearchID),
		zap.Int("inserted", inserted))

	dms := t.lookupDecisionMakers(ctx, sctx, businesses)
	if len(dms) > 0 {
		if _, err := t.store.InsertDecisionMakers(ctx, dms); err != nil {
			return eris.Wrap(err, "task: persist decision makers")
		}
	}
	return nil
}

// lookupCountry runs one Places text search for an industry in a country.
func (t *discoveryTask) lookupCountry(ctx context.Context, country, industry string, sctx model.SearchContext) ([]model.Business, error) {
	release, err := acquire(ctx, t.limiter)
	if err != nil {
		return nil, err
	}
	defer release()

	lctx, cancel := context.WithTimeout(ctx, t.cfg.LookupTimeout())
	defer cancel()

	query := fmt.Sprintf("%s companies in %s", industry, country)
	if sctx.SearchType == model.SearchTypeSupplier {
		query = fmt.Sprintf("%s suppliers in %s", industry, country)
	}

	opts := []places.SearchOption{places.WithMaxResults(t.cfg.ResultsPerQuery)}
	if code := regionCode(country); code != "" {
		opts = append(opts, places.WithRegionCode(code))
	}

	resp, err := t.places.TextSearch(lctx, query, opts...)
	if err != nil {
		return nil, err
	}

	out := make([]model.Business, 0, len(resp.Places))
	for _, p := range resp.Places {
		if p.DisplayName.Text == "" {
			continue
		}
		out = append(out, model.Business{
			SearchID:    sctx.SearchID,
			Name:        p.DisplayName.Text,
			Address:     p.FormattedAddress,
			Phone:       p.NationalPhoneNumber,
			Website:     p.WebsiteURI,
			Country:     country,
			Industry:    industry,
			Rating:      p.Rating,
			Departments: inferDepartments(sctx.SearchType),
			Products:    []string{sctx.ProductService},
			Activities:  inferActivities(p.PrimaryTypeDisplayName.Text, industry),
		})
	}
	return out, nil
}

// lookupDecisionMakers searches the web for leadership contacts of the
// strongest discovered businesses. Lookup failures are tolerated.
func (t *discoveryTask) lookupDecisionMakers(ctx context.Context, sctx model.SearchContext, businesses []model.Business) []model.DecisionMaker {
	limit := t.cfg.DMLookupLimit
	if limit <= 0 || limit > len(businesses) {
		limit = len(businesses)
	}

	var dms []model.DecisionMaker
	for _, b := range businesses[:limit] {
		release, aerr := acquire(ctx, t.limiter)
		if aerr != nil {
			break
		}
		lctx, cancel := context.WithTimeout(ctx, t.cfg.LookupTimeout())
		query := fmt.Sprintf("%q %s", b.Name, dmSearchTerms)

		opts := []jina.SearchOption{}
		if code := regionCode(b.Country); code != "" {
			opts = append(opts, jina.WithCountry(code))
		}

		resp, err := t.jina.Search(lctx, query, opts...)
		cancel()
		release()
		if err != nil {
			zap.L().Debug("decision-maker lookup failed",
				zap.String("business", b.Name),
				zap.Error(err))
			continue
		}

		for _, r := range resp.Data {
			if r.Title == "" {
				continue
			}
			dms = append(dms, model.DecisionMaker{
				SearchID:     sctx.SearchID,
				BusinessName: b.Name,
				Name:         contactName(r.Title),
				Title:        r.Title,
				ProfileURL:   r.URL,
				Snippet:      r.Description,
				Country:      b.Country,
			})
			break // one contact per business is enough
		}
	}
	return dms
}

// dedupeBusinesses drops later entries sharing a normalized name.
func dedupeBusinesses(in []model.Business) []model.Business {
	seen := make(map[string]bool, len(in))
	out := make([]model.Business, 0, len(in))
	for _, b := range in {
		key := strings.Join(strings.Fields(strings.ToLower(b.Name)), " ")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b)
	}
	return out
}

// contactName extracts the leading name segment from a search result
// title such as "Jane Doe - CEO - Acme | LinkedIn".
func contactName(title string) string {
	for _, sep := range []string{" - ", " – ", " | ", ", "} {
		if i := strings.Index(title, sep); i > 0 {
			return strings.TrimSpace(title[:i])
		}
	}
	return strings.TrimSpace(title)
}

func inferDepartments(st model.SearchType) []string {
	if st == model.SearchTypeSupplier {
		return []string{"Procurement", "Operations"}
	}
	return []string{"Sales", "Business Development"}
}

func inferActivities(primaryType, industry string) []string {
	var out []string
	if primaryType != "" {
		out = append(out, primaryType)
	}
	if industry != "" && !strings.EqualFold(primaryType, industry) {
		out = append(out, industry)
	}
	return out
}
