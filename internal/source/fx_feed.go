package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"landedcost/internal/service"
	"landedcost/pkg/money"

	"github.com/shopspring/decimal"
)

// FxFeed fetches a generic daily-rate JSON document of the shape
// {"base":"USD","as_of":"2026-01-02","rates":{"EUR":"0.91", ...}}.
// Per-provider parsing beyond this shape belongs to external adapters.
type FxFeed struct {
	name   string
	url    string
	client *http.Client
}

func NewFxFeed(name, url string) *FxFeed {
	return &FxFeed{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: 20 * time.Second},
	}
}

func (f *FxFeed) Name() string { return f.name }

type fxFeedDoc struct {
	Base  string            `json:"base"`
	AsOf  string            `json:"as_of"`
	Rates map[string]string `json:"rates"`
}

func (f *FxFeed) Fetch(ctx context.Context) (service.FxFetch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return service.FxFetch{}, err
	}
	res, err := f.client.Do(req)
	if err != nil {
		return service.FxFetch{}, fmt.Errorf("fetch %s: %w", f.url, err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return service.FxFetch{}, fmt.Errorf("fetch %s: unexpected status %d", f.url, res.StatusCode)
	}

	var doc fxFeedDoc
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return service.FxFetch{}, fmt.Errorf("decode fx feed: %w", err)
	}

	asOf, err := money.ParseDate(doc.AsOf)
	if err != nil {
		return service.FxFetch{}, err
	}

	rates := make(map[string]decimal.Decimal, len(doc.Rates))
	for quote, raw := range doc.Rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return service.FxFetch{}, fmt.Errorf("invalid rate for %s: %w", quote, err)
		}
		rates[quote] = rate
	}

	return service.FxFetch{
		Base:      doc.Base,
		AsOf:      asOf,
		Rates:     rates,
		SourceURL: f.url,
	}, nil
}
