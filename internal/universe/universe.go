// Package universe resolves the ticker list a scan evaluates: a static
// configured list, optionally topped up by scraping a most-active page.
package universe

import (
	"context"
	"strings"

	"breakout-scanner/internal/logger"
)

// Source resolves the current universe.
type Source interface {
	Tickers(ctx context.Context) []string
}

// Static is a fixed, configured universe.
type Static struct {
	List []string
}

func (s Static) Tickers(_ context.Context) []string {
	out := make([]string, 0, len(s.List))
	for _, t := range s.List {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Combined merges a static base list with a dynamic source, deduplicated,
// static tickers first. A dynamic failure degrades to the static list.
type Combined struct {
	Static  Static
	Dynamic *Scraper
	Limit   int
}

func (c Combined) Tickers(ctx context.Context) []string {
	seen := make(map[string]bool)
	out := c.Static.Tickers(ctx)
	for _, t := range out {
		seen[t] = true
	}

	if c.Dynamic != nil {
		dynamic, err := c.Dynamic.MostActive(ctx, c.Limit)
		if err != nil {
			logger.Warn(ctx, "Dynamic universe unavailable, using static list", "error", err)
			return out
		}
		for _, t := range dynamic {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
