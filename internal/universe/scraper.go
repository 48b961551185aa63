package universe

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"breakout-scanner/internal/logger"
)

// tickerPattern keeps obvious junk (units, warrants, garbage cells) out of
// the scraped universe.
var tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

// ScrapeTarget describes one most-active page and where symbols sit in it.
type ScrapeTarget struct {
	Name        string
	URL         string
	RowSelector string // CSS selector for one result row
	CellFinder  string // goquery selector for the symbol cell inside a row
}

// defaultTargets lists the pages tried in order until one yields symbols.
func defaultTargets() []ScrapeTarget {
	return []ScrapeTarget{
		{
			Name:        "StockAnalysis",
			URL:         "https://stockanalysis.com/markets/active/",
			RowSelector: "table tbody tr",
			CellFinder:  "td a",
		},
		{
			Name:        "YahooMostActive",
			URL:         "https://finance.yahoo.com/markets/stocks/most-active/",
			RowSelector: "table tbody tr",
			CellFinder:  "td span.symbol, td a",
		},
	}
}

// Scraper pulls the day's most-active tickers to top up the scan universe.
type Scraper struct {
	targets []ScrapeTarget
	timeout time.Duration
}

// NewScraper creates a scraper with the default page targets.
func NewScraper(timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Scraper{targets: defaultTargets(), timeout: timeout}
}

// MostActive returns up to limit symbols from the first target that yields
// any.
func (s *Scraper) MostActive(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	var lastErr error
	for _, target := range s.targets {
		symbols, err := s.scrapeTarget(ctx, target, limit)
		if err != nil {
			logger.Warn(ctx, "Most-active scrape failed", "target", target.Name, "error", err)
			lastErr = err
			continue
		}
		if len(symbols) > 0 {
			logger.Info(ctx, "Scraped most-active tickers", "target", target.Name, "count", len(symbols))
			return symbols, nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no symbols found on any target")
	}
	return nil, lastErr
}

func (s *Scraper) scrapeTarget(ctx context.Context, target ScrapeTarget, limit int) ([]string, error) {
	symbols := []string{}
	seen := make(map[string]bool)

	c := colly.NewCollector(
		colly.AllowedDomains(getDomain(target.URL)),
		colly.MaxDepth(1),
		colly.Async(false),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	})

	c.OnHTML(target.RowSelector, func(e *colly.HTMLElement) {
		if len(symbols) >= limit {
			return
		}
		symbol := extractSymbol(e.DOM, target.CellFinder)
		if symbol == "" || seen[symbol] {
			return
		}
		seen[symbol] = true
		symbols = append(symbols, symbol)
	})

	var scrapeErr error
	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = err
	})

	if err := c.Visit(target.URL); err != nil {
		return nil, err
	}
	c.Wait()

	if scrapeErr != nil && len(symbols) == 0 {
		return nil, scrapeErr
	}
	return symbols, nil
}

// extractSymbol pulls the first cell matching finder out of a row and
// validates it looks like a ticker.
func extractSymbol(row *goquery.Selection, finder string) string {
	text := strings.TrimSpace(row.Find(finder).First().Text())
	// pages render symbols like "AAPL" or "AAPL - Apple Inc."
	if idx := strings.IndexAny(text, " -"); idx > 0 {
		text = text[:idx]
	}
	text = strings.ToUpper(text)
	if !tickerPattern.MatchString(text) {
		return ""
	}
	return text
}

func getDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
