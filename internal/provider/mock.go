package provider

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"breakout-scanner/internal/interfaces"
	"breakout-scanner/internal/types"
)

// Mock returns controllable fixed data for development and testing.
// If Series or Quotes are unset for a ticker, plausible bars are generated
// around Price.
type Mock struct {
	Price  float64
	Series map[string][]types.Bar
	Quotes map[string]float64
	Err    error

	mu    sync.Mutex
	calls map[string]int
}

var _ interfaces.PriceProvider = (*Mock)(nil)

func NewMock(price float64) *Mock {
	return &Mock{Price: price, calls: make(map[string]int)}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) record(ticker string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[ticker]++
}

// Calls reports how many fetches were issued for ticker, for test
// assertions about cache short-circuiting.
func (m *Mock) Calls(ticker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[ticker]
}

func (m *Mock) FetchDailySeries(_ context.Context, ticker string) ([]types.Bar, error) {
	m.record(ticker)
	if m.Err != nil {
		return nil, m.Err
	}
	if s, ok := m.Series[ticker]; ok {
		return s, nil
	}
	return generateBars(m.Price, 22), nil
}

func (m *Mock) FetchQuote(_ context.Context, ticker string) (float64, error) {
	m.record(ticker)
	if m.Err != nil {
		return 0, m.Err
	}
	if q, ok := m.Quotes[ticker]; ok {
		return q, nil
	}
	return m.Price, nil
}

func generateBars(basePrice float64, count int) []types.Bar {
	bars := make([]types.Bar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = types.Bar{
			Date:  time.Now().AddDate(0, 0, -(count - i)),
			Open:  p * 0.999,
			High:  p * (1.005 + rand.Float64()*0.01),
			Low:   p * 0.995,
			Close: p,
			Vol:   10_000_000,
		}
	}
	return bars
}
