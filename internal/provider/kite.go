package provider

import (
	"context"
	"fmt"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"breakout-scanner/internal/interfaces"
	"breakout-scanner/internal/types"
)

// Kite fetches daily series and quotes through the Zerodha Kite Connect
// API. Historical data needs an instrument token per ticker; tokens come
// from configuration since the full instrument dump is large.
type Kite struct {
	kc       *kiteconnect.Client
	exchange string
	tokens   map[string]int
}

var _ interfaces.PriceProvider = (*Kite)(nil)

func NewKite(apiKey, accessToken, exchange string, tokens map[string]int) *Kite {
	kc := kiteconnect.New(apiKey)
	kc.SetAccessToken(accessToken)
	if exchange == "" {
		exchange = "NSE"
	}
	return &Kite{kc: kc, exchange: exchange, tokens: tokens}
}

func (k *Kite) Name() string { return "kite" }

func (k *Kite) instrument(ticker string) string {
	return k.exchange + ":" + ticker
}

func (k *Kite) FetchDailySeries(ctx context.Context, ticker string) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyTransport(err)
	}
	token, ok := k.tokens[ticker]
	if !ok {
		return nil, fmt.Errorf("%w: no instrument token for %s", types.ErrValidation, ticker)
	}

	to := time.Now()
	from := to.AddDate(0, -1, 0)
	data, err := k.kc.GetHistoricalData(token, "day", from, to, false, false)
	if err != nil {
		return nil, classifyTransport(err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no historical data for %s", types.ErrMalformed, ticker)
	}

	bars := make([]types.Bar, 0, len(data))
	for _, d := range data {
		bars = append(bars, types.Bar{
			Date:  d.Date.Time,
			Open:  d.Open,
			High:  d.High,
			Low:   d.Low,
			Close: d.Close,
			Vol:   float64(d.Volume),
		})
	}
	return bars, nil
}

func (k *Kite) FetchQuote(ctx context.Context, ticker string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, classifyTransport(err)
	}
	inst := k.instrument(ticker)
	quotes, err := k.kc.GetLTP(inst)
	if err != nil {
		return 0, classifyTransport(err)
	}
	q, ok := quotes[inst]
	if !ok {
		return 0, fmt.Errorf("%w: no LTP for %s", types.ErrMalformed, ticker)
	}
	return q.LastPrice, nil
}
