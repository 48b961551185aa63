package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"breakout-scanner/internal/interfaces"
	"breakout-scanner/internal/types"
)

// Yahoo fetches daily series from the Yahoo Finance public chart API.
type Yahoo struct {
	client  *http.Client
	baseURL string
}

var _ interfaces.PriceProvider = (*Yahoo)(nil)

// NewYahoo creates a Yahoo provider with optional proxy support.
func NewYahoo(proxyURL string) *Yahoo {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &Yahoo{
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		baseURL: "https://query1.finance.yahoo.com",
	}
}

func (y *Yahoo) Name() string { return "yahoo" }

// yahooChart is the response structure from the Yahoo Finance chart API.
// Quote arrays hold interface{} because the API emits nulls for holidays.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func (y *Yahoo) fetchChart(ctx context.Context, ticker, interval, rng string) ([]types.Bar, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		y.baseURL, url.PathEscape(ticker), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, body)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("%w: decode chart: %v", types.ErrMalformed, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("%w: api error %s: %s", types.ErrMalformed,
			chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("%w: no data returned for %s", types.ErrMalformed, ticker)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: no quote data for %s", types.ErrMalformed, ticker)
	}
	quote := result.Indicators.Quote[0]

	// The API emits ragged arrays under load; bound the walk by the
	// shortest price array so a short open/high/low can never panic.
	n := len(result.Timestamp)
	for _, arr := range [][]interface{}{quote.Open, quote.High, quote.Low, quote.Close} {
		if len(arr) < n {
			n = len(arr)
		}
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: ragged quote arrays for %s", types.ErrMalformed, ticker)
	}

	bars := make([]types.Bar, 0, n)
	for i := 0; i < n; i++ {
		ts := result.Timestamp[i]
		o := toFloat(quote.Open[i])
		h := toFloat(quote.High[i])
		l := toFloat(quote.Low[i])
		c := toFloat(quote.Close[i])
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // null bars (holidays etc.)
		}
		var vol float64
		if i < len(quote.Volume) {
			vol = toFloat(quote.Volume[i])
		}
		bars = append(bars, types.Bar{
			Date:  time.Unix(ts, 0),
			Open:  o,
			High:  h,
			Low:   l,
			Close: c,
			Vol:   vol,
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// FetchDailySeries returns roughly a month of daily bars, enough for the
// prior-day + current comparison with slack for holidays.
func (y *Yahoo) FetchDailySeries(ctx context.Context, ticker string) ([]types.Bar, error) {
	return y.fetchChart(ctx, ticker, "1d", "1mo")
}

func (y *Yahoo) FetchQuote(ctx context.Context, ticker string) (float64, error) {
	bars, err := y.fetchChart(ctx, ticker, "1d", "1d")
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("%w: no price data for %s", types.ErrMalformed, ticker)
	}
	return bars[len(bars)-1].Close, nil
}
