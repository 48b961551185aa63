package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"breakout-scanner/internal/events"
	"breakout-scanner/internal/interfaces"
	"breakout-scanner/internal/types"
)

// Telegram sends event summaries via the Telegram Bot API.
type Telegram struct {
	botToken string
	chatID   string
	client   *http.Client
}

var _ interfaces.Notifier = (*Telegram)(nil)

// NewTelegram creates a notifier with optional proxy support.
func NewTelegram(botToken, chatID, proxyURL string) *Telegram {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (t *Telegram) Notify(ctx context.Context, ev events.Event) error {
	text := format(ev)
	if text == "" {
		return nil
	}
	return t.send(ctx, text)
}

func format(ev events.Event) string {
	switch ev.Type {
	case events.BreakoutDetected:
		alert, ok := ev.Data.(types.BreakoutAlert)
		if !ok {
			return ""
		}
		return fmt.Sprintf("🚀 <b>%s</b> broke out\nentry %.2f → now %.2f (%+.2f%%)",
			alert.Ticker, alert.EntryPrice, alert.CurrentPrice, alert.GainPercent)
	case events.ScanCompleted:
		res, ok := ev.Data.(types.ScanResult)
		if !ok {
			return ""
		}
		return fmt.Sprintf("📊 Scan finished: %d scanned, %d breakout, %d waiting, %d errors",
			res.TotalScanned, len(res.Breakouts), len(res.Waiting), res.ErrorCount)
	case events.ScanError:
		msg, _ := ev.Data.(string)
		return fmt.Sprintf("⚠️ Scan failed: %s", msg)
	default:
		return ""
	}
}

func (t *Telegram) send(ctx context.Context, text string) error {
	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
