// Package notifier delivers core events to humans. The core publishes on
// the event bus and does not care how delivery happens; notifiers are bus
// subscribers and their failures never propagate back into scan or
// tracking logic.
package notifier

import (
	"context"

	"breakout-scanner/internal/events"
	"breakout-scanner/internal/interfaces"
	"breakout-scanner/internal/logger"
)

// Attach subscribes a notifier to the externally interesting event types.
func Attach(bus *events.Bus, n interfaces.Notifier) {
	deliver := func(ev events.Event) {
		if err := n.Notify(context.Background(), ev); err != nil {
			logger.Warn(context.Background(), "Notification delivery failed",
				"event_type", string(ev.Type), "error", err)
		}
	}
	bus.Subscribe(events.BreakoutDetected, deliver)
	bus.Subscribe(events.ScanCompleted, deliver)
	bus.Subscribe(events.ScanError, deliver)
}

// Noop swallows every event, for runs where no delivery channel is
// configured.
type Noop struct{}

var _ interfaces.Notifier = Noop{}

func (Noop) Notify(context.Context, events.Event) error { return nil }

// Log writes event summaries to the structured log, the default delivery
// channel when no Telegram credentials are configured.
type Log struct{}

var _ interfaces.Notifier = Log{}

func (Log) Notify(ctx context.Context, ev events.Event) error {
	logger.Info(ctx, "Event", "event_type", string(ev.Type), "source", ev.Source, "data", ev.Data)
	return nil
}
