package interfaces

import (
	"context"

	"breakout-scanner/internal/events"
)

// Notifier delivers core events somewhere a human will see them.
// Fire-and-forget: the core does not care how delivery happens and a
// delivery failure never propagates into scan or tracking logic.
type Notifier interface {
	Notify(ctx context.Context, event events.Event) error
}
