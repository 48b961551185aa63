package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"breakout-scanner/internal/types"
)

// classifyTransport maps a transport-level error onto the failure taxonomy.
func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", types.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", types.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", types.ErrNetwork, err)
}

// classifyStatus maps a non-200 HTTP status onto the failure taxonomy.
func classifyStatus(status int, body []byte) error {
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d", types.ErrRateLimited, status)
	}
	return fmt.Errorf("%w: status %d, body: %s", types.ErrNetwork, status, truncate(body, 200))
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
