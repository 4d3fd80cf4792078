package event

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrDuplicateEvent is returned when the durable layer's identity-key
	// backstop fires: the event was already recorded, typically by a
	// concurrent request that won the insert race. Not retryable.
	ErrDuplicateEvent = errors.New("event already recorded")

	// ErrStoreUnavailable marks transient durable-store failures. Safe for
	// the caller to retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError carries every defect found in a payload. It is produced
// before any durable or cache I/O is attempted.
type ValidationError struct {
	Defects []string
}

func (e *ValidationError) Error() string {
	return "invalid event data: " + strings.Join(e.Defects, "; ")
}

// WrapStoreErr maps transport-level failures (timeouts, connection errors)
// to ErrStoreUnavailable and passes everything else through for the generic
// handler mapping.
func WrapStoreErr(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
