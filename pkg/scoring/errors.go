package scoring

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// UpstreamError reports a failed exchange with the scoring service. Status is
// zero when no response was received.
type UpstreamError struct {
	Op     string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("scoring %s: upstream status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("scoring %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether the call ran past its deadline.
func (e *UpstreamError) IsTimeout() bool {
	if e.Err == nil {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

func IsUpstreamError(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream)
}

func IsTimeout(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream) && upstream.IsTimeout()
}
