package ai

import (
	"context"
	"errors"
	"net"
)

var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// Classify maps transport-level failures from an interpretation call onto
// the package sentinels so callers can dispatch with errors.Is. Errors that
// are already descriptive pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrInferenceTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return errors.Join(ErrInferenceTimeout, err)
		}
		return errors.Join(ErrProviderUnavailable, err)
	}
	return err
}
