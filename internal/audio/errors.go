package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

var (
	ErrNoAudioStream = errors.New("no audio stream")
	ErrSilent        = errors.New("audio is silent")
	ErrTooShort      = errors.New("audio is shorter than one second")
	ErrNoPeriodicity = errors.New("no periodicity found in tempo range")
)

type AcquisitionError struct {
	Reference string
	Err       error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire audio %q: %v", e.Reference, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

type AnalysisError struct {
	Path string
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyze tempo of %s: %v", e.Path, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// HTTPStatusError is returned for non-2xx download responses.
type HTTPStatusError struct {
	URL  string
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

// IsTransient reports whether retrying the acquisition may succeed.
// Cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == 429
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
