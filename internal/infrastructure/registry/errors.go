package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrEmptyResponse is returned when a page body is missing or JSON null.
	ErrEmptyResponse = errors.New("registry: empty response")
	// ErrDecode marks a body that is not a page object.
	ErrDecode = errors.New("registry: malformed response")
	// ErrStatus marks a non-success HTTP status.
	ErrStatus = errors.New("registry: unexpected status")
	// ErrBaseURL marks an unusable endpoint at session open.
	ErrBaseURL = errors.New("registry: invalid base url")
)

// Failure kinds used in logs and metrics labels.
const (
	KindTimeout   = "timeout"
	KindHTTP      = "http"
	KindTransport = "transport"
	KindDecode    = "decode"
	KindCanceled  = "canceled"
)

// PageError records where and how pagination for a date stopped.
type PageError struct {
	Page int
	Kind string
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d (%s): %v", e.Page, e.Kind, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

func classify(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, ErrStatus):
		return KindHTTP
	case errors.Is(err, ErrEmptyResponse), errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case ctx.Err() != nil:
		return KindCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindTransport
}
