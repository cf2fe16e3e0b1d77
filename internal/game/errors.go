package game

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned by Query when no reply arrived within the timeout.
	// It is expected while a server is offline and the caller should simply try again later.
	ErrTimeout = errors.New("server did not respond in time")

	// ErrClosed is returned by Query after Close.
	ErrClosed = errors.New("client closed")

	// ErrTruncated reports a reply shorter than its header or length prefix claims.
	ErrTruncated = errors.New("truncated datagram")

	// ErrTooFewFields reports a status payload with fewer than the required fields.
	ErrTooFewFields = errors.New("too few status fields")

	// ErrMalformedInteger reports a required integer field that does not parse.
	ErrMalformedInteger = errors.New("malformed integer field")
)

// DecodeError is returned when a reply was received but could not be decoded.
// Err is one of ErrTruncated, ErrTooFewFields or ErrMalformedInteger.
type DecodeError struct {
	Err   error
	Field string
	Value string
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode pong: %s: %s %q", e.Err, e.Field, e.Value)
	}
	return "decode pong: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// TransportError wraps a socket level failure while sending or receiving.
type TransportError struct {
	Err error
	Op  string
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Kind classifies a Query error for logs and metric labels.
func Kind(err error) string {
	var (
		decodeErr    *DecodeError
		transportErr *TransportError
	)

	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &transportErr):
		return "transport"
	default:
		return "unknown"
	}
}
