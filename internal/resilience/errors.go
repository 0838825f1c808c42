package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// Class groups provider failures by what a caller should do next.
type Class int

const (
	// Permanent failures give the same answer when repeated: a malformed
	// query, an unknown place id, an unreadable body.
	Permanent Class = iota
	// Transient failures are quota, overload or a dropped connection.
	Transient
	// Rejected means the API refused the key.
	Rejected
	// Canceled means the caller gave up.
	Canceled
)

func (c Class) String() string {
	switch c {
	case Permanent:
		return "permanent"
	case Transient:
		return "transient"
	case Rejected:
		return "rejected"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// StatusCoder is implemented by API errors that carry the HTTP status of
// the answer, such as *google.APIError.
type StatusCoder interface {
	HTTPStatus() int
}

// StatusOf returns the HTTP status found in err's chain, or 0.
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	var te *TransientError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}

// TransientError marks a failure as worth repeating regardless of its status.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// MarkTransient wraps err as a TransientError.
func MarkTransient(err error, statusCode int) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err, StatusCode: statusCode}
}

// Transport failures that the HTTP client reports only as text.
var droppedConnection = []string{
	"server closed idle connection",
	"http2: server sent goaway",
	"tls handshake timeout",
	"temporary failure in name resolution",
}

// Classify sorts a failed call. nil is Permanent.
func Classify(err error) Class {
	if err == nil {
		return Permanent
	}
	if errors.Is(err, context.Canceled) {
		return Canceled
	}

	var te *TransientError
	if errors.As(err, &te) {
		return Transient
	}

	switch status := StatusOf(err); {
	case status == 401 || status == 403:
		return Rejected
	case IsTransientHTTPStatus(status):
		return Transient
	case status != 0:
		return Permanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrUnexpectedEOF) {
		return Transient
	}

	msg := strings.ToLower(err.Error())
	for _, m := range droppedConnection {
		if strings.Contains(msg, m) {
			return Transient
		}
	}
	return Permanent
}

// IsTransient reports whether err is worth another attempt.
func IsTransient(err error) bool {
	return Classify(err) == Transient
}

// IsTransientHTTPStatus reports whether a status is quota or overload:
// 408, 429 and the 5xx answers a gateway or Places backend gives while busy.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
