package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatus() int { return int(e) }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, Permanent},
		{"explicit", MarkTransient(errors.New("x"), 0), Transient},
		{"quota", statusErr(429), Transient},
		{"wrapped overload", fmt.Errorf("places: search: %w", statusErr(503)), Transient},
		{"bad request", statusErr(400), Permanent},
		{"key refused", statusErr(403), Rejected},
		{"unauthorized", fmt.Errorf("outer: %w", statusErr(401)), Rejected},
		{"canceled", fmt.Errorf("places: %w", context.Canceled), Canceled},
		{"deadline", context.DeadlineExceeded, Transient},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), Transient},
		{"truncated body", fmt.Errorf("google: read response: %w", io.ErrUnexpectedEOF), Transient},
		{"idle close", errors.New("http: server closed idle connection"), Transient},
		{"plain", errors.New("invalid argument"), Permanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(fmt.Errorf("outer: %w", MarkTransient(errors.New("x"), 503))) {
		t.Error("expected wrapped TransientError to be transient")
	}
	if IsTransient(statusErr(404)) {
		t.Error("expected 404 to be permanent")
	}
}

func TestStatusOf(t *testing.T) {
	if got := StatusOf(fmt.Errorf("wrap: %w", statusErr(502))); got != 502 {
		t.Errorf("StatusOf = %d, want 502", got)
	}
	if got := StatusOf(MarkTransient(errors.New("x"), 429)); got != 429 {
		t.Errorf("StatusOf = %d, want 429", got)
	}
	if got := StatusOf(errors.New("x")); got != 0 {
		t.Errorf("StatusOf = %d, want 0", got)
	}
}

func TestClassString(t *testing.T) {
	for c, want := range map[Class]string{Permanent: "permanent", Transient: "transient", Rejected: "rejected", Canceled: "canceled", Class(9): "unknown"} {
		if c.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(c), c.String(), want)
		}
	}
}

func TestTransientNil(t *testing.T) {
	if MarkTransient(nil, 500) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be permanent", code)
		}
	}
}
