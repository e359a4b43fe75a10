package taskguard_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	perrors "github.com/jmgilman/go/errors"
	"github.com/karupanerura/taskguard"
)

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "throttle", err: &taskguard.ThrottleError{Rate: 5, Interval: 5 * time.Second}, want: "Throttle limit of 5 reached for interval 5000"},
		{name: "timeout", err: &taskguard.TimeoutError{Timeout: 250 * time.Millisecond}, want: "Task timed out after 250ms"},
		{name: "canceled", err: &taskguard.CanceledError{RequestID: "01J"}, want: "request 01J canceled"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorMatching(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("dispatch: %w", &taskguard.NoHandlerError{Name: "getUser"})
	if !errors.Is(wrapped, taskguard.ErrNoHandler) {
		t.Error("wrapped NoHandlerError should match ErrNoHandler")
	}
	if errors.Is(errors.New("no handler registered for \"getUser\""), taskguard.ErrNoHandler) {
		t.Error("message text alone must not match ErrNoHandler")
	}

	canceled := &taskguard.CanceledError{RequestID: "x"}
	if !errors.Is(canceled, taskguard.ErrCanceled) || !errors.Is(canceled, context.Canceled) {
		t.Error("CanceledError should match ErrCanceled and context.Canceled")
	}
	if !errors.Is(&taskguard.ThrottleError{}, taskguard.ErrThrottled) {
		t.Error("ThrottleError should match ErrThrottled")
	}
	if !errors.Is(&taskguard.TimeoutError{}, taskguard.ErrTimeout) {
		t.Error("TimeoutError should match ErrTimeout")
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       perrors.PlatformError
		code      perrors.ErrorCode
		retryable bool
	}{
		{name: "throttle", err: &taskguard.ThrottleError{Rate: 1, Interval: time.Second}, code: perrors.CodeRateLimit, retryable: true},
		{name: "timeout", err: &taskguard.TimeoutError{Timeout: time.Second}, code: perrors.CodeTimeout, retryable: true},
		{name: "no handler", err: &taskguard.NoHandlerError{Name: "x"}, code: perrors.CodeNotFound, retryable: false},
		{name: "canceled", err: &taskguard.CanceledError{}, code: perrors.CodeExecutionFailed, retryable: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Code(); got != tt.code {
				t.Errorf("Code() = %v, want %v", got, tt.code)
			}
			if got := tt.err.Classification().IsRetryable(); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}
