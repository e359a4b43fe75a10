package taskguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	perrors "github.com/jmgilman/go/errors"
)

var (
	// ErrThrottled matches every *ThrottleError.
	ErrThrottled = errors.New("taskguard: throttled")

	// ErrTimeout matches every *TimeoutError.
	ErrTimeout = errors.New("taskguard: timed out")

	// ErrNoHandler matches every *NoHandlerError.
	ErrNoHandler = errors.New("taskguard: no handler registered")

	// ErrCanceled matches every *CanceledError.
	ErrCanceled = errors.New("taskguard: canceled")
)

var (
	_ perrors.PlatformError = (*ThrottleError)(nil)
	_ perrors.PlatformError = (*TimeoutError)(nil)
	_ perrors.PlatformError = (*NoHandlerError)(nil)
	_ perrors.PlatformError = (*CanceledError)(nil)
)

// ThrottleError is returned when a request is rejected before running because the
// rate limit of its fingerprint is exhausted.
type ThrottleError struct {
	Rate     int
	Interval time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("Throttle limit of %d reached for interval %d", e.Rate, e.Interval.Milliseconds())
}

func (e *ThrottleError) Is(target error) bool { return target == ErrThrottled }

func (e *ThrottleError) Code() perrors.ErrorCode { return perrors.CodeRateLimit }

func (e *ThrottleError) Classification() perrors.ErrorClassification {
	return perrors.ClassificationRetryable
}

func (e *ThrottleError) Message() string { return e.Error() }

func (e *ThrottleError) Context() map[string]interface{} {
	return map[string]interface{}{"rate": e.Rate, "interval": e.Interval.String()}
}

func (e *ThrottleError) Unwrap() error { return nil }

// TimeoutError is returned when a task exceeds its time budget.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Task timed out after %dms", e.Timeout.Milliseconds())
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Code() perrors.ErrorCode { return perrors.CodeTimeout }

func (e *TimeoutError) Classification() perrors.ErrorClassification {
	return perrors.ClassificationRetryable
}

func (e *TimeoutError) Message() string { return e.Error() }

func (e *TimeoutError) Context() map[string]interface{} {
	return map[string]interface{}{"timeout": e.Timeout.String()}
}

func (e *TimeoutError) Unwrap() error { return nil }

// NoHandlerError reports that no handler is registered for a request name.
// It is recognized by type (errors.Is(err, ErrNoHandler)), never by message.
type NoHandlerError struct {
	Name string
}

func (e *NoHandlerError) Error() string {
	return fmt.Sprintf("no handler registered for %q", e.Name)
}

func (e *NoHandlerError) Is(target error) bool { return target == ErrNoHandler }

func (e *NoHandlerError) Code() perrors.ErrorCode { return perrors.CodeNotFound }

func (e *NoHandlerError) Classification() perrors.ErrorClassification {
	return perrors.ClassificationPermanent
}

func (e *NoHandlerError) Message() string { return e.Error() }

func (e *NoHandlerError) Context() map[string]interface{} {
	return map[string]interface{}{"name": e.Name}
}

func (e *NoHandlerError) Unwrap() error { return nil }

// CanceledError reports that a request was aborted through its cancellation token.
type CanceledError struct {
	RequestID string
	Cause     error
}

func (e *CanceledError) Error() string {
	if e.RequestID == "" {
		return "request canceled"
	}
	return fmt.Sprintf("request %s canceled", e.RequestID)
}

// Is matches ErrCanceled and context.Canceled.
func (e *CanceledError) Is(target error) bool {
	return target == ErrCanceled || target == context.Canceled
}

func (e *CanceledError) Code() perrors.ErrorCode { return perrors.CodeExecutionFailed }

func (e *CanceledError) Classification() perrors.ErrorClassification {
	return perrors.ClassificationPermanent
}

func (e *CanceledError) Message() string { return e.Error() }

func (e *CanceledError) Context() map[string]interface{} {
	if e.RequestID == "" {
		return nil
	}
	return map[string]interface{}{"requestId": e.RequestID}
}

func (e *CanceledError) Unwrap() error { return e.Cause }
