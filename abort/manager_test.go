package abort_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/abort"
)

func TestNewRequestID(t *testing.T) {
	t.Parallel()

	a, b := abort.NewRequestID(), abort.NewRequestID()
	if len(a) != 26 || a == b {
		t.Errorf("unexpected ids %q, %q", a, b)
	}
}

func TestManager_Cancel(t *testing.T) {
	t.Parallel()

	m := abort.NewManager(nil)
	ctx, release := m.Register(t.Context(), "req-1")
	defer release()

	if diff := cmp.Diff([]string{"req-1"}, m.Pending()); diff != "" {
		t.Errorf("unexpected pending (-want +got):\n%s", diff)
	}
	if !m.Cancel("req-1") {
		t.Fatal("Cancel() = false")
	}
	if m.Cancel("req-1") {
		t.Error("second Cancel() = true")
	}

	<-ctx.Done()
	cause := context.Cause(ctx)
	var ce *taskguard.CanceledError
	if !errors.As(cause, &ce) || ce.RequestID != "req-1" {
		t.Errorf("cause = %v", cause)
	}
	if !errors.Is(cause, context.Canceled) || !errors.Is(cause, taskguard.ErrCanceled) {
		t.Errorf("cause %v does not match the cancellation sentinels", cause)
	}
	if len(m.Pending()) != 0 {
		t.Errorf("Pending() = %v", m.Pending())
	}
}

func TestManager_Release(t *testing.T) {
	t.Parallel()

	m := abort.NewManager(nil)
	ctx, release := m.Register(t.Context(), "req-1")
	release()
	release()

	if len(m.Pending()) != 0 {
		t.Errorf("Pending() = %v", m.Pending())
	}
	if ctx.Err() == nil {
		t.Error("released context is still live")
	}
	if m.Cancel("req-1") {
		t.Error("released request was cancellable")
	}
}

func TestManager_ReRegistration(t *testing.T) {
	t.Parallel()

	m := abort.NewManager(nil)
	_, releaseOld := m.Register(t.Context(), "req-1")
	newCtx, releaseNew := m.Register(t.Context(), "req-1")
	defer releaseNew()

	// Releasing the old registration keeps the newer one cancellable.
	releaseOld()
	if !m.Cancel("req-1") {
		t.Fatal("newer registration was forgotten")
	}
	if newCtx.Err() == nil {
		t.Error("newer registration was not cancelled")
	}
}

func TestManager_Disconnect(t *testing.T) {
	t.Parallel()

	m := abort.NewManager(nil)
	ctx1, release1 := m.Register(t.Context(), "a")
	defer release1()
	ctx2, release2 := m.Register(t.Context(), "b")
	defer release2()

	m.Disconnect()
	for _, ctx := range []context.Context{ctx1, ctx2} {
		if !errors.Is(context.Cause(ctx), taskguard.ErrCanceled) {
			t.Errorf("cause = %v", context.Cause(ctx))
		}
	}

	late, releaseLate := m.Register(t.Context(), "c")
	defer releaseLate()
	if late.Err() == nil {
		t.Error("registration after Disconnect is live")
	}
	if len(m.Pending()) != 0 {
		t.Errorf("Pending() = %v", m.Pending())
	}
}
