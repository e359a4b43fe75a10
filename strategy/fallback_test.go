package strategy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/karupanerura/taskguard"
	"github.com/karupanerura/taskguard/strategy"
)

func TestFallback(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	errFallback := errors.New("fallback failed")
	tests := []struct {
		name     string
		fallback taskguard.FallbackFunc
		failures int32
		want     string
		wantErr  error
	}{
		{
			name:     "Success",
			fallback: func(context.Context, *taskguard.Request, error) (any, error) { return "fallback", nil },
			want:     "ok",
		},
		{
			name: "Substitutes",
			fallback: func(_ context.Context, req *taskguard.Request, err error) (any, error) {
				if !errors.Is(err, errBoom) {
					t.Errorf("fallback received %v", err)
				}
				return "fallback:" + req.Name, nil
			},
			failures: 1,
			want:     "fallback:r",
		},
		{
			name:     "NilFallbackPropagates",
			failures: 1,
			wantErr:  errBoom,
		},
		{
			name:     "FallbackError",
			fallback: func(context.Context, *taskguard.Request, error) (any, error) { return nil, errFallback },
			failures: 1,
			wantErr:  errFallback,
		},
		{
			name:     "NilSubstitute",
			fallback: func(context.Context, *taskguard.Request, error) (any, error) { return nil, nil },
			failures: 1,
			want:     "",
		},
		{
			name:     "WrongType",
			fallback: func(context.Context, *taskguard.Request, error) (any, error) { return 42, nil },
			failures: 1,
			wantErr:  errBoom,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fallback := strategy.NewFallback[string](nil)
			task, _ := flaky(tt.failures, "ok", errBoom)
			got, err := fallback.ExecuteWith(t.Context(), newRequest("r", nil), tt.fallback, task)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Execute() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Execute() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultHandler(t *testing.T) {
	t.Parallel()

	handler := func(_ context.Context, req *taskguard.Request) (string, error) {
		return "default:" + req.Name, nil
	}
	errBoom := errors.New("boom")
	tests := []struct {
		name    string
		handler taskguard.Task[string]
		err     error
		want    string
		wantErr error
	}{
		{name: "NoHandlerRouted", handler: handler, err: &taskguard.NoHandlerError{Name: "r"}, want: "default:r"},
		{name: "OtherErrorPropagates", handler: handler, err: errBoom, wantErr: errBoom},
		{name: "NoDefaultConfigured", err: &taskguard.NoHandlerError{Name: "r"}, wantErr: taskguard.ErrNoHandler},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := strategy.NewDefaultHandler(tt.handler)
			task, _ := flaky(1, "ok", tt.err)
			got, err := s.Execute(t.Context(), newRequest("r", nil), task)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Execute() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Execute() = %q, want %q", got, tt.want)
			}
		})
	}
}
