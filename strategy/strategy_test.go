package strategy_test

import (
	"context"
	"sync/atomic"

	"github.com/karupanerura/taskguard"
)

func newRequest(name string, payload any) *taskguard.Request {
	return &taskguard.Request{Name: name, Payload: payload}
}

// flaky fails the first n calls with err and then returns value.
func flaky[R any](n int32, value R, err error) (taskguard.Task[R], *atomic.Int32) {
	var calls atomic.Int32
	return func(context.Context, *taskguard.Request) (R, error) {
		if calls.Add(1) <= n {
			var zero R
			return zero, err
		}
		return value, nil
	}, &calls
}
