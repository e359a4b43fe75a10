package panicutil

import (
	"errors"

	"github.com/sourcegraph/conc/panics"
)

// ErrGoexit is reported to waiters when a task calls runtime.Goexit instead of returning.
var ErrGoexit = errors.New("task exited without returning")

// Run calls f and returns its error. A panic in f is returned as *panics.ErrRecovered.
func Run(f func() error) error {
	var g Guard
	return g.Invoke(f)
}

// Guard tells a normal return, a panic and runtime.Goexit apart using two nested defers.
type Guard struct {
	// OnGoexit is called if f calls runtime.Goexit. The goroutine still exits afterwards,
	// so this is the only chance to release anything waiting on f.
	OnGoexit func()
}

// Invoke calls f. A panic is recovered and returned as *panics.ErrRecovered.
func (g *Guard) Invoke(f func() error) (err error) {
	var (
		returned  bool
		recovered bool
		value     panics.Recovered
	)
	defer func() {
		switch {
		case returned:
		case recovered:
			err = value.AsError()
		default:
			if g.OnGoexit != nil {
				g.OnGoexit()
			}
		}
	}()
	func() {
		defer func() {
			value = panics.NewRecovered(2, recover())
		}()
		err = f()
		returned = true
	}()
	if !returned {
		recovered = true
	}
	return
}

// Go runs f on a conc-style wait group and passes any error or recovered panic to onError.
func Go(wg interface{ Go(func()) }, f func() error, onError func(error)) {
	wg.Go(func() {
		if err := Run(f); err != nil && onError != nil {
			onError(err)
		}
	})
}
