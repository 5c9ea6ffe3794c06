package tinybuild

import (
	"fmt"
	"sync"

	"github.com/aappleby/tinybuild/internal/value"
)

// Future is a promise resolving to a Value, used to wire cross-task
// dependencies (§3.1's Future variant). A Task's own promise is a Future
// whose resolved value is either its abs_build_files list or the Cancelled
// sentinel (§4.6).
type Future struct {
	once sync.Once
	done chan struct{}
	val  value.Value
	err  error
}

// NewFuture returns an unresolved Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve fulfills the future with v. Only the first call has any effect.
func (f *Future) Resolve(v value.Value) {
	f.once.Do(func() {
		f.val = v
		close(f.done)
	})
}

// Reject fulfills the future with a Go-level error, distinct from a
// build-level Cancelled value: Reject is for failures in the driver itself
// (context cancellation, deadlock timeout), not for an ordinary task
// failure, which resolves to Cancelled via Resolve instead.
func (f *Future) Reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Await blocks until the future resolves and returns its value or error.
func (f *Future) Await() (value.Value, error) {
	<-f.done
	if f.err != nil {
		return value.Value{}, f.err
	}
	return f.val, nil
}

// AwaitValue resolves the Future/TaskHandle leaf v to its underlying value,
// per §4.6: a TaskHandle's future is the task's own promise.
func AwaitValue(app *App, v value.Value) (value.Value, error) {
	switch v.Kind {
	case value.Future:
		fut, ok := v.Fut().(*Future)
		if !ok {
			return value.Value{}, fmt.Errorf("tinybuild: malformed future value")
		}
		return fut.Await()
	case value.TaskHandle:
		t, ok := v.Task().(*Task)
		if !ok {
			return value.Value{}, fmt.Errorf("tinybuild: malformed task handle value")
		}
		return t.Await()
	default:
		return v, nil
	}
}
