package testutil

import (
	"sync"

	ierr "github.com/parcelbase/parcelbase/internal/errors"
)

// Faults lets a test make named store operations fail and records the order
// in which operations were called.
type Faults struct {
	mu     sync.Mutex
	queued map[string][]error
	always map[string]error
	calls  []string
}

func newFaults() *Faults {
	return &Faults{
		queued: make(map[string][]error),
		always: make(map[string]error),
	}
}

// FailNext queues err as the result of the next call of op. A nil err lets
// that call through, so later queued failures hit later calls.
func (f *Faults) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued[op] = append(f.queued[op], err)
}

// FailAlways makes every call of op return err until Reset
func (f *Faults) FailAlways(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.always[op] = err
}

// Calls returns the recorded operation names in call order
func (f *Faults) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Faults) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = make(map[string][]error)
	f.always = make(map[string]error)
	f.calls = nil
}

func (f *Faults) hit(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, op)
	if err, ok := f.always[op]; ok {
		return err
	}
	queue := f.queued[op]
	if len(queue) == 0 {
		return nil
	}
	f.queued[op] = queue[1:]
	return queue[0]
}

// ErrBackendDown is a transient failure for injection
func ErrBackendDown() error {
	return ierr.NewError("connection refused").
		WithHint("The database could not be reached").
		Mark(ierr.ErrUnavailable)
}

// ErrWriteFailed is a fatal database failure for injection
func ErrWriteFailed() error {
	return ierr.NewError("write failed").
		WithHint("Database write failed").
		Mark(ierr.ErrDatabase)
}
