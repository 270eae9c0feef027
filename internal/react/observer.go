package react

import "time"

// Observer receives reconciliation events, for metrics. All methods are
// called on the reconciler's thread.
type Observer interface {
	// HostOp is called after every host adapter call.
	HostOp(op string, err error)
	// Rendered is called after every component render attempt.
	Rendered(component string, took time.Duration, err error)
	// Flushed is called after every scheduler drain that did any work.
	Flushed(rendered int, took time.Duration)
}

type nopObserver struct{}

func (nopObserver) HostOp(string, error)                  {}
func (nopObserver) Rendered(string, time.Duration, error) {}
func (nopObserver) Flushed(int, time.Duration)            {}
