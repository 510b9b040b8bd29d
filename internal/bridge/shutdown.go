package bridge

import (
	"errors"
	"sync"
)

// Shutdown submits Terminate at most once, however many exit paths fire.
type Shutdown struct {
	submitter Submitter
	once      sync.Once
	err       error
}

// NewShutdown returns a trigger for s.
func NewShutdown(s Submitter) *Shutdown {
	return &Shutdown{submitter: s}
}

// Trigger asks the worker to stop. A worker that has already exited is not
// an error.
func (s *Shutdown) Trigger() error {
	s.once.Do(func() {
		err := s.submitter.Submit(Terminate{})
		if errors.Is(err, ErrWorkerExited) {
			err = nil
		}
		s.err = err
	})
	return s.err
}
