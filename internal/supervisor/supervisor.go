// SPDX-License-Identifier: MIT

// Package supervisor runs a fixed set of actor goroutines for the
// lifetime of one pipeline run and joins them, surfacing the first
// failure (error or panic) as the run's result. Unlike a long-lived
// daemon supervisor, a failed actor is never restarted: a one-shot
// pipeline run has nothing meaningful to restart into once one stage has
// come apart from the others.
package supervisor

import (
	"context"
	"fmt"

	"github.com/nicomem/gawr/internal/util"
)

// Service is one actor to run for the duration of the pipeline. Run
// should block until its input is exhausted (normal completion) or it
// hits a fatal error.
type Service interface {
	Run(ctx context.Context) error
	Name() string
}

// Supervisor launches every registered Service in its own goroutine and
// joins them all, surfacing the first error or recovered panic.
type Supervisor struct {
	services []Service
}

// New creates an empty Supervisor.
func New() *Supervisor {
	return &Supervisor{}
}

// Add registers a service to be started by Run.
func (s *Supervisor) Add(svc Service) {
	s.services = append(s.services, svc)
}

// Run starts every registered service and blocks until all of them have
// returned. It returns the first non-nil error to arrive, a recovered
// panic counting as an error like any other (neither kind takes
// precedence), and cancels the context the services run under as soon
// as that error arrives so the remaining services can wind down.
func (s *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		idx int
		err error
	}
	results := make(chan result, len(s.services))
	for i, svc := range s.services {
		errCh := make(chan error, 1)
		go func(i int) { results <- result{idx: i, err: <-errCh} }(i)

		svc := svc
		util.SafeGoWithRecover(svc.Name(), nil, func() error {
			return svc.Run(runCtx)
		}, errCh, nil)
	}

	var firstErr error
	for range s.services {
		if r := <-results; r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", s.services[r.idx].Name(), r.err)
			cancel()
		}
	}
	return firstErr
}
