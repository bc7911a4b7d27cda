// SPDX-License-Identifier: MIT

// Package util provides the panic-recovery wrapper each pipeline actor
// goroutine runs through, so one stage's panic never takes the process
// down with it.
package util

import (
	"fmt"
	"io"
	"runtime/debug"
)

// SafeGoWithRecover launches fn in its own goroutine, recovering any panic
// and reporting it on errCh; if fn returns instead, a non-nil error it
// returns is reported there. The channel is closed once fn has returned or
// panicked, so a for-range or a single receive never blocks forever waiting
// on a goroutine that already finished.
//
// This is what internal/supervisor.Supervisor uses to run every pipeline
// stage: a panic in one actor must not crash the whole run, only surface
// as that actor's error so the supervisor can cancel the others and join.
func SafeGoWithRecover(name string, logger io.Writer, fn func() error, errCh chan<- error, onPanic func(interface{}, []byte)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()

				if logger != nil {
					_, _ = fmt.Fprintf(logger, "[PANIC in %s] %v\n%s\n", name, r, stack)
				}

				if onPanic != nil {
					onPanic(r, stack)
				}

				if errCh != nil {
					errCh <- fmt.Errorf("panic in %s: %v", name, r)
					close(errCh)
				}
			}
		}()

		err := fn()

		if errCh != nil {
			if err != nil {
				errCh <- err
			}
			close(errCh)
		}
	}()
}
