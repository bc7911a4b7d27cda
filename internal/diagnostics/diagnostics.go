// SPDX-License-Identifier: MIT

// Package diagnostics reports a summary of one gawr run: how many clips
// were produced, how long it took, and whether it ended cleanly.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Summary is the outcome of one pipeline.Run call.
type Summary struct {
	ID         string        `json:"id"`
	Processed  int           `json:"processed"`
	Duration   time.Duration `json:"duration"`
	Err        string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// NewSummary builds a Summary from a run's inputs and outcome.
func NewSummary(id string, processed int, startedAt, finishedAt time.Time, runErr error) *Summary {
	s := &Summary{
		ID:         id,
		Processed:  processed,
		Duration:   finishedAt.Sub(startedAt),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	if runErr != nil {
		s.Err = runErr.Error()
	}
	return s
}

// Healthy reports whether the run completed without a fatal error.
func (s *Summary) Healthy() bool {
	return s.Err == ""
}

// Print writes a human-readable one-run summary to w.
func Print(w io.Writer, s *Summary) {
	_, _ = fmt.Fprintf(w, "gawr run summary\n")
	_, _ = fmt.Fprintf(w, "=================\n\n")
	_, _ = fmt.Fprintf(w, "ID:        %s\n", s.ID)
	_, _ = fmt.Fprintf(w, "Clips:     %d\n", s.Processed)
	_, _ = fmt.Fprintf(w, "Duration:  %v\n", s.Duration)

	if s.Healthy() {
		_, _ = fmt.Fprintf(w, "Status:    OK\n")
	} else {
		_, _ = fmt.Fprintf(w, "Status:    FAILED (%s)\n", s.Err)
	}
}

// ToJSON renders the summary as indented JSON, for scripted callers.
func (s *Summary) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
