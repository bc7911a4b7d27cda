// SPDX-License-Identifier: MIT

// Package cache persists per-video and per-clip progress so a crashed run
// can resume without redoing completed work. See DB for the operation
// contract and sqlite.go for the durable implementation.
package cache

import (
	"context"

	"github.com/nicomem/gawr/internal/types"
)

// Status is the kind of ProcessedState a video is in.
type Status int

const (
	// NotProcessed means the video has never been assigned work.
	NotProcessed Status = iota
	// RemainingClips means the video is partially processed; Clips holds
	// the indices that still need to be produced.
	RemainingClips
	// ProcessedClips is an alternative partial-progress representation
	// (indices already done). Never produced by DB.CheckVideo in this
	// implementation, kept as a variant for interface fidelity with the
	// original design.
	ProcessedClips
	// Completed means every clip for the video has been produced.
	Completed
)

// ProcessedState is the tagged state check_video/CheckVideo returns for a
// video: whether it needs (re-)assigning work, has specific indices left,
// or is done.
type ProcessedState struct {
	Status Status
	Clips  []types.ClipIdx // meaningful only for RemainingClips/ProcessedClips
}

// DB is the durable record of videos and their per-clip work. All
// operations are safe for concurrent use by the Download, Fan-out, and
// Clip stages.
type DB interface {
	// CheckVideo looks up (or creates) the row for str_id and reports its
	// processed state along with the stable internal id.
	CheckVideo(ctx context.Context, strID types.VideoID) (types.DbVideoID, ProcessedState, error)

	// AssignWork records that the video needs nbClips clips to be fully
	// processed, atomically replacing any prior work assignment.
	AssignWork(ctx context.Context, video types.DbVideoID, nbClips int) error

	// CompleteWork marks one clip index as produced. Idempotent: marking
	// an already-completed (or never-assigned) index is not an error.
	CompleteWork(ctx context.Context, video types.DbVideoID, idx types.ClipIdx) error

	// SetVideoAsCompleted marks every remaining work for the video done
	// and flips its status to Completed. Idempotent.
	SetVideoAsCompleted(ctx context.Context, video types.DbVideoID) error

	// CountVideos counts videos, optionally restricted to one Status.
	CountVideos(ctx context.Context, filter *Status) (int, error)

	// Close releases the underlying connection.
	Close() error
}
