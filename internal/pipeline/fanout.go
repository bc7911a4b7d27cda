// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nicomem/gawr/internal/cache"
	"github.com/nicomem/gawr/internal/types"
)

// FanoutActor translates one DownloadedStream into zero or more
// TimestampedClips while letting the Download actor race ahead to the
// next video. Without this stage, a bounded channel to the Clip worker
// pool would pin the downloader waiting for workers to drain the final
// clip of the previous video.
type FanoutActor struct {
	Cache cache.DB

	log *slog.Logger
}

// Run drains in until it is closed, sending every derived TimestampedClip
// to out, then closes out.
func (a *FanoutActor) Run(ctx context.Context, in <-chan DownloadedStream, out chan<- TimestampedClip) error {
	defer close(out)

	a.log = slog.With("stage", "fanout")

	for stream := range in {
		if err := a.fanoutOne(ctx, stream, out); err != nil {
			return err
		}
	}
	return nil
}

func (a *FanoutActor) fanoutOne(ctx context.Context, stream DownloadedStream, out chan<- TimestampedClip) error {
	indices, err := a.deriveIndices(ctx, stream)
	if err != nil {
		return err
	}

	if len(indices) == 0 {
		a.log.Debug("no remaining work for video, marking completed", "video_id", stream.VideoID)
		closeAndRemove(stream.File)
		return a.Cache.SetVideoAsCompleted(ctx, stream.DbID)
	}

	info := NewStreamInfo(stream.VideoID, stream.DbID, stream.File, stream.Metadata)
	clips := stream.Timestamps.Clips()
	byIdx := make(map[types.ClipIdx]types.Clip, len(clips))
	for _, c := range clips {
		byIdx[c.Idx] = c
	}

	for _, idx := range indices {
		clip, ok := byIdx[idx]
		if !ok {
			// Index came from the cache's work table; if the timestamp
			// sequence shrank since it was recorded, skip it rather than
			// sending a message with no basis.
			a.log.Warn("cached clip index has no matching timestamp, skipping",
				"video_id", stream.VideoID, "clip_idx", idx)
			continue
		}

		info.Acquire()
		msg := TimestampedClip{
			Stream:  info,
			ClipIdx: clip.Idx,
			Start:   clip.Start,
			End:     clip.End,
		}

		select {
		case out <- msg:
		case <-ctx.Done():
			info.Release()
			return ctx.Err()
		}
	}

	info.ReleaseFanout()
	return nil
}

// deriveIndices turns a video's ProcessedState (as observed by the
// Download actor) into the set of clip indices that still need
// producing, assigning fresh work in the cache when the video has never
// been seen before.
func (a *FanoutActor) deriveIndices(ctx context.Context, stream DownloadedStream) ([]types.ClipIdx, error) {
	switch stream.State.Status {
	case cache.NotProcessed:
		n := len(stream.Timestamps.Clips())
		if err := a.Cache.AssignWork(ctx, stream.DbID, n); err != nil {
			return nil, fmt.Errorf("assign work for %q: %w", stream.VideoID, err)
		}
		indices := make([]types.ClipIdx, n)
		for i := range indices {
			indices[i] = types.ClipIdx(i)
		}
		return indices, nil

	case cache.RemainingClips:
		return stream.State.Clips, nil

	case cache.ProcessedClips:
		done := make(map[types.ClipIdx]bool, len(stream.State.Clips))
		for _, idx := range stream.State.Clips {
			done[idx] = true
		}
		n := len(stream.Timestamps.Clips())
		var remaining []types.ClipIdx
		for i := 0; i < n; i++ {
			if !done[types.ClipIdx(i)] {
				remaining = append(remaining, types.ClipIdx(i))
			}
		}
		return remaining, nil

	case cache.Completed:
		return nil, fmt.Errorf("video %q reported completed in fan-out, which the download actor should have filtered", stream.VideoID)

	default:
		return nil, fmt.Errorf("unknown processed state %v for %q", stream.State.Status, stream.VideoID)
	}
}
