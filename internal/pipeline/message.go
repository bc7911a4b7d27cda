// SPDX-License-Identifier: MIT

// Package pipeline wires the Download, Fan-out, and Clip stages together
// over typed channels and carries the messages that flow between them.
package pipeline

import (
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/nicomem/gawr/internal/cache"
	"github.com/nicomem/gawr/internal/types"
)

// closeAndRemove closes f and deletes its backing file. Unlike Rust's
// tempfile crate, closing an *os.File never unlinks the underlying path,
// so every caller that is done with a downloaded stream's temp file must
// remove it explicitly or it leaks for the lifetime of the OS temp dir.
func closeAndRemove(f *os.File) {
	name := f.Name()
	if err := f.Close(); err != nil {
		slog.Warn("failed to close temp stream file", "path", name, "error", err)
	}
	if err := os.Remove(name); err != nil {
		slog.Warn("failed to remove temp stream file", "path", name, "error", err)
	}
}

// DownloadedStream is what the Download actor hands to the Fan-out actor:
// a fully-fetched video with its extracted clip timestamps still attached
// to the raw video file. State is the ProcessedState observed by the
// Download actor's own cache.CheckVideo call, carried forward so the
// Fan-out actor does not need to query the cache a second time.
type DownloadedStream struct {
	VideoID    types.VideoID
	DbID       types.DbVideoID
	File       *os.File
	Metadata   types.Metadata
	Timestamps types.Timestamps
	State      cache.ProcessedState
}

// StreamInfo is the shared-ownership handle a DownloadedStream is wrapped
// into once the Fan-out actor starts splitting it into clips. It outlives
// every TimestampedClip message derived from it: the video's temp file
// must stay open, and the cache must not be told the video is complete,
// until every clip message referencing it has been released.
//
// share tracks the number of TimestampedClip messages currently holding a
// reference. It starts at 1 (the Fan-out actor's own working reference)
// and is incremented once per outgoing message before the send, mirroring
// an Arc::clone immediately preceding each channel send. Each Clip worker
// calls Release after finishing its message; the worker observing the
// count drop to zero is the one responsible for finalizing the video.
type StreamInfo struct {
	VideoID  types.VideoID
	DbID     types.DbVideoID
	File     *os.File
	Metadata types.Metadata

	share atomic.Int32
}

// NewStreamInfo builds a StreamInfo with its own working reference already
// accounted for.
func NewStreamInfo(videoID types.VideoID, dbID types.DbVideoID, file *os.File, metadata types.Metadata) *StreamInfo {
	si := &StreamInfo{VideoID: videoID, DbID: dbID, File: file, Metadata: metadata}
	si.share.Store(1)
	return si
}

// Acquire adds one reference, to be called once per TimestampedClip
// message before it is sent.
func (si *StreamInfo) Acquire() {
	si.share.Add(1)
}

// ReleaseFanout drops the Fan-out actor's own working reference, leaving
// the share count equal to the number of in-flight clip messages.
func (si *StreamInfo) ReleaseFanout() {
	si.share.Add(-1)
}

// Release drops one clip message's reference and reports whether it was
// the last one. The caller that receives true owns finalizing the video:
// marking it complete in the cache and removing the backing temp file.
func (si *StreamInfo) Release() bool {
	return si.share.Add(-1) == 0
}

// TimestampedClip is one clip's work order, fanned out from a
// DownloadedStream. End is nil for the final clip of a video, meaning
// "through end of stream".
type TimestampedClip struct {
	Stream  *StreamInfo
	ClipIdx types.ClipIdx
	Start   types.Timestamp
	End     *types.Timestamp
}
