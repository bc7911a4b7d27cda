// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/nicomem/gawr/internal/cache"
	"github.com/nicomem/gawr/internal/downloader"
	"github.com/nicomem/gawr/internal/types"
)

// minClipLengthSeconds is the length the final clip (from the last
// timestamp to the stream's reported duration) must exceed for a download
// to be considered complete. At or below this, the download is assumed
// truncated and retried.
const minClipLengthSeconds = 10

// DownloadActor reads VideoIds from in, fetches metadata and audio for
// each not already completed, and forwards the result to out. It is
// single-threaded: only one video is ever being downloaded at a time.
type DownloadActor struct {
	DL             downloader.Downloader
	Cache          cache.DB
	SkipTimestamps bool
	ClipRegexes    []*regexp.Regexp

	log *slog.Logger
}

// Run drains in until it is closed, sending one DownloadedStream to out
// per successfully downloaded video, then closes out.
func (a *DownloadActor) Run(ctx context.Context, in <-chan types.VideoID, out chan<- DownloadedStream) error {
	defer close(out)

	a.log = slog.With("stage", "download")

	for videoID := range in {
		a.log.Debug("video id received", "video_id", videoID)

		dbID, state, err := a.Cache.CheckVideo(ctx, videoID)
		if err != nil {
			return fmt.Errorf("check video %q: %w", videoID, err)
		}
		if state.Status == cache.Completed {
			a.log.Debug("video already completed, skipping", "video_id", videoID)
			continue
		}

		stream, err := a.downloadAndExtractMetadata(ctx, videoID, dbID, state)
		if errors.Is(err, downloader.ErrUnavailableStream) {
			a.log.Error("video is unavailable, not downloaded but recorded as completed", "video_id", videoID)
			if err := a.Cache.SetVideoAsCompleted(ctx, dbID); err != nil {
				return fmt.Errorf("mark unavailable video %q as completed: %w", videoID, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("download and extract metadata for %q: %w", videoID, err)
		}

		select {
		case out <- stream:
		case <-ctx.Done():
			return ctx.Err()
		}

		a.log.Debug("download iteration completed", "video_id", videoID)
	}
	return nil
}

func (a *DownloadActor) downloadAndExtractMetadata(ctx context.Context, videoID types.VideoID, dbID types.DbVideoID, state cache.ProcessedState) (DownloadedStream, error) {
	metadata, err := a.DL.GetMetadata(ctx, videoID)
	if err != nil {
		return DownloadedStream{}, fmt.Errorf("fetch metadata: %w", err)
	}

	tmp, err := os.CreateTemp("", "gawr-stream-*.mkv")
	if err != nil {
		return DownloadedStream{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	for {
		a.log.Info("downloading video", "video_id", videoID)
		if err := a.DL.DownloadAudio(ctx, tmpPath, videoID); err != nil {
			os.Remove(tmpPath)
			return DownloadedStream{}, fmt.Errorf("download audio: %w", err)
		}

		var timestamps types.Timestamps
		if a.SkipTimestamps {
			a.log.Info("downloaded file, skipping timestamp extraction")
		} else {
			a.log.Info("downloaded file, extracting timestamps")
			timestamps = types.ExtractTimestamps(metadata.Description, a.ClipRegexes)
			a.log.Debug("extracted timestamps", "timestamps", timestamps.String())

			if !isFileComplete(metadata.Duration, timestamps) {
				a.log.Warn("downloaded file seems incomplete, retrying", "video_id", videoID)
				continue
			}
		}

		if len(timestamps) == 0 {
			a.log.Debug("no timestamp found, clipping the entire video")
			timestamps = types.Timestamps{{TStart: "00:00", Title: metadata.Title}}
		}

		file, err := os.Open(tmpPath)
		if err != nil {
			return DownloadedStream{}, fmt.Errorf("reopen downloaded file: %w", err)
		}

		return DownloadedStream{
			VideoID:    videoID,
			DbID:       dbID,
			File:       file,
			Metadata:   metadata,
			Timestamps: timestamps,
			State:      state,
		}, nil
	}
}

// isFileComplete reports whether the stream's reported duration leaves
// more than minClipLengthSeconds after the final timestamp. An empty
// timestamp sequence is vacuously complete.
func isFileComplete(streamDuration uint64, timestamps types.Timestamps) bool {
	last, ok := timestamps.Last()
	if !ok {
		return true
	}
	return last.ToSeconds()+minClipLengthSeconds < streamDuration
}
