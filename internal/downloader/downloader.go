// SPDX-License-Identifier: MIT

// Package downloader drives an external yt-dlp/youtube-dl subprocess to
// resolve playlists, fetch metadata, and pull audio streams.
package downloader

import (
	"context"

	"github.com/nicomem/gawr/internal/types"
)

// ErrUnavailableStream is returned when the downloaded video is private or
// otherwise permanently unreachable, as opposed to a transient failure.
// Callers use errors.Is against this sentinel.
var ErrUnavailableStream = unavailableStreamError{}

type unavailableStreamError struct{}

func (unavailableStreamError) Error() string { return "stream is unavailable" }

// Downloader resolves playlists, fetches metadata, and pulls audio for a
// single video. The id passed to every method is opaque to the pipeline;
// only the Downloader implementation knows how to interpret it.
type Downloader interface {
	// GetPlaylistVideosID resolves id (a playlist or a single video) to
	// the video ids it names. A bare video id resolves to itself.
	GetPlaylistVideosID(ctx context.Context, id string) ([]types.VideoID, error)

	// GetMetadata fetches a video's metadata without downloading audio.
	// The returned title has TitleForbiddenChars already stripped.
	GetMetadata(ctx context.Context, videoID types.VideoID) (types.Metadata, error)

	// DownloadAudio writes the video's best-available audio track to
	// path, which must not already exist as a non-empty file.
	DownloadAudio(ctx context.Context, path string, videoID types.VideoID) error
}
