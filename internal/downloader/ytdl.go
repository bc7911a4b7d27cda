// SPDX-License-Identifier: MIT

package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nicomem/gawr/internal/types"
)

// Ytdl drives whichever of yt-dlp or youtube-dl is reachable on PATH,
// preferring yt-dlp.
type Ytdl struct {
	program string
}

var _ Downloader = (*Ytdl)(nil)

// NewYtdl probes for yt-dlp, falling back to youtube-dl, and fails if
// neither binary is runnable.
func NewYtdl(ctx context.Context) (*Ytdl, error) {
	if assertSuccessCommand(ctx, binYtDlp, "--version") == nil {
		return &Ytdl{program: binYtDlp}, nil
	}
	if assertSuccessCommand(ctx, binYoutubeDL, "--version") == nil {
		return &Ytdl{program: binYoutubeDL}, nil
	}
	return nil, fmt.Errorf("neither %s nor %s found on PATH", binYtDlp, binYoutubeDL)
}

// runCheckAvailability runs the program, classifies an unavailable stream
// into ErrUnavailableStream, and otherwise surfaces any non-zero exit as a
// fatal error before returning the raw output on success.
func (y *Ytdl) runCheckAvailability(ctx context.Context, args ...string) (stdout []byte, err error) {
	res, err := runCommand(ctx, y.program, args...)
	if err != nil {
		return nil, err
	}
	if stderrSaysUnavailable(res.stderr) {
		return nil, ErrUnavailableStream
	}
	if !res.success {
		return nil, fmt.Errorf("%s exited with failure; stderr: %s", y.program, res.stderr)
	}
	return res.stdout, nil
}

func (y *Ytdl) GetPlaylistVideosID(ctx context.Context, id string) ([]types.VideoID, error) {
	stdout, err := y.runCheckAvailability(ctx,
		"-q", "--flat-playlist", "--get-id", "--", id)
	if err != nil {
		return nil, fmt.Errorf("resolve playlist %q: %w", id, err)
	}

	fields := strings.Fields(string(stdout))
	ids := make([]types.VideoID, len(fields))
	for i, f := range fields {
		ids[i] = types.VideoID(f)
	}
	return ids, nil
}

type ytdlMetadataJSON struct {
	Title       string `json:"title"`
	Uploader    string `json:"uploader"`
	Description string `json:"description"`
	Duration    uint64 `json:"duration"`
}

func (y *Ytdl) GetMetadata(ctx context.Context, videoID types.VideoID) (types.Metadata, error) {
	stdout, err := y.runCheckAvailability(ctx,
		"-q", "--skip-download", "-j", "--", string(videoID))
	if err != nil {
		return types.Metadata{}, fmt.Errorf("fetch metadata for %q: %w", videoID, err)
	}

	var raw ytdlMetadataJSON
	if err := json.Unmarshal(stdout, &raw); err != nil {
		return types.Metadata{}, fmt.Errorf("parse metadata json for %q: %w", videoID, err)
	}

	return types.Metadata{
		Title:       stripTitleForbiddenChars(raw.Title),
		Uploader:    raw.Uploader,
		Description: raw.Description,
		Duration:    raw.Duration,
	}, nil
}

func (y *Ytdl) DownloadAudio(ctx context.Context, path string, videoID types.VideoID) error {
	_, err := y.runCheckAvailability(ctx,
		"-q",
		"-o", path,
		"--no-continue", // fails instead of skipping if the (possibly empty) file already exists
		"-f", "bestaudio",
		"--add-metadata",
		// force title/uploader tags regardless of source (yt-dlp#904)
		"--parse-metadata", "%(title)s:%(meta_title)s",
		"--parse-metadata", "%(uploader)s:%(meta_artist)s",
		"--",
		string(videoID),
	)
	if err != nil {
		return fmt.Errorf("download audio for %q: %w", videoID, err)
	}
	return nil
}

func stripTitleForbiddenChars(title string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(types.TitleForbiddenChars, r) {
			return -1
		}
		return r
	}, title)
}
