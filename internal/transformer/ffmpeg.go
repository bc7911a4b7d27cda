// SPDX-License-Identifier: MIT

package transformer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nicomem/gawr/internal/types"
)

// Ffmpeg drives the ffmpeg binary on PATH.
type Ffmpeg struct{}

var _ Transformer = Ffmpeg{}

// NewFfmpeg verifies the ffmpeg binary is reachable.
func NewFfmpeg(ctx context.Context) (Ffmpeg, error) {
	if err := assertSuccessCommand(ctx, binFfmpeg, "-version"); err != nil {
		return Ffmpeg{}, fmt.Errorf("ffmpeg not usable: %w", err)
	}
	return Ffmpeg{}, nil
}

func (Ffmpeg) ExtractClip(ctx context.Context, input, output string, start types.Timestamp, end *types.Timestamp, album string) error {
	args := append([]string{}, ffxxxDefaultArgs...)
	args = append(args,
		"-y",
		"-i", input,
		"-map_metadata", "-1",
		"-metadata", "album="+album,
		"-ss", start.TStart,
	)
	if end != nil {
		args = append(args, "-to", end.TStart)
	}
	args = append(args, "-c:a", "copy", "--", output)

	if err := assertSuccessCommand(ctx, binFfmpeg, args...); err != nil {
		return fmt.Errorf("extract clip from %q: %w", input, err)
	}
	return nil
}

func (Ffmpeg) NormalizeAudio(ctx context.Context, input, output string, bitrate types.Bitrate) error {
	// First pass: measure loudness statistics, discarding the actual output.
	res, err := runCommand(ctx, binFfmpeg,
		"-hide_banner",
		"-y",
		"-i", input,
		"-pass", "1",
		"-filter:a", "loudnorm=print_format=json",
		"-f", "null", "-",
	)
	if err != nil {
		return fmt.Errorf("normalize pass 1 on %q: %w", input, err)
	}
	if !res.success {
		return fmt.Errorf("normalize pass 1 on %q exited with failure; stderr: %s", input, res.stderr)
	}

	stats, err := parseLoudnormStats(res.stderr)
	if err != nil {
		return fmt.Errorf("parse loudnorm stats for %q: %w", input, err)
	}

	filter := fmt.Sprintf(
		"loudnorm=linear=true:measured_I=%s:measured_LRA=%s:measured_tp=%s:measured_thresh=%s",
		stats.InputI, stats.InputLRA, stats.InputTP, stats.InputThresh,
	)

	args := append([]string{}, ffxxxDefaultArgs...)
	args = append(args,
		"-y",
		"-i", input,
		"-pass", "2",
		"-filter:a", filter,
		"-c:a", "libopus", "-b:a", bitrate.String(),
		output,
	)
	if err := assertSuccessCommand(ctx, binFfmpeg, args...); err != nil {
		return fmt.Errorf("normalize pass 2 on %q: %w", input, err)
	}
	return nil
}

type loudnormStats struct {
	InputI      string `json:"input_i"`
	InputLRA    string `json:"input_lra"`
	InputTP     string `json:"input_tp"`
	InputThresh string `json:"input_thresh"`
}

// parseLoudnormStats extracts the JSON block ffmpeg's loudnorm filter
// prints to stderr. The block is the trailing run of lines starting at
// the last line that is exactly "{" through end of output.
func parseLoudnormStats(stderr []byte) (loudnormStats, error) {
	lines := strings.Split(string(stderr), "\n")

	start := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "{" {
			start = i
			break
		}
	}
	if start == -1 {
		return loudnormStats{}, fmt.Errorf("no JSON block found in ffmpeg stderr")
	}

	jsonStr := strings.Join(lines[start:], "\n")

	var stats loudnormStats
	if err := json.Unmarshal([]byte(jsonStr), &stats); err != nil {
		return loudnormStats{}, fmt.Errorf("unmarshal loudnorm json: %w", err)
	}
	return stats, nil
}
