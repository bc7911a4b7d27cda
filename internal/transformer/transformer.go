// SPDX-License-Identifier: MIT

// Package transformer drives an external ffmpeg subprocess to cut and
// loudness-normalize audio clips.
package transformer

import (
	"context"

	"github.com/nicomem/gawr/internal/types"
)

// Transformer cuts a clip out of a raw stream and normalizes its
// loudness. Implementations must be safe for concurrent use by multiple
// Clip workers.
type Transformer interface {
	// ExtractClip copies the audio between start and end (or to the end
	// of the stream, if end is nil) from input to output without
	// re-encoding, stamping album as the only metadata tag.
	ExtractClip(ctx context.Context, input, output string, start types.Timestamp, end *types.Timestamp, album string) error

	// NormalizeAudio two-pass loudness-normalizes input into output at
	// the given output bitrate.
	NormalizeAudio(ctx context.Context, input, output string, bitrate types.Bitrate) error
}
