// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/nicomem/gawr/internal/downloader"
	"github.com/nicomem/gawr/internal/types"
)

// ResolveSource resolves id (a playlist or a single video) into its
// member video ids via dl, optionally shuffling the order, and returns
// them already queued on a channel sized to hold every one of them
// without blocking — the Source → Download channel is unbounded, and a
// count known up front is the simplest way to express that with a plain
// Go channel. A failure to resolve the playlist is returned directly, so
// the pipeline never starts its workers on a list it couldn't fetch.
func ResolveSource(ctx context.Context, dl downloader.Downloader, id string, shuffle bool, rng *rand.Rand) (<-chan types.VideoID, error) {
	ids, err := dl.GetPlaylistVideosID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve %q to a list of videos: %w", id, err)
	}

	if shuffle {
		rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	}

	out := make(chan types.VideoID, len(ids))
	for _, vid := range ids {
		out <- vid
	}
	close(out)
	return out, nil
}
