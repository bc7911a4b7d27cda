// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/nicomem/gawr/internal/cache"
	"github.com/nicomem/gawr/internal/reserve"
	"github.com/nicomem/gawr/internal/transformer"
	"github.com/nicomem/gawr/internal/types"
)

// ClipWorker is one instance of the Clip stage's worker pool. All state
// is read-only except the cache and the filesystem, so many instances
// may run the same code concurrently over a shared input channel.
type ClipWorker struct {
	ID          int
	Transformer transformer.Transformer
	OutDir      string
	Ext         types.Extension
	Cache       cache.DB
	Bitrate     types.Bitrate

	log *slog.Logger
}

// Run drains in until it is closed, sending each produced clip's title
// to out as a liveness signal. Worker 0 performs
// a one-shot startup sweep of stale ".empty" placeholders before
// consuming its first message.
func (w *ClipWorker) Run(ctx context.Context, in <-chan TimestampedClip, out chan<- string) error {
	w.log = slog.With("stage", "clip", "worker_id", w.ID)

	if w.ID == 0 {
		if err := reserve.SweepStale(w.OutDir); err != nil {
			w.log.Warn("could not fully sweep stale placeholders", "error", err)
		}
	}

	w.log.Debug("clip worker started")

	for msg := range in {
		if err := w.processOne(ctx, msg); err != nil {
			return err
		}

		select {
		case out <- msg.Start.Title:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	w.log.Debug("clip worker stopped")
	return nil
}

func (w *ClipWorker) processOne(ctx context.Context, msg TimestampedClip) error {
	log := w.log
	if log == nil {
		log = slog.With("stage", "clip", "worker_id", w.ID)
	}

	stream := msg.Stream
	metadata := stream.Metadata

	if msg.End == nil && metadata.Title == msg.Start.Title {
		log.Info("clipping entire stream into one file", "title", metadata.Title)
	} else {
		endLabel := "END"
		if msg.End != nil {
			endLabel = msg.End.TStart
		}
		log.Info("clipping stream", "title", metadata.Title, "start", msg.Start.TStart, "end", endLabel, "output", msg.Start.Title)
	}

	placeholder, err := reserve.Path(w.OutDir, msg.Start.Title, w.Ext)
	if err != nil {
		return fmt.Errorf("reserve output path for %q: %w", msg.Start.Title, err)
	}

	clipTmp, err := os.CreateTemp("", "gawr-clip-*"+w.Ext.WithDot())
	if err != nil {
		return fmt.Errorf("create clip temp file: %w", err)
	}
	clipTmpPath := clipTmp.Name()
	clipTmp.Close()
	defer os.Remove(clipTmpPath)

	normTmp, err := os.CreateTemp("", "gawr-norm-*"+w.Ext.WithDot())
	if err != nil {
		return fmt.Errorf("create normalize temp file: %w", err)
	}
	normTmpPath := normTmp.Name()
	normTmp.Close()
	defer os.Remove(normTmpPath)

	album := fmt.Sprintf("%s (%s)", metadata.Title, stream.VideoID)

	if err := w.Transformer.ExtractClip(ctx, stream.File.Name(), clipTmpPath, msg.Start, msg.End, album); err != nil {
		return fmt.Errorf("extract clip %q: %w", msg.Start.Title, err)
	}

	if err := w.Transformer.NormalizeAudio(ctx, clipTmpPath, normTmpPath, w.Bitrate); err != nil {
		return fmt.Errorf("normalize clip %q: %w", msg.Start.Title, err)
	}

	if _, err := reserve.Publish(normTmpPath, placeholder, w.Ext); err != nil {
		return fmt.Errorf("publish clip %q: %w", msg.Start.Title, err)
	}

	if err := w.Cache.CompleteWork(ctx, stream.DbID, msg.ClipIdx); err != nil {
		return fmt.Errorf("mark clip %d complete for %q: %w", msg.ClipIdx, stream.VideoID, err)
	}

	if err := os.Remove(placeholder); err != nil {
		log.Warn("could not remove placeholder", "path", placeholder, "error", err)
	}

	log.Info("clip completed", "title", msg.Start.Title)

	if stream.Release() {
		if err := w.Cache.SetVideoAsCompleted(ctx, stream.DbID); err != nil {
			return fmt.Errorf("mark video %q completed: %w", stream.VideoID, err)
		}
		closeAndRemove(stream.File)
	}

	return nil
}
