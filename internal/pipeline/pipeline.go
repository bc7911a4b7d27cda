// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"

	"github.com/nicomem/gawr/internal/cache"
	"github.com/nicomem/gawr/internal/downloader"
	"github.com/nicomem/gawr/internal/supervisor"
	"github.com/nicomem/gawr/internal/transformer"
	"github.com/nicomem/gawr/internal/types"
)

// Config is everything the pipeline needs to process one id (a playlist
// or a single video) into clips.
type Config struct {
	ID             string
	OutDir         string
	Downloader     downloader.Downloader
	Transformer    transformer.Transformer
	Cache          cache.DB
	Ext            types.Extension
	Bitrate        types.Bitrate
	ClipRegexes    []*regexp.Regexp
	SkipTimestamps bool
	Shuffle        bool
	NumWorkers     int
	RNG            *rand.Rand
}

// Run resolves Config.ID, then drives it through the Download, Fan-out,
// and Clip-worker stages until every video has been processed, returning
// the number of clips produced. It returns the first fatal error reported
// by any stage.
func Run(ctx context.Context, cfg Config) (int, error) {
	sourceCh, err := ResolveSource(ctx, cfg.Downloader, cfg.ID, cfg.Shuffle, cfg.RNG)
	if err != nil {
		return 0, err
	}

	// Download → Fan-out: pure rendezvous. This is the only backpressure
	// point against the downloader, limiting read-ahead to one video.
	downloadedCh := make(chan DownloadedStream)

	// Fan-out → Clip workers: one slot per worker, so Fan-out can prime
	// every worker with a clip before it blocks.
	clipCh := make(chan TimestampedClip, cfg.NumWorkers)

	// Clip workers → liveness: unbuffered, but drained continuously by the
	// counter goroutine below, which counts produced clips until the run ends.
	doneCh := make(chan string)

	sup := supervisor.New()

	downloadActor := &DownloadActor{
		DL:             cfg.Downloader,
		Cache:          cfg.Cache,
		SkipTimestamps: cfg.SkipTimestamps,
		ClipRegexes:    cfg.ClipRegexes,
	}
	sup.Add(namedService{name: "download", run: func(ctx context.Context) error {
		return downloadActor.Run(ctx, sourceCh, downloadedCh)
	}})

	fanoutActor := &FanoutActor{Cache: cfg.Cache}
	sup.Add(namedService{name: "fanout", run: func(ctx context.Context) error {
		return fanoutActor.Run(ctx, downloadedCh, clipCh)
	}})

	for i := 0; i < cfg.NumWorkers; i++ {
		worker := &ClipWorker{
			ID:          i,
			Transformer: cfg.Transformer,
			OutDir:      cfg.OutDir,
			Ext:         cfg.Ext,
			Cache:       cfg.Cache,
			Bitrate:     cfg.Bitrate,
		}
		sup.Add(namedService{name: fmt.Sprintf("clip-worker-%d", i), run: func(ctx context.Context) error {
			return worker.Run(ctx, clipCh, doneCh)
		}})
	}

	processed := 0
	counterDone := make(chan struct{})
	go func() {
		defer close(counterDone)
		for range doneCh {
			processed++
		}
	}()

	runErr := sup.Run(ctx)

	close(doneCh)
	<-counterDone

	return processed, runErr
}

type namedService struct {
	name string
	run  func(ctx context.Context) error
}

func (n namedService) Name() string { return n.name }
func (n namedService) Run(ctx context.Context) error { return n.run(ctx) }
