// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nicomem/gawr/internal/cache"
	"github.com/nicomem/gawr/internal/config"
	"github.com/nicomem/gawr/internal/diagnostics"
	"github.com/nicomem/gawr/internal/downloader"
	"github.com/nicomem/gawr/internal/lock"
	"github.com/nicomem/gawr/internal/pipeline"
	"github.com/nicomem/gawr/internal/prompt"
	"github.com/nicomem/gawr/internal/transformer"
)

const (
	exitSuccess = 0
	exitError   = 1
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}

// run is the full gawr entry point, extracted from main for testability.
func run(ctx context.Context, args []string) error {
	cfg, err := config.LoadFromArgs(args, config.ConfigFilePath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if (cfg.ID == "" || cfg.Out == "" || cfg.Cache == "") && prompt.IsInteractive() {
		if err := prompt.FillMissing(cfg); err != nil {
			return fmt.Errorf("interactive prompt: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogger(cfg.LogLevel)

	ctx = setupSignalHandler(ctx)

	fileLock, err := lock.NewFileLock(cfg.Cache + ".lock")
	if err != nil {
		return fmt.Errorf("create lock: %w", err)
	}
	if err := fileLock.AcquireContext(ctx, lock.DefaultAcquireTimeout); err != nil {
		return fmt.Errorf("another gawr run is already using %q: %w", cfg.Cache, err)
	}
	defer func() {
		if err := fileLock.Release(); err != nil {
			slog.Warn("failed to release lock", "error", err)
		}
	}()

	db, err := cache.OpenSqlite(cfg.Cache)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Warn("failed to close cache", "error", err)
		}
	}()

	dl, err := downloader.NewYtdl(ctx)
	if err != nil {
		return fmt.Errorf("set up downloader: %w", err)
	}

	tf, err := transformer.NewFfmpeg(ctx)
	if err != nil {
		return fmt.Errorf("set up transformer: %w", err)
	}

	numWorkers := cfg.Cores
	if numWorkers == 0 {
		numWorkers = runtime.NumCPU() - 1
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	pipelineCfg := pipeline.Config{
		ID:             cfg.ID,
		OutDir:         cfg.Out,
		Downloader:     dl,
		Transformer:    tf,
		Cache:          db,
		Ext:            cfg.Ext,
		Bitrate:        cfg.Bitrate,
		ClipRegexes:    cfg.ClipRegexes,
		SkipTimestamps: cfg.Split == config.SplitFull,
		Shuffle:        cfg.Shuffle,
		NumWorkers:     numWorkers,
		RNG:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	startedAt := time.Now()
	processed, runErr := pipeline.Run(ctx, pipelineCfg)
	finishedAt := time.Now()

	summary := diagnostics.NewSummary(cfg.ID, processed, startedAt, finishedAt, runErr)
	diagnostics.Print(os.Stdout, summary)

	if runErr != nil {
		return fmt.Errorf("pipeline run: %w", runErr)
	}
	return nil
}

func setupLogger(level string) {
	var lvl slog.Level
	switch level {
	case "error":
		lvl = slog.LevelError
	case "warn":
		lvl = slog.LevelWarn
	case "debug":
		lvl = slog.LevelDebug
	case "trace":
		lvl = slog.LevelDebug - 4
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

// setupSignalHandler returns a context cancelled on SIGINT/SIGTERM. The
// pipeline stages stop at their next context check and running yt-dlp or
// ffmpeg subprocesses are killed; a clip whose subprocess is killed is not
// published.
func setupSignalHandler(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Warn("received interrupt, shutting down")
		cancel()
	}()

	return ctx
}
