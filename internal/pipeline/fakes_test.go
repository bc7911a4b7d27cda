// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/nicomem/gawr/internal/cache"
	"github.com/nicomem/gawr/internal/downloader"
	"github.com/nicomem/gawr/internal/types"
)

// fakeDB is an in-memory cache.DB for tests, with the same semantics as
// cache.Sqlite but without touching disk.
type fakeDB struct {
	mu      sync.Mutex
	nextID  types.DbVideoID
	byStr   map[types.VideoID]types.DbVideoID
	status  map[types.DbVideoID]cache.Status
	work    map[types.DbVideoID]map[types.ClipIdx]bool
	strByID map[types.DbVideoID]types.VideoID
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		byStr:   make(map[types.VideoID]types.DbVideoID),
		status:  make(map[types.DbVideoID]cache.Status),
		work:    make(map[types.DbVideoID]map[types.ClipIdx]bool),
		strByID: make(map[types.DbVideoID]types.VideoID),
	}
}

func (f *fakeDB) CheckVideo(_ context.Context, strID types.VideoID) (types.DbVideoID, cache.ProcessedState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.byStr[strID]
	if !ok {
		f.nextID++
		id = f.nextID
		f.byStr[strID] = id
		f.strByID[id] = strID
		f.status[id] = cache.NotProcessed
		return id, cache.ProcessedState{Status: cache.NotProcessed}, nil
	}

	if f.status[id] == cache.Completed {
		return id, cache.ProcessedState{Status: cache.Completed}, nil
	}

	work, ok := f.work[id]
	if !ok {
		return id, cache.ProcessedState{Status: cache.NotProcessed}, nil
	}

	var remaining []types.ClipIdx
	for idx, pending := range work {
		if pending {
			remaining = append(remaining, idx)
		}
	}
	return id, cache.ProcessedState{Status: cache.RemainingClips, Clips: remaining}, nil
}

func (f *fakeDB) AssignWork(_ context.Context, video types.DbVideoID, nbClips int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	work := make(map[types.ClipIdx]bool, nbClips)
	for i := 0; i < nbClips; i++ {
		work[types.ClipIdx(i)] = true
	}
	f.work[video] = work
	return nil
}

func (f *fakeDB) CompleteWork(_ context.Context, video types.DbVideoID, idx types.ClipIdx) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if work, ok := f.work[video]; ok {
		delete(work, idx)
	}
	return nil
}

func (f *fakeDB) SetVideoAsCompleted(_ context.Context, video types.DbVideoID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.status[video] = cache.Completed
	delete(f.work, video)
	return nil
}

func (f *fakeDB) CountVideos(_ context.Context, filter *cache.Status) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if filter == nil {
		return len(f.status), nil
	}
	n := 0
	for _, st := range f.status {
		if st == *filter {
			n++
		}
	}
	return n, nil
}

func (f *fakeDB) Close() error { return nil }

var _ cache.DB = (*fakeDB)(nil)

// fakeDownloader serves canned metadata/audio without touching a network
// or subprocess.
type fakeDownloader struct {
	playlist    []types.VideoID
	metadata    map[types.VideoID]types.Metadata
	unavailable map[types.VideoID]bool
	audioBody   string
}

func (d *fakeDownloader) GetPlaylistVideosID(_ context.Context, _ string) ([]types.VideoID, error) {
	return d.playlist, nil
}

func (d *fakeDownloader) GetMetadata(_ context.Context, videoID types.VideoID) (types.Metadata, error) {
	if d.unavailable[videoID] {
		return types.Metadata{}, fmt.Errorf("video %q: %w", videoID, downloader.ErrUnavailableStream)
	}
	return d.metadata[videoID], nil
}

func (d *fakeDownloader) DownloadAudio(_ context.Context, path string, videoID types.VideoID) error {
	if d.unavailable[videoID] {
		return fmt.Errorf("video %q: %w", videoID, downloader.ErrUnavailableStream)
	}
	body := d.audioBody
	if body == "" {
		body = "audio bytes"
	}
	return os.WriteFile(path, []byte(body), 0o644)
}

// fakeTransformer writes deterministic placeholder bytes instead of
// invoking ffmpeg, so clip.go's file-handling logic can be exercised
// without the real binary.
type fakeTransformer struct {
	mu           sync.Mutex
	extractCalls int
	normCalls    int
}

func (t *fakeTransformer) ExtractClip(_ context.Context, _, output string, _ types.Timestamp, _ *types.Timestamp, _ string) error {
	t.mu.Lock()
	t.extractCalls++
	t.mu.Unlock()
	return os.WriteFile(output, []byte("clip"), 0o644)
}

func (t *fakeTransformer) NormalizeAudio(_ context.Context, _, output string, _ types.Bitrate) error {
	t.mu.Lock()
	t.normCalls++
	t.mu.Unlock()
	return os.WriteFile(output, []byte("normalized"), 0o644)
}
