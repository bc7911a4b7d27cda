// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicomem/gawr/internal/cache"
	"github.com/nicomem/gawr/internal/types"
)

func newClipWorker(t *testing.T, db *fakeDB, tf *fakeTransformer) (*ClipWorker, string) {
	t.Helper()
	outDir := t.TempDir()
	return &ClipWorker{
		ID:          0,
		Transformer: tf,
		OutDir:      outDir,
		Ext:         types.ExtOgg,
		Cache:       db,
		Bitrate:     96,
	}, outDir
}

func TestClipWorkerProcessOneProducesFileAndCompletesWork(t *testing.T) {
	db := newFakeDB()
	tf := &fakeTransformer{}
	worker, outDir := newClipWorker(t, db, tf)

	dbID, _, err := db.CheckVideo(context.Background(), "V")
	require.NoError(t, err)
	require.NoError(t, db.AssignWork(context.Background(), dbID, 1))

	file := newTempStreamFile(t)
	info := NewStreamInfo("V", dbID, file, types.Metadata{Title: "Video"})
	info.Acquire() // the single clip message's share
	info.ReleaseFanout()

	msg := TimestampedClip{
		Stream:  info,
		ClipIdx: 0,
		Start:   types.Timestamp{TStart: "0:00", Title: "Intro"},
		End:     nil,
	}

	require.NoError(t, worker.processOne(context.Background(), msg))

	require.FileExists(t, filepath.Join(outDir, "Intro.ogg"))
	require.NoFileExists(t, filepath.Join(outDir, "Intro.empty"))
	require.Equal(t, 1, tf.extractCalls)
	require.Equal(t, 1, tf.normCalls)

	_, state, err := db.CheckVideo(context.Background(), "V")
	require.NoError(t, err)
	require.Equal(t, cache.Completed, state.Status, "releasing the last share must finalize the video")
}

func TestClipWorkerProcessOneLeavesVideoOpenUntilLastShare(t *testing.T) {
	db := newFakeDB()
	tf := &fakeTransformer{}
	worker, _ := newClipWorker(t, db, tf)

	dbID, _, err := db.CheckVideo(context.Background(), "V")
	require.NoError(t, err)
	require.NoError(t, db.AssignWork(context.Background(), dbID, 2))

	file := newTempStreamFile(t)
	info := NewStreamInfo("V", dbID, file, types.Metadata{Title: "Video"})
	info.Acquire() // first clip's share, released by processOne below
	info.Acquire() // second clip's share, still held when the test checks the cache
	info.ReleaseFanout()

	first := TimestampedClip{Stream: info, ClipIdx: 0, Start: types.Timestamp{TStart: "0:00", Title: "A"}, End: &types.Timestamp{TStart: "3:00", Title: "B"}}
	require.NoError(t, worker.processOne(context.Background(), first))

	_, state, err := db.CheckVideo(context.Background(), "V")
	require.NoError(t, err)
	require.Equal(t, cache.RemainingClips, state.Status, "video must stay open while a clip share is still held")
	require.NoError(t, file.Close())
}

func TestClipWorkerRunSendsLivenessPerClip(t *testing.T) {
	db := newFakeDB()
	tf := &fakeTransformer{}
	worker, _ := newClipWorker(t, db, tf)

	dbID, _, err := db.CheckVideo(context.Background(), "V")
	require.NoError(t, err)
	require.NoError(t, db.AssignWork(context.Background(), dbID, 2))

	file := newTempStreamFile(t)
	info := NewStreamInfo("V", dbID, file, types.Metadata{Title: "Video"})
	info.Acquire()
	info.Acquire()
	info.ReleaseFanout()

	in := make(chan TimestampedClip, 2)
	in <- TimestampedClip{Stream: info, ClipIdx: 0, Start: types.Timestamp{TStart: "0:00", Title: "A"}, End: &types.Timestamp{TStart: "3:00", Title: "B"}}
	in <- TimestampedClip{Stream: info, ClipIdx: 1, Start: types.Timestamp{TStart: "3:00", Title: "B"}, End: nil}
	close(in)

	out := make(chan string, 2)
	require.NoError(t, worker.Run(context.Background(), in, out))
	close(out)

	var titles []string
	for title := range out {
		titles = append(titles, title)
	}
	require.ElementsMatch(t, []string{"A", "B"}, titles)

	_, state, err := db.CheckVideo(context.Background(), "V")
	require.NoError(t, err)
	require.Equal(t, cache.Completed, state.Status)
}

func TestClipWorkerSweepsStaleOnWorkerZero(t *testing.T) {
	db := newFakeDB()
	tf := &fakeTransformer{}
	worker, outDir := newClipWorker(t, db, tf)

	require.NoError(t, os.WriteFile(filepath.Join(outDir, "Stale.empty"), nil, 0o644))

	in := make(chan TimestampedClip)
	close(in)
	out := make(chan string)

	require.NoError(t, worker.Run(context.Background(), in, out))
	require.NoFileExists(t, filepath.Join(outDir, "Stale.empty"))
}
