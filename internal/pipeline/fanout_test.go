// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicomem/gawr/internal/cache"
	"github.com/nicomem/gawr/internal/types"
)

func newTempStreamFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "stream-*.mkv")
	require.NoError(t, err)
	return f
}

func drainClips(ch <-chan TimestampedClip) []TimestampedClip {
	var out []TimestampedClip
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func TestFanoutFreshVideoAssignsAndEmitsAllClips(t *testing.T) {
	db := newFakeDB()
	actor := &FanoutActor{Cache: db}

	dbID, state, err := db.CheckVideo(context.Background(), "V")
	require.NoError(t, err)

	stream := DownloadedStream{
		VideoID:    "V",
		DbID:       dbID,
		File:       newTempStreamFile(t),
		Metadata:   types.Metadata{Title: "Video"},
		Timestamps: types.Timestamps{{TStart: "0:00", Title: "A"}, {TStart: "3:00", Title: "B"}, {TStart: "5:00", Title: "C"}},
		State:      state,
	}

	in := make(chan DownloadedStream, 1)
	in <- stream
	close(in)

	out := make(chan TimestampedClip, 3)
	require.NoError(t, actor.Run(context.Background(), in, out))

	clips := drainClips(out)
	require.Len(t, clips, 3)
	require.Equal(t, "A", clips[0].Start.Title)
	require.Equal(t, "B", clips[0].End.Title)
	require.Nil(t, clips[2].End)
}

func TestFanoutResumesFromRemainingClips(t *testing.T) {
	db := newFakeDB()
	actor := &FanoutActor{Cache: db}

	dbID, _, err := db.CheckVideo(context.Background(), "V")
	require.NoError(t, err)
	require.NoError(t, db.AssignWork(context.Background(), dbID, 3))
	require.NoError(t, db.CompleteWork(context.Background(), dbID, 0))

	_, state, err := db.CheckVideo(context.Background(), "V")
	require.NoError(t, err)
	require.Equal(t, cache.RemainingClips, state.Status)
	require.ElementsMatch(t, []types.ClipIdx{1, 2}, state.Clips)

	stream := DownloadedStream{
		VideoID:    "V",
		DbID:       dbID,
		File:       newTempStreamFile(t),
		Metadata:   types.Metadata{Title: "Video"},
		Timestamps: types.Timestamps{{TStart: "0:00", Title: "A"}, {TStart: "3:00", Title: "B"}, {TStart: "5:00", Title: "C"}},
		State:      state,
	}

	in := make(chan DownloadedStream, 1)
	in <- stream
	close(in)

	out := make(chan TimestampedClip, 2)
	require.NoError(t, actor.Run(context.Background(), in, out))

	clips := drainClips(out)
	require.Len(t, clips, 2, "index 0 must not be redone")
	gotIdx := []types.ClipIdx{clips[0].ClipIdx, clips[1].ClipIdx}
	require.ElementsMatch(t, []types.ClipIdx{1, 2}, gotIdx)
}

func TestFanoutNoRemainingWorkMarksCompleted(t *testing.T) {
	db := newFakeDB()
	actor := &FanoutActor{Cache: db}

	dbID, _, err := db.CheckVideo(context.Background(), "V")
	require.NoError(t, err)

	stream := DownloadedStream{
		VideoID:    "V",
		DbID:       dbID,
		File:       newTempStreamFile(t),
		Metadata:   types.Metadata{Title: "Video"},
		Timestamps: nil,
		State:      cache.ProcessedState{Status: cache.RemainingClips, Clips: nil},
	}

	in := make(chan DownloadedStream, 1)
	in <- stream
	close(in)

	out := make(chan TimestampedClip, 1)
	require.NoError(t, actor.Run(context.Background(), in, out))
	require.Empty(t, drainClips(out))

	_, state, err := db.CheckVideo(context.Background(), "V")
	require.NoError(t, err)
	require.Equal(t, cache.Completed, state.Status)
}

func TestFanoutCompletedStateIsAnError(t *testing.T) {
	db := newFakeDB()
	actor := &FanoutActor{Cache: db}

	stream := DownloadedStream{
		VideoID: "V",
		File:    newTempStreamFile(t),
		State:   cache.ProcessedState{Status: cache.Completed},
	}

	in := make(chan DownloadedStream, 1)
	in <- stream
	close(in)

	out := make(chan TimestampedClip, 1)
	err := actor.Run(context.Background(), in, out)
	require.Error(t, err, "fan-out should never see a video the download actor already filtered as completed")
}
