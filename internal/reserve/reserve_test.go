// SPDX-License-Identifier: MIT

package reserve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicomem/gawr/internal/types"
)

func TestPathReservesFirstAvailableName(t *testing.T) {
	dir := t.TempDir()

	placeholder, err := Path(dir, "Intro", types.ExtOgg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "Intro.empty"), placeholder)
	require.FileExists(t, placeholder)
}

func TestPathDisambiguatesCollisions(t *testing.T) {
	dir := t.TempDir()

	p1, err := Path(dir, "Intro", types.ExtOgg)
	require.NoError(t, err)

	p2, err := Path(dir, "Intro", types.ExtOgg)
	require.NoError(t, err)

	require.NotEqual(t, p1, p2)
	require.Equal(t, filepath.Join(dir, "Intro (2).empty"), p2)
}

func TestPathSkipsNamesWithExistingFinalFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Intro.ogg"), []byte("x"), 0o644))

	placeholder, err := Path(dir, "Intro", types.ExtOgg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "Intro (2).empty"), placeholder)
}

func TestPublishRenamesToFinalExtension(t *testing.T) {
	dir := t.TempDir()
	placeholder, err := Path(dir, "Intro", types.ExtOgg)
	require.NoError(t, err)

	tmp := filepath.Join(dir, "tmp-audio")
	require.NoError(t, os.WriteFile(tmp, []byte("audio bytes"), 0o644))

	final, err := Publish(tmp, placeholder, types.ExtOgg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "Intro.ogg"), final)
	require.FileExists(t, final)
	require.NoFileExists(t, tmp)
}

func TestSweepStaleRemovesEmptyPlaceholders(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Stale.empty"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Finished.ogg"), []byte("x"), 0o644))

	require.NoError(t, SweepStale(dir))

	require.NoFileExists(t, filepath.Join(dir, "Stale.empty"))
	require.FileExists(t, filepath.Join(dir, "Finished.ogg"))
}

func TestSweepStaleOnEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SweepStale(dir))
}

func TestSweepStaleIsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Stale.EMPTY"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Other.Empty"), nil, 0o644))

	require.NoError(t, SweepStale(dir))

	require.NoFileExists(t, filepath.Join(dir, "Stale.EMPTY"))
	require.NoFileExists(t, filepath.Join(dir, "Other.Empty"))
}
