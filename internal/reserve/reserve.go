// SPDX-License-Identifier: MIT

// Package reserve implements the output-path reservation protocol: a
// process-wide critical section that hands out a unique final filename
// for a clip title before the clip itself has been produced, by creating
// a zero-byte ".empty" placeholder that reserves the name.
package reserve

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nicomem/gawr/internal/types"
)

const emptyExt = ".empty"

var mu sync.Mutex

// Path creates and returns the ".empty" placeholder reserving title's
// final output name in outDir for ext. The caller owns the placeholder:
// it must be replaced by the real file (with the extension swapped from
// ".empty" back to ext) and then removed.
func Path(outDir, title string, ext types.Extension) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	final, err := findUnusedName(outDir, title, ext)
	if err != nil {
		return "", err
	}

	placeholder := withExt(final, emptyExt)
	if err := touch(placeholder); err != nil {
		return "", fmt.Errorf("create placeholder %q: %w", placeholder, err)
	}
	return placeholder, nil
}

// findUnusedName returns the first "<title><ext>" / "<title> (n)<ext>"
// candidate for which neither the final name nor its ".empty" sibling
// exists.
func findUnusedName(outDir, title string, ext types.Extension) (string, error) {
	dotExt := ext.WithDot()

	candidate := filepath.Join(outDir, title+dotExt)
	if !exists(candidate) && !exists(withExt(candidate, emptyExt)) {
		return candidate, nil
	}

	for n := 2; n < 1<<16; n++ {
		candidate := filepath.Join(outDir, fmt.Sprintf("%s (%d)%s", title, n, dotExt))
		if !exists(candidate) && !exists(withExt(candidate, emptyExt)) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("could not find an unused output name for title %q in %q", title, outDir)
}

func withExt(path, ext string) string {
	return path[:len(path)-len(filepath.Ext(path))] + ext
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// Publish atomically renames tmp to its eventual published path (final,
// the placeholder path with its extension swapped from ".empty" to ext),
// falling back to copy-then-remove when rename fails (e.g. tmp and
// outDir live on different filesystems).
func Publish(tmpPath, placeholder string, ext types.Extension) (string, error) {
	final := withExt(placeholder, ext.WithDot())

	if err := os.Rename(tmpPath, final); err != nil {
		if copyErr := copyFile(tmpPath, final); copyErr != nil {
			return "", fmt.Errorf("publish %q (rename: %v, copy: %w)", final, err, copyErr)
		}
		if err := os.Remove(tmpPath); err != nil {
			return "", fmt.Errorf("remove temp file %q after copy: %w", tmpPath, err)
		}
	}
	return final, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.ReadFrom(in); err != nil {
		return err
	}
	return out.Sync()
}

// SweepStale removes every stale ".empty" placeholder left behind by a
// prior crashed run. Errors removing individual files are returned
// wrapped, but are not a reason to stop sweeping the rest.
func SweepStale(outDir string) error {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return fmt.Errorf("read output directory %q: %w", outDir, err)
	}

	var firstErr error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), emptyExt) {
			continue
		}
		path := filepath.Join(outDir, entry.Name())
		if err := os.Remove(path); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove stale placeholder %q: %w", path, err)
		}
	}
	return firstErr
}
