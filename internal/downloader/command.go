// SPDX-License-Identifier: MIT

package downloader

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

const (
	binYoutubeDL = "youtube-dl"
	binYtDlp     = "yt-dlp"
)

// commandResult is the outcome of running a subprocess to completion: it
// only returns an error if the process could not be started at all, since
// a non-zero exit is just as meaningful a result for the caller to inspect
// (the upstream tool's own convention is to tell failure kinds apart by
// stderr text, not by exit code alone).
type commandResult struct {
	stdout  []byte
	stderr  []byte
	success bool
}

// runCommand executes program with args, capturing stdout/stderr and the
// process's exit status. It only returns an error if the process could not
// be started.
func runCommand(ctx context.Context, program string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, program, args...)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	slog.Debug("executing command", "program", program, "args", args)
	runErr := cmd.Run()

	if _, ok := runErr.(*exec.ExitError); runErr != nil && !ok {
		return commandResult{}, fmt.Errorf("exec %s: %w", program, runErr)
	}

	res := commandResult{
		stdout:  outBuf.Bytes(),
		stderr:  errBuf.Bytes(),
		success: cmd.ProcessState != nil && cmd.ProcessState.Success(),
	}

	slog.Debug("command finished", "program", program, "success", res.success,
		"stdout_bytes", len(res.stdout), "stderr_bytes", len(res.stderr))
	slog.Log(ctx, slog.LevelDebug-4, "command output", "stdout", outBuf.String(), "stderr", errBuf.String())

	return res, nil
}

// assertSuccessCommand runs program and returns an error unless it exited
// zero; stdout is discarded and stderr appears only in that error. Used to
// probe whether a binary exists and is runnable.
func assertSuccessCommand(ctx context.Context, program string, args ...string) error {
	res, err := runCommand(ctx, program, args...)
	if err != nil {
		return err
	}
	if !res.success {
		return fmt.Errorf("%s %s: exited with failure; stderr: %s", program, strings.Join(args, " "), res.stderr)
	}
	return nil
}

// stderrSaysUnavailable reports whether stderr contains an ERROR: line
// whose lowercased text names the stream as private or unavailable.
func stderrSaysUnavailable(stderr []byte) bool {
	for _, line := range strings.Split(string(stderr), "\n") {
		if !strings.HasPrefix(line, "ERROR:") {
			continue
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "private") || strings.Contains(lower, "unavailable") {
			return true
		}
	}
	return false
}
