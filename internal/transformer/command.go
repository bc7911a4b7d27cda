// SPDX-License-Identifier: MIT

package transformer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

const binFfmpeg = "ffmpeg"

// ffxxxDefaultArgs are prepended to every ffmpeg invocation that should
// stay quiet unless something goes wrong.
var ffxxxDefaultArgs = []string{"-hide_banner", "-loglevel", "error"}

// commandResult is the outcome of running a subprocess to completion: it
// only returns an error if the process could not be started at all, as
// ffmpeg's own non-zero exit is just as meaningful a result to inspect.
type commandResult struct {
	stdout  []byte
	stderr  []byte
	success bool
}

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

	return res, nil
}

// assertSuccessCommand runs program and errors unless it exits zero.
func assertSuccessCommand(ctx context.Context, program string, args ...string) error {
	res, err := runCommand(ctx, program, args...)
	if err != nil {
		return err
	}
	if !res.success {
		return fmt.Errorf("%s exited with failure; stderr: %s", program, res.stderr)
	}
	return nil
}
