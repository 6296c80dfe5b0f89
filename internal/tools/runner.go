package tools

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// Exit codes reported when the hook never produced one of its own.
const (
	ExitNotFound = 127
	ExitTimeout  = 124
)

// CommandRunner abstracts shell command execution for vendor hooks.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int32, error)
}

// ExecRunner executes commands on the local host. Env entries are appended to
// the inherited environment.
type ExecRunner struct {
	Dir string
	Env []string
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int32, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), stderr.Bytes(), 0, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return stdout.Bytes(), stderr.Bytes(), ExitTimeout, errors.Join(err, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), int32(exitErr.ExitCode()), err
	}

	exitCode := int32(1)
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		exitCode = ExitNotFound
	}
	return stdout.Bytes(), stderr.Bytes(), exitCode, err
}
