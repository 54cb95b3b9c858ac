// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package localexec implements local command execution.
package localexec

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/ccdeps/execute"
	"go.chromium.org/infra/build/ccdeps/runtimex"
	"go.chromium.org/infra/build/ccdeps/sync/semaphore"
)

// LocalExec implements execute.Executor interface that runs commands locally.
type LocalExec struct{}

// Run runs cmd with DefaultExec.
func Run(ctx context.Context, cmd *execute.Cmd) error {
	return LocalExec{}.Run(ctx, cmd)
}

// fix for http://b/278658064 windows: fork/exec: Not enough memory resources are available to process this command.
var forkSema = semaphore.New("fork", runtimex.NumCPU())

// Run runs a cmd in cmd.Dir.
// It returns *execute.ExitError if the cmd exits with non-zero,
// and ctx.Err() if the cmd is killed by timeout or cancelation.
func (LocalExec) Run(ctx context.Context, cmd *execute.Cmd) error {
	if len(cmd.Args) == 0 {
		return fmt.Errorf("no arguments in the command. ID: %s", cmd.ID)
	}
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}
	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	c.Stdout = cmd.StdoutWriter()
	c.Stderr = cmd.StderrWriter()
	s := time.Now()
	err := forkSema.Do(ctx, func(ctx context.Context) error {
		return c.Start()
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", cmd.Desc, ctx.Err())
		}
		return fmt.Errorf("failed to start %q in %s: %w", cmd.Args[0], cmd.Dir, err)
	}
	err = c.Wait()
	cmd.Rusage = rusage(c)
	log.Debugf("%s %s exit=%d stdout=%d stderr=%d %s rss=%d", cmd.ID, cmd.Desc, exitCode(err), len(cmd.Stdout()), len(cmd.Stderr()), time.Since(s), cmd.Rusage.MaxRSS)
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", cmd.Desc, ctx.Err())
	}
	if err != nil {
		return &execute.ExitError{ExitCode: exitCode(err)}
	}
	return nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var eerr *exec.ExitError
	if !errors.As(err, &eerr) {
		return 1
	}
	if w, ok := eerr.ProcessState.Sys().(syscall.WaitStatus); ok {
		return w.ExitStatus()
	}
	return 1
}
