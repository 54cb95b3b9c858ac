// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package execute runs commands.
package execute

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"go.chromium.org/infra/build/ccdeps/toolsupport/shutil"
)

// Executor is an interface to run the cmd.
type Executor interface {
	Run(ctx context.Context, cmd *Cmd) error
}

// Cmd includes all the information required to run a compiler command.
type Cmd struct {
	// ID is used as a unique identifier for this command in logs.
	// It does not have to be human-readable, so using a UUID is fine.
	ID string

	// Desc is a short, human-readable identifier that is shown to the user when referencing this command in a log.
	// Example: "DEPS hello.c"
	Desc string

	// Args holds command line arguments.
	Args []string

	// Env specifies the environment of the process.
	// If nil, the process inherits the current environment.
	Env []string

	// Dir specifies the absolute working directory of the cmd.
	// It is passed to the process, and never changes the working
	// directory of the current process.
	Dir string

	// Timeout is the time limit of the cmd. 0 means no limit.
	Timeout time.Duration

	stderrWriter               io.Writer
	stdoutBuffer, stderrBuffer bytes.Buffer

	// Rusage is resource usage of the cmd, if available.
	Rusage Rusage
}

// Rusage is resource usage of an executed cmd.
type Rusage struct {
	MaxRSS int64
	Utime  time.Duration
	Stime  time.Duration
}

// String returns an ID of the cmd.
func (c *Cmd) String() string {
	return c.ID
}

// Command returns a command line string.
func (c *Cmd) Command() string {
	if len(c.Args) == 3 && c.Args[0] == "/bin/sh" && c.Args[1] == "-c" {
		return c.Args[2]
	}
	return shutil.Join(c.Args)
}

// SetStderrWriter sets w to receive stderr as well as the buffer.
func (c *Cmd) SetStderrWriter(w io.Writer) {
	c.stderrWriter = w
}

// StdoutWriter returns a writer for stdout.
func (c *Cmd) StdoutWriter() io.Writer {
	c.stdoutBuffer.Reset()
	return &c.stdoutBuffer
}

// StderrWriter returns a writer set for stderr.
func (c *Cmd) StderrWriter() io.Writer {
	c.stderrBuffer.Reset()
	if c.stderrWriter == nil {
		return &c.stderrBuffer
	}
	return io.MultiWriter(c.stderrWriter, &c.stderrBuffer)
}

// Stdout returns stdout output of the cmd.
func (c *Cmd) Stdout() []byte {
	return c.stdoutBuffer.Bytes()
}

// Stderr returns stderr output of the cmd.
func (c *Cmd) Stderr() []byte {
	return c.stderrBuffer.Bytes()
}

// ExitError is an error of cmd exit.
type ExitError struct {
	ExitCode int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("exit=%d", e.ExitCode)
}
