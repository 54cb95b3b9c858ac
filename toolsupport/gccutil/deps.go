// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package gccutil provides utilities of gcc.
package gccutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/ccdeps/execute"
	"go.chromium.org/infra/build/ccdeps/runtimex"
	"go.chromium.org/infra/build/ccdeps/sync/semaphore"
	"go.chromium.org/infra/build/ccdeps/toolsupport/makeutil"
)

var (
	// ErrUsage is returned for a malformed compiler command line.
	ErrUsage = errors.New("malformed compiler command")

	// ErrProcess is returned when the compiler exits with non-zero
	// or could not be started.
	ErrProcess = errors.New("compiler failed")
)

// DefaultDepsFlag lists prerequisites without compiling.
const DefaultDepsFlag = "-MM"

// Semaphore limits the number of concurrent compiler processes.
var Semaphore = semaphore.New("deps-gcc", runtimex.NumCPU()*2)

// DepsArgs returns command line args to get deps for args.
// depsFlag is inserted right after the compiler, and "-MM" is used
// if it is empty.
// Output flags ("-o path" or "-opath") are removed, as are flags that
// write depfiles as a side effect of compiling.
// It returns ErrUsage if args starts with "-o", or has more than one
// output flag.
func DepsArgs(args []string, depsFlag string) ([]string, error) {
	if depsFlag == "" {
		depsFlag = DefaultDepsFlag
	}
	args = nonEmpty(args)
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrUsage)
	}
	if isOutputFlag(args[0]) {
		return nil, fmt.Errorf("%w: command starts with output flag: %q", ErrUsage, args)
	}
	dargs := []string{args[0], depsFlag}
	outputs := 0
	for i := 1; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-o":
			outputs++
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%w: missing argument to -o: %q", ErrUsage, args)
			}
			i++
			continue
		case "-M", "-MM", "-MD", "-MMD", "-MP", "-c":
			continue
		case "-MF", "-MT", "-MQ":
			i++
			continue
		}
		switch {
		case isOutputFlag(arg):
			outputs++
			continue
		case strings.HasPrefix(arg, "-MF"):
			continue
		}
		dargs = append(dargs, arg)
	}
	if outputs > 1 {
		return nil, fmt.Errorf("%w: ambiguous output flag: %q", ErrUsage, args)
	}
	return dargs, nil
}

// OutputPath returns the value of the output flag in args, if any.
func OutputPath(args []string) string {
	for i := 1; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-o":
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		case isOutputFlag(arg):
			return strings.TrimPrefix(arg, "-o")
		}
	}
	return ""
}

// isOutputFlag reports whether arg is "-o" or "-o<path>".
// clang's -objc* and -object* flags are not output flags.
func isOutputFlag(arg string) bool {
	return strings.HasPrefix(arg, "-o") && !strings.HasPrefix(arg, "-obj")
}

func nonEmpty(args []string) []string {
	var r []string
	for _, arg := range args {
		if strings.TrimSpace(arg) == "" {
			continue
		}
		r = append(r, arg)
	}
	return r
}

// Deps runs cmd with ex and returns the make rule printed on its stdout.
// cmd.Args should be the ones returned by DepsArgs.
func Deps(ctx context.Context, ex execute.Executor, cmd *execute.Cmd) (makeutil.Rule, error) {
	s := time.Now()
	var wait time.Duration
	err := Semaphore.Do(ctx, func(ctx context.Context) error {
		wait = time.Since(s)
		return ex.Run(ctx, cmd)
	})
	if err != nil {
		log.Warnf("failed to run %s: %v\n%s", cmd.Command(), err, cmd.Stderr())
		return makeutil.Rule{}, fmt.Errorf("%w: %s in %s: %w\n%s", ErrProcess, cmd.Command(), cmd.Dir, err, cmd.Stderr())
	}
	stdout := cmd.Stdout()
	if len(stdout) == 0 {
		log.Warnf("failed to run gcc deps? stdout:0 args:%q\nstderr:%s", cmd.Args, cmd.Stderr())
	}
	rule, err := makeutil.ParseRule(stdout)
	if err != nil {
		return makeutil.Rule{}, err
	}
	log.Debugf("gcc deps %s stdout:%d -> deps:%d: %s (wait:%s)", cmd.ID, len(stdout), len(rule.Prerequisites), time.Since(s), wait)
	return rule, nil
}
