// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package resolver

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.chromium.org/infra/build/ccdeps/runtimex"
	"go.chromium.org/infra/build/ccdeps/toolsupport/gccutil"
)

// JobsEnv is the environment variable to override the default number of
// concurrent compiler invocations.
const JobsEnv = "CCDEPS_JOBS"

// PathStyle is a style of output paths.
type PathStyle int

const (
	// Absolute outputs absolute paths.
	Absolute PathStyle = iota
	// Relative outputs paths relative to Options.RelativeTo.
	// Paths outside of it stay absolute.
	Relative
)

// String returns the flag value of the style.
func (s PathStyle) String() string {
	if s == Relative {
		return "relative"
	}
	return "absolute"
}

// Set sets the style by the flag value. It implements flag.Value.
func (s *PathStyle) Set(v string) error {
	switch v {
	case "absolute":
		*s = Absolute
	case "relative":
		*s = Relative
	default:
		return fmt.Errorf("unknown path style %q; want absolute or relative", v)
	}
	return nil
}

// Options is an option for Resolver.
type Options struct {
	// Dedupe outputs each path once, at its first occurrence.
	Dedupe bool
	// Compact omits the empty line after each entry's paths.
	Compact bool
	// PathStyle is the style of output paths.
	PathStyle PathStyle
	// RelativeTo is the base of relative paths.
	// If empty, the directory of the database is used.
	RelativeTo string
	// EmitMacros collects -D/-U macros of commands.
	EmitMacros bool

	// Jobs is the number of concurrent compiler invocations.
	Jobs int
	// Timeout is the time limit of each compiler invocation.
	// 0 means no limit.
	Timeout time.Duration
	// DepsFlag is the flag to list prerequisites without compiling.
	DepsFlag string
	// Env is the environment of compiler invocations.
	// If nil, they inherit the current environment.
	Env []string
	// UseDepfiles reads existing <output>.d instead of invoking
	// the compiler.
	UseDepfiles bool
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		Dedupe:     true,
		Compact:    true,
		EmitMacros: true,
		Jobs:       defaultJobs(),
		DepsFlag:   gccutil.DefaultDepsFlag,
	}
}

func defaultJobs() int {
	if n, err := jobsFromEnv(); err == nil && n > 0 {
		return n
	}
	return runtimex.NumCPU()
}

func jobsFromEnv() (int, error) {
	v := os.Getenv(JobsEnv)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: invalid %s=%q", gccutil.ErrUsage, JobsEnv, v)
	}
	return n, nil
}

type uniqueFlag struct{ o *Options }

func (f uniqueFlag) String() string {
	if f.o == nil || f.o.Dedupe {
		return "unique"
	}
	return "full"
}

func (f uniqueFlag) Set(v string) error {
	switch v {
	case "unique":
		f.o.Dedupe = true
	case "full":
		f.o.Dedupe = false
	default:
		return fmt.Errorf("unknown paths %q; want unique or full", v)
	}
	return nil
}

// RegisterFlags registers flags for the option.
func (o *Options) RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.Var(uniqueFlag{o: o}, "paths", "unique: output each path once. full: output all paths of each entry")
	flagSet.BoolFunc("no_compact_paths", "insert an empty line between path groups", func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		o.Compact = !b
		return nil
	})
	flagSet.Var(&o.PathStyle, "path_style", "style of output paths: absolute or relative")
	flagSet.StringVar(&o.RelativeTo, "relative_to", o.RelativeTo, "base dir of relative paths. default is the directory of the database")
	flagSet.BoolVar(&o.EmitMacros, "macros", o.EmitMacros, "collect -D/-U macros")
	flagSet.IntVar(&o.Jobs, "j", o.Jobs, "number of concurrent compiler invocations. default can be set by $"+JobsEnv)
	flagSet.DurationVar(&o.Timeout, "timeout", o.Timeout, "time limit of each compiler invocation. 0 means no limit")
	flagSet.StringVar(&o.DepsFlag, "deps_flag", o.DepsFlag, "compiler flag to list prerequisites without compiling")
	flagSet.BoolVar(&o.UseDepfiles, "use_depfiles", o.UseDepfiles, "read existing <output>.d instead of invoking the compiler")
}

// Validate validates the option.
func (o Options) Validate() error {
	if _, err := jobsFromEnv(); err != nil {
		return err
	}
	if o.Jobs < 1 {
		return fmt.Errorf("%w: -j must be positive: %d", gccutil.ErrUsage, o.Jobs)
	}
	if o.Timeout < 0 {
		return fmt.Errorf("%w: -timeout must not be negative: %s", gccutil.ErrUsage, o.Timeout)
	}
	return nil
}
