// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package msvcutil provides utilities of msvc.
package msvcutil

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/ccdeps/execute"
	"go.chromium.org/infra/build/ccdeps/runtimex"
	"go.chromium.org/infra/build/ccdeps/sync/semaphore"
	"go.chromium.org/infra/build/ccdeps/toolsupport/gccutil"
	"go.chromium.org/infra/build/ccdeps/toolsupport/makeutil"
)

// msvc may localized text, but we assume developers don't use that.
const depsPrefix = "Note: including file:"

// ParseShowIncludes parses /showIncludes outputs, and returns a list of inputs and other outputs.
func ParseShowIncludes(b []byte) ([]string, []byte) {
	// showIncludes contents
	//  Note: including file:  <pathname>\r\n
	//
	// other lines will be normal stdout/stderr (e.g. compiler error message)
	var deps []string
	var outs []byte
	for s := b; len(s) > 0; {
		line := s
		i := bytes.IndexAny(s, "\r\n")
		if i >= 0 {
			line, s = s[:i], s[i:]
		} else {
			s = nil
		}
		var eol []byte
		for _, c := range []byte("\r\n") {
			if len(s) > 0 && s[0] == c {
				eol = append(eol, c)
				s = s[1:]
			}
		}
		if p, ok := bytes.CutPrefix(line, []byte(depsPrefix)); ok {
			deps = append(deps, string(bytes.TrimSpace(p)))
			continue
		}
		outs = append(outs, line...)
		outs = append(outs, eol...)
	}
	return deps, outs
}

// Semaphore limits the number of concurrent compiler processes.
var Semaphore = semaphore.New("deps-msvc", runtimex.NumCPU()*2)

// IsMSVC reports whether args runs cl.exe or clang-cl.
func IsMSVC(args []string) bool {
	if len(args) == 0 {
		return false
	}
	base := strings.ToLower(path.Base(strings.ReplaceAll(args[0], `\`, "/")))
	base = strings.TrimSuffix(base, ".exe")
	return base == "cl" || base == "clang-cl"
}

// flagName returns the name of msvc flag arg without / or -.
func flagName(arg string) (string, bool) {
	if len(arg) < 2 || (arg[0] != '/' && arg[0] != '-') {
		return "", false
	}
	return arg[1:], true
}

// droppedFlags are flags for actions replaced by /Zs.
var droppedFlags = map[string]bool{
	"c":  true,
	"E":  true,
	"EP": true,
	"P":  true,
	"Zs": true,
}

// droppedPrefixes are prefixes of flags that write or read output
// files, such as objects, pdbs and precompiled headers.
var droppedPrefixes = []string{"showIncludes", "Fo", "Fd", "Fe", "Fa", "FA", "Fi", "Fp", "Yc", "Yu", "sourceDependencies"}

// DepsArgs returns command line args to get deps for args.
// The command only checks syntax with /Zs, and lists include files
// with /showIncludes. Flags that write files are removed.
func DepsArgs(args []string) ([]string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return nil, fmt.Errorf("%w: empty command", gccutil.ErrUsage)
	}
	dargs := []string{args[0], "/Zs", "/showIncludes"}
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if strings.TrimSpace(arg) == "" {
			continue
		}
		name, ok := flagName(arg)
		if !ok {
			dargs = append(dargs, arg)
			continue
		}
		if droppedFlags[name] {
			continue
		}
		if name == "sourceDependencies" {
			// /sourceDependencies <file>
			i++
			continue
		}
		if slices.ContainsFunc(droppedPrefixes, func(p string) bool { return strings.HasPrefix(name, p) }) {
			continue
		}
		dargs = append(dargs, arg)
	}
	return dargs, nil
}

// ExtractMacros returns /D and /U (or -D and -U) macros in args.
func ExtractMacros(args []string) ([]gccutil.Macro, error) {
	gargs := make([]string, 0, len(args))
	for _, arg := range args {
		if strings.HasPrefix(arg, "/D") || strings.HasPrefix(arg, "/U") {
			arg = "-" + arg[1:]
		}
		gargs = append(gargs, arg)
	}
	return gccutil.ExtractMacros(gargs)
}

// Deps runs cmd and returns the rule of src with its include files.
// cmd should be the one returned by DepsArgs.
func Deps(ctx context.Context, ex execute.Executor, cmd *execute.Cmd, src string) (makeutil.Rule, error) {
	s := time.Now()
	var wait time.Duration
	err := Semaphore.Do(ctx, func(ctx context.Context) error {
		wait = time.Since(s)
		return ex.Run(ctx, cmd)
	})
	if err != nil {
		log.Warnf("failed to run %s: %v\n%s%s", cmd.Command(), err, cmd.Stdout(), cmd.Stderr())
		return makeutil.Rule{}, fmt.Errorf("%w: %s in %s: %w\n%s%s", gccutil.ErrProcess, cmd.Command(), cmd.Dir, err, cmd.Stdout(), cmd.Stderr())
	}
	// cl.exe writes /showIncludes to stdout, and clang-cl may write to stderr.
	var deps []string
	for _, b := range [][]byte{cmd.Stdout(), cmd.Stderr()} {
		d, extra := ParseShowIncludes(b)
		if len(extra) > 0 {
			log.Debugf("msvc deps %s extra:%q", cmd.ID, extra)
		}
		deps = append(deps, d...)
	}
	log.Debugf("msvc deps %s -> deps:%d %s (wait:%s)", cmd.ID, len(deps), time.Since(s), wait)
	return makeutil.Rule{
		Target:        src,
		Prerequisites: append([]string{src}, deps...),
	}, nil
}
