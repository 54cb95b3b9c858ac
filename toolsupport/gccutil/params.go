// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package gccutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CompileParams are flags of a compile command, classified for
// build description generators.
type CompileParams struct {
	// Defines are values of -D flags.
	Defines []string
	// IncludeDirs are values of -I flags.
	IncludeDirs []string
	// SystemIncludeDirs are values of -isystem flags.
	SystemIncludeDirs []string
	// Options are the other flags, e.g. -iquote, -idirafter, -std=c++17.
	Options []string
}

// ParseCompileParams parses args of a command compiling file.
// It drops the compiler, the source file, -c and -o <path>.
// -iquote and -idirafter are kept in Options.
// -I dirs given before "-I-" become -iquote options.
// full set of command line flags for include dirs can be found in
// https://clang.llvm.org/docs/ClangCommandLineReference.html#include-path-management
func ParseCompileParams(args []string, file string) (CompileParams, error) {
	var p CompileParams
	if len(args) == 0 {
		return p, fmt.Errorf("%w: empty command", ErrUsage)
	}
	file = strings.TrimSpace(file)
	needValue := func(i int) error {
		if i+1 >= len(args) {
			return fmt.Errorf("%w: missing argument to %s: %q", ErrUsage, args[i], args)
		}
		return nil
	}
	for i := 1; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "", file, "-c":
			continue
		case "-I-":
			p.quoteIncludeDirs()
			continue
		case "-o", "-I", "-isystem", "-iquote", "-idirafter", "-D":
			if err := needValue(i); err != nil {
				return p, err
			}
			i++
			v := args[i]
			switch arg {
			case "-I":
				if v == "-" {
					p.quoteIncludeDirs()
					continue
				}
				p.IncludeDirs = append(p.IncludeDirs, v)
			case "-isystem":
				p.SystemIncludeDirs = append(p.SystemIncludeDirs, v)
			case "-iquote", "-idirafter":
				p.Options = append(p.Options, arg, v)
			case "-D":
				p.Defines = append(p.Defines, v)
			}
			continue
		}
		switch {
		case strings.HasPrefix(arg, "-iquote"), strings.HasPrefix(arg, "-idirafter"):
			p.Options = append(p.Options, arg)
		case strings.HasPrefix(arg, "-isystem"):
			p.SystemIncludeDirs = append(p.SystemIncludeDirs, strings.TrimPrefix(arg, "-isystem"))
		case strings.HasPrefix(arg, "-I"):
			p.IncludeDirs = append(p.IncludeDirs, strings.TrimPrefix(arg, "-I"))
		case strings.HasPrefix(arg, "-D"):
			p.Defines = append(p.Defines, strings.TrimPrefix(arg, "-D"))
		case isOutputFlag(arg):
		case filepath.Clean(arg) == filepath.Clean(file):
		default:
			p.Options = append(p.Options, arg)
		}
	}
	return p, nil
}

// quoteIncludeDirs turns -I dirs seen so far into -iquote options.
func (p *CompileParams) quoteIncludeDirs() {
	for _, dir := range p.IncludeDirs {
		p.Options = append(p.Options, "-iquote", dir)
	}
	p.IncludeDirs = nil
}
