// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package cmake generates CMakeLists.txt from a compilation database.
package cmake

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/ccdeps/compdb"
	"go.chromium.org/infra/build/ccdeps/toolsupport/gccutil"
	"go.chromium.org/infra/build/ccdeps/toolsupport/pathutil"
)

const header = `cmake_minimum_required(VERSION 3.5)
project(autogenerated)
#set(CMAKE_EXPORT_COMPILE_COMMANDS ON)

`

// Generate writes CMakeLists.txt for db to w.
// Each entry becomes an OBJECT library named target_<n>, n from 1.
// It warns about entries whose directory is not the database directory,
// as their relative paths would be resolved differently by cmake.
func Generate(w io.Writer, db *compdb.Database) error {
	for i, e := range db.Entries {
		if db.Dir != "" && !sameDir(db.Dir, e.Directory) {
			log.Warnf("entry %d: directory=%s, file=%s is not relative to %s", i, e.Directory, e.File, db.Dir)
		}
	}
	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, header)
	for i, e := range db.Entries {
		args, err := db.Args(i)
		if err != nil {
			return fmt.Errorf("entry %d (%s): %w", i, e.File, err)
		}
		p, err := gccutil.ParseCompileParams(args, e.File)
		if err != nil {
			return fmt.Errorf("entry %d (%s): %w", i, e.File, err)
		}
		target := fmt.Sprintf("target_%d", i+1)
		writeCommand(bw, "add_library", target+" OBJECT", []string{e.File})
		writeCommand(bw, "target_compile_options", target+" PRIVATE", p.Options)
		writeCommand(bw, "target_compile_definitions", target+" PRIVATE", p.Defines)
		writeCommand(bw, "target_include_directories", target+" PRIVATE", p.IncludeDirs)
		writeCommand(bw, "target_include_directories", target+" SYSTEM PRIVATE", p.SystemIncludeDirs)
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

func sameDir(a, b string) bool {
	if !pathutil.IsAbs(b) {
		return b == "." || b == ""
	}
	a, b = pathutil.Clean(a), pathutil.Clean(b)
	if pathutil.DetectStyle(a) == pathutil.NT {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// writeCommand writes a cmake command with one argument per line.
// It writes nothing if args is empty.
func writeCommand(w io.Writer, name, head string, args []string) {
	if len(args) == 0 {
		return
	}
	fmt.Fprintf(w, "%s(%s\n", name, head)
	for _, arg := range args {
		fmt.Fprintf(w, "    %s\n", quote(arg))
	}
	fmt.Fprintln(w, ")")
}

// quote quotes arg as a cmake quoted argument if needed.
// https://cmake.org/cmake/help/latest/manual/cmake-language.7.html#quoted-argument
func quote(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\n\"\\$;()#") {
		return arg
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, ";", `\;`)
	return `"` + r.Replace(arg) + `"`
}
