// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package ninjadeps is ninjadeps subcommand to list source files and
// macros from a compilation database, and include files from
// the ninja deps log of the build.
package ninjadeps

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/ccdeps/compdb"
	"go.chromium.org/infra/build/ccdeps/output"
	"go.chromium.org/infra/build/ccdeps/toolsupport/gccutil"
	"go.chromium.org/infra/build/ccdeps/toolsupport/ninjautil"
	"go.chromium.org/infra/build/ccdeps/toolsupport/pathutil"
	"go.chromium.org/infra/build/ccdeps/ui"
)

const usage = `list files from compilation database and ninja deps log

 $ ccdeps ninjadeps [-p <prefix>] [-all] <build_dir> [<source_root>]

reads compile_commands.json and .ninja_deps in <build_dir>, generated by
cmake with ninja generator, and writes
 <source_root>/<prefix>files.txt: source files, an empty line, and
   include files sorted.
 <source_root>/<prefix>macros.txt: -D/-U macros with their counts.

Unless -all is given, include files out of <source_root> are omitted.
If .ninja_deps doesn't exist, no include files are written.
`

// Cmd returns the Command for the `ninjadeps` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "ninjadeps [-p <prefix>] [-all] <build_dir> [<source_root>]",
		ShortDesc: "list files from compilation database and ninja deps log",
		LongDesc:  usage,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	dbName string
	prefix string
	all    bool
	force  bool
}

func (c *run) init() {
	c.Flags.StringVar(&c.dbName, "db", compdb.DefaultFilename, "compilation database filename (relative to <build_dir>)")
	c.Flags.StringVar(&c.prefix, "p", "output_compilecommands_", "prefix of output filenames")
	c.Flags.BoolVar(&c.all, "all", false, "include files out of <source_root>, such as system headers")
	c.Flags.BoolVar(&c.force, "f", false, "overwrite existing outputs without asking")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	err := c.run(ctx, args)
	if err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
			return 2
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func (c *run) run(ctx context.Context, args []string) error {
	var buildDir, srcRoot string
	switch len(args) {
	case 1:
		buildDir, srcRoot = args[0], "."
	case 2:
		buildDir, srcRoot = args[0], args[1]
	default:
		return fmt.Errorf("want <build_dir> [<source_root>]: %w", flag.ErrHelp)
	}
	buildDir, err := filepath.Abs(buildDir)
	if err != nil {
		return err
	}
	srcRoot, err = filepath.Abs(srcRoot)
	if err != nil {
		return err
	}
	for _, dir := range []string{buildDir, srcRoot} {
		fi, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
	}
	filesOut := filepath.Join(srcRoot, c.prefix+"files.txt")
	macrosOut := filepath.Join(srcRoot, c.prefix+"macros.txt")
	err = ui.ConfirmOverwrite(c.force, filesOut, macrosOut)
	if err != nil {
		return err
	}

	db, err := compdb.Load(ctx, filepath.Join(buildDir, c.dbName))
	if err != nil {
		return err
	}
	sources, macros, err := sourcesAndMacros(db)
	if err != nil {
		return err
	}
	includes, err := includeFiles(ctx, buildDir)
	if err != nil {
		return err
	}
	var root string
	if !c.all {
		root = pathutil.Clean(srcRoot)
	}
	includes = selectIncludes(sources, includes, root)
	log.Infof("sources=%d includes=%d macros=%d", len(sources), len(includes), len(macros))

	var buf bytes.Buffer
	err = output.WriteFileList(&buf, [][]string{sources}, false)
	if err != nil {
		return err
	}
	err = output.WriteFileList(&buf, [][]string{includes}, true)
	if err != nil {
		return err
	}
	if len(macros) == 0 {
		err = output.WriteFile(filesOut, buf.Bytes())
		if err != nil {
			return err
		}
		err = os.Remove(macrosOut)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	} else {
		var mbuf bytes.Buffer
		err = output.WriteMacroReport(&mbuf, macros, true)
		if err != nil {
			return err
		}
		err = output.WriteFiles(
			output.File{Name: filesOut, Data: buf.Bytes()},
			output.File{Name: macrosOut, Data: mbuf.Bytes()},
		)
		if err != nil {
			return err
		}
	}
	ui.Default.PrintLines("\n", fmt.Sprintf("results under %s", srcRoot))
	return nil
}

// sourcesAndMacros returns normalized source files in the database
// order, and macros of the commands.
func sourcesAndMacros(db *compdb.Database) ([]string, []gccutil.MacroCount, error) {
	var n pathutil.Normalizer
	var table gccutil.MacroTable
	var sources []string
	seen := make(map[string]bool)
	for i, e := range db.Entries {
		dir, err := db.EntryDir(i)
		if err != nil {
			return nil, nil, fmt.Errorf("entry %d (%s): %w", i, e.File, err)
		}
		src, err := n.Normalize(dir, e.File)
		if err != nil {
			return nil, nil, fmt.Errorf("entry %d (%s): %w", i, e.File, err)
		}
		if !seen[src] {
			seen[src] = true
			sources = append(sources, src)
		}
		args, err := db.Args(i)
		if err != nil {
			return nil, nil, fmt.Errorf("entry %d (%s): %w", i, e.File, err)
		}
		macros, err := gccutil.ExtractMacros(args)
		if err != nil {
			return nil, nil, fmt.Errorf("entry %d (%s): %w", i, e.File, err)
		}
		table.Add(macros...)
	}
	return sources, table.Sorted(), nil
}

// includeFiles returns normalized inputs of all outputs in the ninja
// deps log in buildDir.
func includeFiles(ctx context.Context, buildDir string) ([]string, error) {
	fname := filepath.Join(buildDir, ninjautil.DepsLogName)
	depsLog, err := ninjautil.LoadDepsLog(ctx, fname)
	if errors.Is(err, ninjautil.ErrNoDepsLog) {
		log.Warnf("%v; ignore include files", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var n pathutil.Normalizer
	var files []string
	for _, out := range depsLog.Outputs() {
		deps, _, err := depsLog.Get(out)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			p, err := n.Normalize(buildDir, dep)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", out, err)
			}
			files = append(files, p)
		}
	}
	return files, nil
}

// selectIncludes returns sorted includes that are not sources.
// If root is not empty, includes out of root are dropped.
func selectIncludes(sources, includes []string, root string) []string {
	seen := make(map[string]bool)
	for _, s := range sources {
		seen[s] = true
	}
	var files []string
	for _, p := range includes {
		if seen[p] {
			continue
		}
		seen[p] = true
		if root != "" {
			if _, ok := pathutil.Rel(root, p); !ok {
				continue
			}
		}
		files = append(files, p)
	}
	sort.Strings(files)
	return files
}
