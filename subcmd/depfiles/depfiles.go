// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package depfiles is depfiles subcommand to collect prerequisites
// from *.d files generated by compilers.
package depfiles

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/ccdeps/output"
	"go.chromium.org/infra/build/ccdeps/runtimex"
	"go.chromium.org/infra/build/ccdeps/toolsupport/makeutil"
	"go.chromium.org/infra/build/ccdeps/toolsupport/pathutil"
	"go.chromium.org/infra/build/ccdeps/ui"
)

const usage = `collect prerequisites from *.d files

 $ ccdeps depfiles [-o <output>] [<dir>]

finds *.d files generated by compilers with -MD or -MMD under <dir>
(default: current directory), and writes all prerequisites of their
rules to <output>, one per line, sorted.
Relative prerequisites are resolved against the directory of the *.d file.
*.d files without any sibling file of the same stem are skipped as orphans.
`

// Cmd returns the Command for the `depfiles` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "depfiles [-o <output>] [<dir>]",
		ShortDesc: "collect prerequisites from *.d files",
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

	output string
	force  bool
}

func (c *run) init() {
	c.Flags.StringVar(&c.output, "o", "output_d_dependencies.txt", "output filename")
	c.Flags.BoolVar(&c.force, "f", false, "overwrite existing output without asking")
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
	root := "."
	switch len(args) {
	case 0:
	case 1:
		root = args[0]
	default:
		return fmt.Errorf("too many arguments %q: %w", args, flag.ErrHelp)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	fi, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}
	err = ui.ConfirmOverwrite(c.force, c.output)
	if err != nil {
		return err
	}
	spin := ui.Default.NewSpinner()
	spin.Start("scanning *.d in %s", root)
	dfiles, err := findDepfiles(root)
	spin.Stop(err)
	if err != nil {
		return err
	}
	deps, err := collect(ctx, os.DirFS(root), filepath.ToSlash(root), dfiles)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	err = output.WriteFileList(&buf, [][]string{deps}, true)
	if err != nil {
		return err
	}
	err = output.WriteFile(c.output, buf.Bytes())
	if err != nil {
		return err
	}
	ui.Default.PrintLines("\n", fmt.Sprintf("%d dependencies from %d *.d files in %s", len(deps), len(dfiles), c.output))
	return nil
}

// findDepfiles returns slash-separated paths of *.d files under root,
// relative to root, in lexical order.
// Orphan *.d files, i.e. without <stem>.* sibling, are skipped.
func findDepfiles(root string) ([]string, error) {
	var dfiles []string
	err := filepath.WalkDir(root, func(fname string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		ents, err := os.ReadDir(fname)
		if err != nil {
			return err
		}
		stems := make(map[string]int)
		for _, ent := range ents {
			name := ent.Name()
			i := strings.IndexByte(name[1:], '.')
			if i < 0 {
				continue
			}
			// "a.o.d" counts for stem "a" and stem "a.o".
			for j := i + 1; j < len(name); j++ {
				if name[j] == '.' {
					stems[name[:j]]++
				}
			}
		}
		for _, ent := range ents {
			name := ent.Name()
			if ent.IsDir() || !strings.HasSuffix(name, ".d") {
				continue
			}
			rel, err := filepath.Rel(root, filepath.Join(fname, name))
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			stem := strings.TrimSuffix(name, ".d")
			if stems[stem] < 2 {
				log.Warnf("orphan: %s", rel)
				continue
			}
			dfiles = append(dfiles, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(dfiles)
	return dfiles, nil
}

// collect parses dfiles on fsys, and returns the sorted union of
// prerequisites. root is the absolute slash-separated path of fsys.
// Unparsable *.d files are reported and skipped.
func collect(ctx context.Context, fsys fs.FS, root string, dfiles []string) ([]string, error) {
	var n pathutil.Normalizer
	results := make([][]string, len(dfiles))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtimex.NumCPU())
	for i, dfile := range dfiles {
		eg.Go(func() error {
			inputs, err := makeutil.ParseDepsFile(ctx, fsys, dfile)
			if err != nil {
				log.Warnf("parse %s: %v", dfile, err)
				return nil
			}
			base := pathutil.Join(root, path.Dir(dfile))
			deps := make([]string, 0, len(inputs))
			for _, p := range inputs {
				np, err := n.Normalize(base, p)
				if err != nil {
					return fmt.Errorf("%s: %w", dfile, err)
				}
				deps = append(deps, np)
			}
			results[i] = deps
			return nil
		})
	}
	err := eg.Wait()
	if err != nil {
		return nil, err
	}
	var deps []string
	for _, r := range results {
		deps = append(deps, r...)
	}
	sort.Strings(deps)
	return slices.Compact(deps), nil
}
