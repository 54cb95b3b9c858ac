// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package cmakelists is cmakelists subcommand to generate CMakeLists.txt
// from a compilation database.
package cmakelists

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/ccdeps/cmake"
	"go.chromium.org/infra/build/ccdeps/compdb"
	"go.chromium.org/infra/build/ccdeps/output"
	"go.chromium.org/infra/build/ccdeps/ui"
)

const usage = `generate CMakeLists.txt from compilation database

 $ ccdeps cmakelists [-o <output>] [<compile_commands.json>]

writes an OBJECT library per entry of <compile_commands.json>, with its
compile options, definitions and include directories, so that IDEs
supporting cmake can open the sources.
Entries should be in the directory of <compile_commands.json>, as
relative paths are left as they are.
`

// Cmd returns the Command for the `cmakelists` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "cmakelists [-o <output>] [<compile_commands.json>]",
		ShortDesc: "generate CMakeLists.txt",
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
	c.Flags.StringVar(&c.output, "o", "CMakeLists.txt", "output filename")
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
	input := compdb.DefaultFilename
	switch len(args) {
	case 0:
	case 1:
		input = args[0]
	default:
		return fmt.Errorf("too many arguments %q: %w", args, flag.ErrHelp)
	}
	err := ui.ConfirmOverwrite(c.force, c.output)
	if err != nil {
		return err
	}
	db, err := compdb.Load(ctx, input)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	err = cmake.Generate(&buf, db)
	if err != nil {
		return err
	}
	err = output.WriteFile(c.output, buf.Bytes())
	if err != nil {
		return err
	}
	ui.Default.PrintLines("\n", fmt.Sprintf("%d targets in %s", len(db.Entries), c.output))
	return nil
}
