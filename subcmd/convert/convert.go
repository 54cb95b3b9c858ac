// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package convert is convert subcommand to rewrite a compilation database
// in "command" or "arguments" form.
package convert

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/ccdeps/compdb"
	"go.chromium.org/infra/build/ccdeps/output"
	"go.chromium.org/infra/build/ccdeps/ui"
)

const usage = `convert compilation database form

 $ ccdeps convert [-form command|arguments] [-o <output>] [<compile_commands.json>]

rewrites each entry of <compile_commands.json> to "command" form
(default), or to "arguments" form. "command" is quoted so that it splits
to the same arguments. "output" of entries is kept.
The result is written to <output> (default: <compile_commands.json>.<timestamp>).

See https://clang.llvm.org/docs/JSONCompilationDatabase.html
`

// Cmd returns the Command for the `convert` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "convert [-form command|arguments] [-o <output>] [<compile_commands.json>]",
		ShortDesc: "convert compilation database form",
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

	form   compdb.Form
	output string
	force  bool

	now func() time.Time
}

func (c *run) init() {
	c.form = compdb.CommandForm
	c.Flags.Var(&c.form, "form", "form of the output: command or arguments")
	c.Flags.StringVar(&c.output, "o", "", "output filename. default is <input>.<timestamp>")
	c.Flags.BoolVar(&c.force, "f", false, "overwrite existing output without asking")
	c.now = time.Now
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
	out := c.output
	if out == "" {
		out = input + "." + c.now().Format("2006-01-02_15-04-05_MST")
	}
	if out == input {
		return fmt.Errorf("output %s is the same as input: %w", out, flag.ErrHelp)
	}
	err := ui.ConfirmOverwrite(c.force, out)
	if err != nil {
		return err
	}
	db, err := compdb.Load(ctx, input)
	if err != nil {
		return err
	}
	entries, err := db.Convert(c.form)
	if err != nil {
		return err
	}
	b, err := compdb.Marshal(entries)
	if err != nil {
		return err
	}
	err = output.WriteFile(out, b)
	if err != nil {
		return err
	}
	ui.Default.PrintLines("\n", fmt.Sprintf("result: %s --> %s", input, out))
	return nil
}
