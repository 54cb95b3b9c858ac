// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package files is files subcommand to list source and include files
// used by a compilation database.
package files

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/klauspost/cpuid/v2"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/ccdeps/compdb"
	"go.chromium.org/infra/build/ccdeps/output"
	"go.chromium.org/infra/build/ccdeps/resolver"
	"go.chromium.org/infra/build/ccdeps/ui"
)

// DefaultOutput is the default file list name.
const DefaultOutput = "compile_commands_filelist.txt"

const usage = `list source and include files of a compilation database

 $ ccdeps files [<flags>] [<compile_commands.json> [<output>]]

runs each compile command of <compile_commands.json> with -MM (or -deps_flag)
in its directory, and writes source files and the files they include
to <output> (default: compile_commands_filelist.txt).
-D/-U macros of the commands are written to -macros_out with their counts.

Outputs are written only when all commands succeed.
`

// Cmd returns the Command for the `files` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "files [<flags>] [<compile_commands.json> [<output>]]",
		ShortDesc: "list source and include files",
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

	opts      resolver.Options
	macrosOut string
	force     bool

	// newResolver is replaced in tests.
	newResolver func(resolver.Options) *resolver.Resolver
}

func (c *run) init() {
	c.opts = resolver.DefaultOptions()
	c.opts.RegisterFlags(&c.Flags)
	c.Flags.StringVar(&c.macrosOut, "macros_out", "compile_commands_macros.txt", "macro report filename. empty disables the report")
	c.Flags.BoolVar(&c.force, "f", false, "overwrite existing outputs without asking")
	c.newResolver = resolver.New
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
	out := DefaultOutput
	switch len(args) {
	case 0:
	case 1:
		input = args[0]
	case 2:
		input, out = args[0], args[1]
	default:
		return fmt.Errorf("too many arguments %q: %w", args, flag.ErrHelp)
	}
	if err := c.opts.Validate(); err != nil {
		return err
	}
	macrosOut := c.macrosOut
	if !c.opts.EmitMacros {
		macrosOut = ""
	}
	outputs := []string{out}
	if macrosOut != "" {
		outputs = append(outputs, macrosOut)
	}
	err := ui.ConfirmOverwrite(c.force, outputs...)
	if err != nil {
		return err
	}

	spin := ui.Default.NewSpinner()
	spin.Start("loading %s", input)
	db, err := compdb.Load(ctx, input)
	spin.Stop(err)
	if err != nil {
		return err
	}
	log.Infof("%s: %d entries (%s)", input, len(db.Entries), db.Style)

	if !c.opts.UseDepfiles {
		log.Debugf("jobs=%d %s", c.opts.Jobs, cpuinfo())
		checkResourceLimits(c.opts.Jobs)
	}
	r := c.newResolver(c.opts)
	if log.GetLevel() <= log.DebugLevel {
		r.Stderr = os.Stderr
	}
	r.Progress = func(done, total int, file string) {
		ui.Default.PrintLines(fmt.Sprintf("%d/%d %s", done, total, file))
	}
	result, err := r.Resolve(ctx, db)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	err = output.WriteFileList(&buf, result.Files, c.opts.Compact)
	if err != nil {
		return err
	}
	outs := []output.File{{Name: out, Data: buf.Bytes()}}
	if macrosOut != "" {
		var mbuf bytes.Buffer
		err = output.WriteMacroReport(&mbuf, result.Macros, true)
		if err != nil {
			return err
		}
		outs = append(outs, output.File{Name: macrosOut, Data: mbuf.Bytes()})
	}
	err = output.WriteFiles(outs...)
	if err != nil {
		return err
	}
	if result.Warnings > 0 {
		log.Warnf("%d paths have mixed path styles", result.Warnings)
	}
	log.Infof("extensions: %s", strings.Join(result.Extensions, " "))
	ui.Default.PrintLines("\n", fmt.Sprintf("%d files in %s", result.NumFiles(), out))
	if macrosOut != "" {
		ui.Default.PrintLines("\n", fmt.Sprintf("%d macros in %s", len(result.Macros), macrosOut))
	}
	return nil
}

func cpuinfo() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "cpu brand=%q vendor=%q ", cpuid.CPU.BrandName, cpuid.CPU.VendorString)
	fmt.Fprintf(&sb, "physicalCores=%d threadsPerCore=%d logicalCores=%d vm=%t", cpuid.CPU.PhysicalCores, cpuid.CPU.ThreadsPerCore, cpuid.CPU.LogicalCores, cpuid.CPU.VM())
	return sb.String()
}
