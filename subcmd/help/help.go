// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package help provides help subcommand.
package help

import (
	"flag"
	"fmt"

	"github.com/maruel/subcommands"
)

// Cmd returns the Command for the `help` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "help [<command>|-advanced]",
		ShortDesc: "prints help about a command",
		LongDesc:  "Prints commands and globally-available flags or help about a specific command.\nUse -advanced to display all commands.",
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.Flags.BoolVar(&c.advanced, "advanced", false, "show advanced commands")
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase
	advanced bool
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	if len(args) > 0 {
		return subcommands.CmdHelp.CommandRun().Run(a, args, env)
	}
	// subcommands.Usage lists commands and environment variables,
	// but not the flags parsed before the command.
	subcommands.Usage(a.GetOut(), a, c.advanced)
	fmt.Fprintln(a.GetOut(), "Common flags accepted by all commands:")
	flag.CommandLine.SetOutput(a.GetOut())
	flag.PrintDefaults()
	return 0
}
