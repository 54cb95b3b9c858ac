// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// ccdeps lists source and include files used by compile commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/system/signals"

	"go.chromium.org/infra/build/ccdeps/resolver"
	"go.chromium.org/infra/build/ccdeps/subcmd/cmakelists"
	"go.chromium.org/infra/build/ccdeps/subcmd/convert"
	"go.chromium.org/infra/build/ccdeps/subcmd/depfiles"
	"go.chromium.org/infra/build/ccdeps/subcmd/files"
	"go.chromium.org/infra/build/ccdeps/subcmd/help"
	"go.chromium.org/infra/build/ccdeps/subcmd/ninjadeps"
	"go.chromium.org/infra/build/ccdeps/subcmd/version"
	"go.chromium.org/infra/build/ccdeps/ui"
)

const versionID = "v1.0.0"

func getApplication() *cli.Application {
	return &cli.Application{
		Name:  "ccdeps",
		Title: "tool to list files used by compile commands",
		Context: func(ctx context.Context) context.Context {
			ctx, cancel := context.WithCancel(ctx)
			signals.HandleInterrupt(cancel)
			return ctx
		},
		Commands: []*subcommands.Command{
			files.Cmd(),
			depfiles.Cmd(),
			ninjadeps.Cmd(),
			convert.Cmd(),
			cmakelists.Cmd(),
			help.Cmd(),
			version.Cmd(versionID),
		},
		EnvVars: map[string]subcommands.EnvVarDefinition{
			resolver.JobsEnv: {
				ShortDesc: "default number of concurrent compiler invocations (-j)",
			},
		},
	}
}

func main() {
	os.Exit(ccdepsMain())
}

func ccdepsMain() (exitCode int) {
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(out, "global flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log.SetReportTimestamp(true)
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	ui.Init()
	defer ui.Restore()

	// Print a stack trace when a panic occurs.
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Errorf("panic: %v\n%s", r, buf)
			exitCode = 1
		}
	}()

	// Print build information to the log.
	buildinfo, ok := debug.ReadBuildInfo()
	if ok {
		log.Debugf("main module: %s %s", moduleInfo(&buildinfo.Main), vcsInfo(buildinfo))
		for _, m := range buildinfo.Deps {
			log.Debugf("deps module: %s", moduleInfo(m))
		}
	}

	return subcommands.Run(getApplication(), flag.Args())
}

func moduleInfo(m *debug.Module) string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("path:%s version:%s sum:%s replace:%s", m.Path, m.Version, m.Sum, moduleInfo(m.Replace))
}

func vcsInfo(buildinfo *debug.BuildInfo) string {
	var kvs []string
	for _, bs := range buildinfo.Settings {
		if strings.HasPrefix(bs.Key, "vcs.") {
			kvs = append(kvs, fmt.Sprintf("%s=%s", bs.Key, bs.Value))
		}
	}
	return strings.Join(kvs, " ")
}
