// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build unix

package files

import (
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"go.chromium.org/infra/build/ccdeps/ui"
)

// checkResourceLimits warns when the open file limit is too low to run
// jobs compilers concurrently.
func checkResourceLimits(jobs int) {
	var lim unix.Rlimit
	err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim)
	if err != nil {
		log.Warnf("failed to get rlimit: %v", err)
		return
	}
	// stdout/stderr pipes and the process itself.
	nfile := uint64(jobs) * 8
	log.Debugf("rlimit.nofile=%d,%d required=%d?", lim.Cur, lim.Max, nfile)
	if lim.Cur < nfile {
		ui.Default.PrintLines(ui.SGR(ui.Yellow, fmt.Sprintf("WARNING: too low file limit=%d for -j %d. would fail with too many open files\n", lim.Cur, jobs)))
	}
}
