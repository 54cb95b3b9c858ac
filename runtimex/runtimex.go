// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package runtimex provides the number of CPUs usable by the process.
package runtimex

import "runtime"

var ncpu int

func init() {
	ncpu = activeProcessorCount()
	if ncpu <= 0 {
		ncpu = runtime.NumCPU()
	}
}

// NumCPU returns the number of logical CPUs usable by the current process.
// On Windows, runtime.NumCPU counts only one processor group (up to 64),
// so the active processor count of all groups is used instead.
func NumCPU() int {
	return ncpu
}
