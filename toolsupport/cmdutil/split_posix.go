// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build !windows

package cmdutil

// Split splits cmd.exe's cmdline.
// On non-windows, it uses SplitRules.
func Split(cmdline string) ([]string, error) {
	return SplitRules(cmdline), nil
}
