// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package cmdutil provides utilities for cmd.exe command lines.
package cmdutil

import "strings"

// SplitRules splits cmdline with the argv rules of the Microsoft C runtime,
// which is what CommandLineToArgvW implements.
//
//   - 2n backslashes followed by '"' produce n backslashes, and '"' toggles quoting.
//   - 2n+1 backslashes followed by '"' produce n backslashes and a literal '"'.
//   - backslashes not followed by '"' are literal.
//   - `""` in a quoted region is a literal '"'.
//
// It is available on all platforms, so compile commands recorded on
// Windows can be tokenized elsewhere.
func SplitRules(cmdline string) []string {
	var args []string
	var sb strings.Builder
	inquote := false
	inword := false
	for i := 0; i < len(cmdline); i++ {
		ch := cmdline[i]
		switch {
		case ch == '\\':
			n := 0
			for i < len(cmdline) && cmdline[i] == '\\' {
				n++
				i++
			}
			if i < len(cmdline) && cmdline[i] == '"' {
				sb.WriteString(strings.Repeat(`\`, n/2))
				if n%2 == 1 {
					sb.WriteByte('"')
				} else {
					inquote = !inquote
				}
			} else {
				sb.WriteString(strings.Repeat(`\`, n))
				i--
			}
			inword = true
		case ch == '"':
			if inquote && i+1 < len(cmdline) && cmdline[i+1] == '"' {
				sb.WriteByte('"')
				i++
			} else {
				inquote = !inquote
			}
			inword = true
		case (ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r') && !inquote:
			if inword {
				args = append(args, sb.String())
				sb.Reset()
				inword = false
			}
		default:
			sb.WriteByte(ch)
			inword = true
		}
	}
	if inword {
		args = append(args, sb.String())
	}
	return args
}
