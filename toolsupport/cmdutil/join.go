// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cmdutil

import "strings"

// Join joins args into a command line that SplitRules splits back to args.
func Join(args []string) string {
	var sb strings.Builder
	for i, arg := range args {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(Quote(arg))
	}
	return sb.String()
}

// Quote quotes s for the Microsoft C runtime argv rules, if needed.
func Quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\r\"") {
		return s
	}
	var sb strings.Builder
	sb.WriteByte('"')
	n := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			n++
			continue
		case '"':
			sb.WriteString(strings.Repeat(`\`, 2*n+1))
		default:
			sb.WriteString(strings.Repeat(`\`, n))
		}
		n = 0
		sb.WriteByte(s[i])
	}
	sb.WriteString(strings.Repeat(`\`, 2*n))
	sb.WriteByte('"')
	return sb.String()
}
