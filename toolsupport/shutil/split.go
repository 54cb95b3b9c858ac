// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shutil provides utilities for POSIX shell command lines.
package shutil

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnbalanced is returned when a command line ends inside a quote or
// with a dangling backslash.
var ErrUnbalanced = errors.New("unbalanced quoting")

// Split splits a command line in the manner of POSIX sh word splitting.
// Single quotes, double quotes and backslash escapes are honored.
// It would return error for complicated pipe line, since the result
// is executed without a shell.
func Split(cmdline string) ([]string, error) {
	var args []string
	var sb strings.Builder
	// inword is true once the current word has started, even if it is
	// still empty (e.g. `""`).
	inword := false
	for i := 0; i < len(cmdline); i++ {
		ch := cmdline[i]
		switch ch {
		case ' ', '\t', '\n', '\r':
			if inword {
				args = append(args, sb.String())
				sb.Reset()
				inword = false
			}
		case '\\':
			if i+1 >= len(cmdline) {
				return nil, fmt.Errorf("failed to split %q: trailing backslash: %w", cmdline, ErrUnbalanced)
			}
			i++
			if cmdline[i] == '\n' {
				// line continuation.
				continue
			}
			sb.WriteByte(cmdline[i])
			inword = true
		case '\'':
			j := strings.IndexByte(cmdline[i+1:], '\'')
			if j < 0 {
				return nil, fmt.Errorf("failed to split %q: unterminated single quote: %w", cmdline, ErrUnbalanced)
			}
			sb.WriteString(cmdline[i+1 : i+1+j])
			i += j + 1
			inword = true
		case '"':
			n, err := doubleQuoted(&sb, cmdline[i+1:])
			if err != nil {
				return nil, fmt.Errorf("failed to split %q: %w", cmdline, err)
			}
			i += n + 1
			inword = true
		case ';', '&', '|', '<', '>', '$', '`', '(', ')':
			return nil, fmt.Errorf("failed to split: cmdline contains shell metachar %c", ch)
		case '#':
			if !inword {
				return nil, fmt.Errorf("failed to split: cmdline contains shell comment")
			}
			sb.WriteByte(ch)
		default:
			sb.WriteByte(ch)
			inword = true
		}
	}
	if inword {
		args = append(args, sb.String())
	}
	if len(args) >= 1 && strings.Contains(args[0], "=") {
		// if initial args contains =, it would set env var and need to invoke via sh
		return nil, fmt.Errorf("argv[0] is env set %q", args[0])
	}
	return args, nil
}

// doubleQuoted writes the contents of a double quoted string that starts
// at s (just after the opening quote) to sb, and returns the index of the
// closing quote in s.
func doubleQuoted(sb *strings.Builder, s string) (int, error) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			return i, nil
		case '\\':
			if i+1 >= len(s) {
				return 0, ErrUnbalanced
			}
			switch s[i+1] {
			case '"', '\\', '$', '`':
				i++
				sb.WriteByte(s[i])
			case '\n':
				i++
			default:
				// backslash is literal in double quotes.
				sb.WriteByte('\\')
			}
		case '$', '`':
			return 0, fmt.Errorf("shell expansion %c in double quotes", s[i])
		default:
			sb.WriteByte(s[i])
		}
	}
	return 0, fmt.Errorf("unterminated double quote: %w", ErrUnbalanced)
}
