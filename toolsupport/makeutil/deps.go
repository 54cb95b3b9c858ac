// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package makeutil provides utilities for make.
package makeutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrParse is returned for text that is not `target: prerequisites`.
var ErrParse = errors.New("malformed make rule")

// Rule is a make rule.
type Rule struct {
	Target        string
	Prerequisites []string
}

// ParseDepsFile parses *.d file in fname on fsys, and returns
// inputs of all rules in it.
func ParseDepsFile(ctx context.Context, fsys fs.FS, fname string) ([]string, error) {
	if fname == "" {
		return nil, nil
	}
	b, err := fs.ReadFile(fsys, fname)
	if err != nil {
		return nil, err
	}
	inputs, err := ParseDeps(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	log.Debugf("deps %s => %d inputs", fname, len(inputs))
	return inputs, nil
}

// ParseDeps parses deps and returns a list of inputs of all rules.
// Inputs that appear in more than one rule are returned once.
func ParseDeps(b []byte) ([]string, error) {
	rules, err := ParseRules(b)
	if err != nil {
		return nil, err
	}
	var inputs []string
	seen := make(map[string]bool)
	for _, r := range rules {
		for _, in := range r.Prerequisites {
			if seen[in] {
				continue
			}
			seen[in] = true
			inputs = append(inputs, in)
		}
	}
	return inputs, nil
}

// ParseRule parses the output of a dependency listing compiler invocation,
// which must be exactly one rule with at least one prerequisite.
func ParseRule(b []byte) (Rule, error) {
	rules, err := ParseRules(b)
	if err != nil {
		return Rule{}, err
	}
	if len(rules) != 1 {
		return Rule{}, fmt.Errorf("%w: %d rules, want 1: %q", ErrParse, len(rules), b)
	}
	if len(rules[0].Prerequisites) == 0 {
		return Rule{}, fmt.Errorf("%w: no prerequisites: %q", ErrParse, b)
	}
	return rules[0], nil
}

// ParseRules parses deps contents.
//
//	<target>: <input> ...
//
// <input> is space separated.
// '\'+newline is space.
// '\'+space is escaped space (not separator).
// '$$' is '$'.
// '\'+':' is ':'.
// "..." groups an input containing spaces.
// Each logical line must have exactly one unescaped ':'. A drive letter
// colon (e.g. `C:\src\a.c`) is not a separator.
func ParseRules(b []byte) ([]Rule, error) {
	var rules []Rule
	for _, line := range logicalLines(b) {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 || trimmed[0] == '#' {
			continue
		}
		colons := separatorColons(line)
		if len(colons) != 1 {
			return nil, fmt.Errorf("%w: %d unescaped ':', want 1: %q", ErrParse, len(colons), line)
		}
		i := colons[0]
		rule := Rule{
			Target: string(bytes.TrimSpace(line[:i])),
		}
		if rule.Target == "" {
			return nil, fmt.Errorf("%w: empty target: %q", ErrParse, line)
		}
		for s := line[i+1:]; len(s) > 0; {
			var token string
			var err error
			token, s, err = nextToken(s)
			if err != nil {
				return nil, fmt.Errorf("%w: %v: %q", ErrParse, err, line)
			}
			if token != "" {
				rule.Prerequisites = append(rule.Prerequisites, token)
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// logicalLines splits b into lines, joining a line that ends with an
// unescaped '\' with the next one.
func logicalLines(b []byte) [][]byte {
	var lines [][]byte
	var cur []byte
	for len(b) > 0 {
		var line []byte
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			line, b = b, nil
		} else {
			line, b = b[:i], b[i+1:]
		}
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if continued(line) {
			cur = append(cur, line[:len(line)-1]...)
			cur = append(cur, ' ')
			continue
		}
		cur = append(cur, line...)
		lines = append(lines, cur)
		cur = nil
	}
	if len(cur) > 0 {
		lines = append(lines, cur)
	}
	return lines
}

// continued reports whether line ends with an odd number of '\'.
func continued(line []byte) bool {
	n := 0
	for i := len(line) - 1; i >= 0 && line[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

// separatorColons returns indexes of unescaped ':' in line.
func separatorColons(line []byte) []int {
	var colons []int
	inquote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '"':
			inquote = !inquote
		case ':':
			if inquote || isDriveColon(line, i) {
				continue
			}
			colons = append(colons, i)
		}
	}
	return colons
}

// isDriveColon reports whether line[i] is the colon of a drive letter
// at the beginning of a path, e.g. `C:\` or `C:/`.
func isDriveColon(line []byte, i int) bool {
	if i < 1 || i+1 >= len(line) {
		return false
	}
	if line[i+1] != '\\' && line[i+1] != '/' {
		return false
	}
	c := line[i-1]
	if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
		return false
	}
	if i >= 2 {
		switch line[i-2] {
		case ' ', '\t', '"':
		default:
			return false
		}
	}
	return true
}

func nextToken(s []byte) (string, []byte, error) {
	var sb strings.Builder
	// skip spaces
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	if i == len(s) {
		return "", nil, nil
	}
	s = s[i:]
	// extract next space not escaped
	inquote := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case ' ', '#', '"', ':':
				sb.WriteByte(s[i])
			default:
				sb.WriteByte('\\')
				sb.WriteByte(s[i])
			}
			continue
		}
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '$' {
			i++
			sb.WriteByte('$')
			continue
		}
		if s[i] == '"' {
			inquote = !inquote
			continue
		}
		if !inquote && isSpace(s[i]) {
			return sb.String(), s[i+1:], nil
		}
		sb.WriteByte(s[i])
	}
	if inquote {
		return "", nil, errors.New("unterminated quote")
	}
	return sb.String(), nil, nil
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
