// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package pathutil normalizes paths found in compile commands and
// dependency rules.
//
// Paths are handled in the style they are written in, not in the style
// of the host OS, so a compilation database recorded on Windows can be
// processed on Linux and vice versa.
package pathutil

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// ErrNotAbs is returned when a path can not be made absolute.
var ErrNotAbs = errors.New("not absolute path")

// Style is a path style.
type Style int

const (
	// Unknown is a relative path that doesn't tell its style.
	Unknown Style = iota
	// POSIX is a '/' rooted path.
	POSIX
	// NT is a drive letter or UNC rooted path.
	NT
)

func (s Style) String() string {
	switch s {
	case POSIX:
		return "posix"
	case NT:
		return "nt"
	}
	return "unknown"
}

// DetectStyle returns the style of p.
func DetectStyle(p string) Style {
	switch {
	case strings.HasPrefix(p, "/"):
		return POSIX
	case hasDrive(p), strings.HasPrefix(p, `\\`):
		return NT
	}
	return Unknown
}

func hasDrive(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

// IsAbs reports whether p is absolute in either style.
func IsAbs(p string) bool {
	switch {
	case strings.HasPrefix(p, "/"), strings.HasPrefix(p, `\\`):
		return true
	case hasDrive(p):
		return len(p) >= 3 && (p[2] == '/' || p[2] == '\\')
	}
	return false
}

// Clean cleans an absolute path p in its own style.
// It resolves "." and "..", and collapses separators.
// NT paths use '\' as separator.
func Clean(p string) string {
	if DetectStyle(p) != NT {
		return path.Clean(p)
	}
	var root, rest string
	switch {
	case strings.HasPrefix(p, `\\`):
		// \\server\share\...
		elems := strings.FieldsFunc(p, isNTSep)
		if len(elems) < 2 {
			return p
		}
		root = `\\` + elems[0] + `\` + elems[1]
		rest = strings.Join(elems[2:], `\`)
	default:
		root = p[:2]
		rest = p[2:]
	}
	var elems []string
	for _, e := range strings.FieldsFunc(rest, isNTSep) {
		switch e {
		case ".":
		case "..":
			if len(elems) > 0 {
				elems = elems[:len(elems)-1]
			}
		default:
			elems = append(elems, e)
		}
	}
	return root + `\` + strings.Join(elems, `\`)
}

func isNTSep(r rune) bool {
	return r == '/' || r == '\\'
}

// Join joins p to base in the style of base.
// If p is absolute, it returns p.
func Join(base, p string) string {
	if IsAbs(p) {
		return p
	}
	if DetectStyle(base) == NT {
		return strings.TrimRight(base, `/\`) + `\` + p
	}
	return path.Join(base, p)
}

// Normalizer normalizes paths to absolute, cleaned form.
// It is safe for concurrent use.
type Normalizer struct {
	intern   symtab
	warned   sync.Map // normalized path => true
	warnings atomic.Int64
}

// Normalize returns the normalized absolute path of p.
// Relative p is joined with base first.
// When a POSIX path contains '\', it logs a warning once per path and
// continues, as the result may be incorrect.
func (n *Normalizer) Normalize(base, p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path: %w", ErrNotAbs)
	}
	abs := Join(base, p)
	if !IsAbs(abs) {
		return "", fmt.Errorf("%q in %q: %w", p, base, ErrNotAbs)
	}
	// '/' is a valid separator in NT paths, and Clean converts it,
	// so only '\' in POSIX paths is a mixed style.
	mixed := DetectStyle(abs) == POSIX && strings.Contains(abs, `\`)
	np := n.intern.Intern(Clean(abs))
	if mixed {
		if _, loaded := n.warned.LoadOrStore(np, true); !loaded {
			n.warnings.Add(1)
			log.Warnf("'\\' found in path, result may be incorrect: %s", abs)
		}
	}
	return np, nil
}

// Warnings returns the number of distinct paths with mixed style
// seen so far.
func (n *Normalizer) Warnings() int {
	return int(n.warnings.Load())
}

// Rel returns p relative to root, when p is root or under root.
// Otherwise, it returns p as is and false.
// Both p and root must be normalized.
func Rel(root, p string) (string, bool) {
	style := DetectStyle(root)
	if style != DetectStyle(p) {
		return p, false
	}
	sep := "/"
	same := func(a, b string) bool { return a == b }
	if style == NT {
		sep = `\`
		same = strings.EqualFold
	}
	if same(root, p) {
		return ".", true
	}
	prefix := strings.TrimSuffix(root, sep) + sep
	if len(p) <= len(prefix) || !same(p[:len(prefix)], prefix) {
		return p, false
	}
	return p[len(prefix):], true
}
