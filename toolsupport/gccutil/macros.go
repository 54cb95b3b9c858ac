// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package gccutil

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Macro is a preprocessor macro flag.
type Macro struct {
	// Undef is true for -U.
	Undef bool
	// Value is "NAME" or "NAME=VALUE" with escapes decoded.
	Value string
}

// String returns the canonical flag, e.g. "-DFOO=1" or "-UBAR".
func (m Macro) String() string {
	if m.Undef {
		return "-U" + m.Value
	}
	return "-D" + m.Value
}

// ExtractMacros returns -D and -U macros in args, in order.
// Both "-D NAME" and "-DNAME" forms are recognized.
// It returns ErrUsage if the last arg is a lone -D or -U.
func ExtractMacros(args []string) ([]Macro, error) {
	var macros []Macro
	for i := 0; i < len(args); i++ {
		arg := args[i]
		var m Macro
		switch {
		case arg == "-D" || arg == "-U":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%w: missing argument to %s: %q", ErrUsage, arg, args)
			}
			i++
			m = Macro{Undef: arg == "-U", Value: args[i]}
		case strings.HasPrefix(arg, "-D"), strings.HasPrefix(arg, "-U"):
			m = Macro{Undef: arg[1] == 'U', Value: arg[2:]}
		default:
			continue
		}
		m.Value = unescape(m.Value)
		macros = append(macros, m)
	}
	return macros, nil
}

// unescape decodes backslash escapes in s.
// An invalid escape sequence is kept as is.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for len(s) > 0 {
		if s[0] != '\\' {
			sb.WriteByte(s[0])
			s = s[1:]
			continue
		}
		if len(s) >= 2 && (s[1] == '"' || s[1] == '\'') {
			sb.WriteByte(s[1])
			s = s[2:]
			continue
		}
		r, _, tail, err := strconv.UnquoteChar(s, 0)
		if err != nil {
			sb.WriteByte('\\')
			s = s[1:]
			continue
		}
		sb.WriteRune(r)
		s = tail
	}
	return sb.String()
}

// MacroTable counts macros across compile commands.
// It is safe for concurrent use.
type MacroTable struct {
	mu     sync.Mutex
	counts map[Macro]int
}

// MacroCount is a macro and its number of occurrences.
type MacroCount struct {
	Macro Macro
	Count int
}

// Add counts macros.
func (t *MacroTable) Add(macros ...Macro) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts == nil {
		t.counts = make(map[Macro]int)
	}
	for _, m := range macros {
		t.counts[m]++
	}
}

// Sorted returns macros sorted by descending count.
// Macros with the same count are sorted by flag.
func (t *MacroTable) Sorted() []MacroCount {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := make([]MacroCount, 0, len(t.counts))
	for m, c := range t.counts {
		r = append(r, MacroCount{Macro: m, Count: c})
	}
	sort.Slice(r, func(i, j int) bool {
		if r[i].Count != r[j].Count {
			return r[i].Count > r[j].Count
		}
		return r[i].Macro.String() < r[j].Macro.String()
	})
	return r
}
