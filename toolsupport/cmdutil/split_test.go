// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cmdutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitRules(t *testing.T) {
	for _, tc := range []struct {
		name    string
		cmdline string
		want    []string
	}{
		{
			name:    "simple",
			cmdline: `C:\llvm\bin\clang.exe -c C:\src\foo.cc -o foo.obj`,
			want:    []string{`C:\llvm\bin\clang.exe`, "-c", `C:\src\foo.cc`, "-o", "foo.obj"},
		},
		{
			name:    "quotedSpace",
			cmdline: `"C:\Program Files\LLVM\bin\clang.exe" -c "C:\my src\a.c"`,
			want:    []string{`C:\Program Files\LLVM\bin\clang.exe`, "-c", `C:\my src\a.c`},
		},
		{
			name:    "escapedQuote",
			cmdline: `cl.exe -DMSG=\"hi\" -c a.c`,
			want:    []string{"cl.exe", `-DMSG="hi"`, "-c", "a.c"},
		},
		{
			name:    "backslashesBeforeQuote",
			cmdline: `cl.exe "-IC:\inc\\" -c a.c`,
			want:    []string{"cl.exe", `-IC:\inc\`, "-c", "a.c"},
		},
		{
			name:    "doubledQuoteInQuote",
			cmdline: `cl.exe "-DX=""y""" a.c`,
			want:    []string{"cl.exe", `-DX="y"`, "a.c"},
		},
		{
			name:    "emptyArg",
			cmdline: `cl.exe "" a.c`,
			want:    []string{"cl.exe", "", "a.c"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitRules(tc.cmdline)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("SplitRules(%q) -want +got:\n%s", tc.cmdline, diff)
			}
		})
	}
}
