// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cmdutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestJoin(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want string
	}{
		{
			args: []string{`C:\b\clang-cl.exe`, "/c", `..\..\a.cc`, "/Foobj/a.obj"},
			want: `C:\b\clang-cl.exe /c ..\..\a.cc /Foobj/a.obj`,
		},
		{
			args: []string{"cl", "/DNAME=\"x y\"", ""},
			want: `cl "/DNAME=\"x y\"" ""`,
		},
		{
			args: []string{"cl", `/I C:\with space\`},
			want: `cl "/I C:\with space\\"`,
		},
	} {
		got := Join(tc.args)
		if got != tc.want {
			t.Errorf("Join(%q)=%q; want %q", tc.args, got, tc.want)
		}
		if diff := cmp.Diff(tc.args, SplitRules(got)); diff != "" {
			t.Errorf("SplitRules(Join(%q)) diff -want +got:\n%s", tc.args, diff)
		}
	}
}
