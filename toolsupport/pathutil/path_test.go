// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package pathutil

import (
	"errors"
	"testing"
)

func TestDetectStyle(t *testing.T) {
	for _, tc := range []struct {
		path string
		want Style
	}{
		{path: "/usr/include/stdio.h", want: POSIX},
		{path: `C:\src\a.c`, want: NT},
		{path: "c:/src/a.c", want: NT},
		{path: `\\server\share\a.c`, want: NT},
		{path: "a.c", want: Unknown},
		{path: `..\a.c`, want: Unknown},
	} {
		if got := DetectStyle(tc.path); got != tc.want {
			t.Errorf("DetectStyle(%q)=%v; want %v", tc.path, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	for _, tc := range []struct {
		name         string
		base, path   string
		want         string
		wantWarnings int
	}{
		{
			name: "relative",
			base: "/proj/build",
			path: "a.c",
			want: "/proj/build/a.c",
		},
		{
			name: "dotdot",
			base: "/proj/build",
			path: "../src/./x//y.h",
			want: "/proj/src/x/y.h",
		},
		{
			name: "absolute",
			base: "/proj/build",
			path: "/usr//include/../include/stdio.h",
			want: "/usr/include/stdio.h",
		},
		{
			name: "ntRelative",
			base: `C:\proj\build`,
			path: `..\src\a.c`,
			want: `C:\proj\src\a.c`,
		},
		{
			name: "ntForwardSlashes",
			base: `C:\proj`,
			path: "C:/proj/inc/./b.h",
			want: `C:\proj\inc\b.h`,
		},
		{
			name: "ntRoot",
			base: `C:\proj`,
			path: `C:\..`,
			want: `C:\`,
		},
		{
			name: "ntMixedSeparators",
			base: `C:\proj`,
			path: `C:/proj/inc\b.h`,
			want: `C:\proj\inc\b.h`,
		},
		{
			name:         "mixed",
			base:         "/proj",
			path:         `inc\b.h`,
			want:         `/proj/inc\b.h`,
			wantWarnings: 1,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var n Normalizer
			got, err := n.Normalize(tc.base, tc.path)
			if err != nil {
				t.Fatalf("Normalize(%q, %q)=%q, %v; want nil err", tc.base, tc.path, got, err)
			}
			if got != tc.want {
				t.Errorf("Normalize(%q, %q)=%q; want %q", tc.base, tc.path, got, tc.want)
			}
			if n.Warnings() != tc.wantWarnings {
				t.Errorf("Warnings()=%d; want %d", n.Warnings(), tc.wantWarnings)
			}
			// idempotent.
			again, err := n.Normalize(tc.base, got)
			if err != nil || again != got {
				t.Errorf("Normalize(%q, %q)=%q, %v; want %q, nil", tc.base, got, again, err, got)
			}
		})
	}
}

func TestNormalize_WarnOncePerPath(t *testing.T) {
	var n Normalizer
	for _, p := range []string{`src\a.c`, `/proj/src\a.c`, `./src\a.c`, `inc\b.h`, "inc/c.h"} {
		_, err := n.Normalize("/proj", p)
		if err != nil {
			t.Fatalf("Normalize(%q, %q)=_, %v; want nil err", "/proj", p, err)
		}
	}
	if got, want := n.Warnings(), 2; got != want {
		t.Errorf("Warnings()=%d; want %d", got, want)
	}
}

func TestNormalize_Error(t *testing.T) {
	var n Normalizer
	for _, tc := range []struct {
		base, path string
	}{
		{base: "build", path: "a.c"},
		{base: "/proj", path: ""},
	} {
		_, err := n.Normalize(tc.base, tc.path)
		if !errors.Is(err, ErrNotAbs) {
			t.Errorf("Normalize(%q, %q)=_, %v; want %v", tc.base, tc.path, err, ErrNotAbs)
		}
	}
}

func TestRel(t *testing.T) {
	for _, tc := range []struct {
		root, path string
		want       string
		wantOK     bool
	}{
		{root: "/proj", path: "/proj/src/a.c", want: "src/a.c", wantOK: true},
		{root: "/proj", path: "/proj", want: ".", wantOK: true},
		{root: "/proj", path: "/project/a.c", want: "/project/a.c"},
		{root: "/proj", path: "/usr/include/stdio.h", want: "/usr/include/stdio.h"},
		{root: "/", path: "/usr/include/stdio.h", want: "usr/include/stdio.h", wantOK: true},
		{root: `C:\proj`, path: `c:\PROJ\a.c`, want: "a.c", wantOK: true},
		{root: `C:\proj`, path: "/proj/a.c", want: "/proj/a.c"},
	} {
		got, ok := Rel(tc.root, tc.path)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("Rel(%q, %q)=%q, %t; want %q, %t", tc.root, tc.path, got, ok, tc.want, tc.wantOK)
		}
	}
}
