// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package gccutil

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseCompileParams(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		file string
		want CompileParams
	}{
		{
			name: "clang++",
			args: []string{
				"../../third_party/llvm-build/Release+Asserts/bin/clang++",
				"-MMD",
				"-DDCHECK_ALWAYS_ON=1",
				`-DCR_CLANG_REVISION="llvmorg-17-init-10134-g3da83fba-1"`,
				"-I../..",
				"-Igen",
				"-isystem",
				"../../buildtools/third_party/libc++/trunk/include",
				"-isystem../../buildtools/third_party/libc++abi/trunk/include",
				"--sysroot=../../build/linux/debian_bullseye_amd64-sysroot",
				"-std=c++20",
				"-c",
				"../../base/base64.cc",
				"-o",
				"obj/base/base/base64.o",
			},
			file: "../../base/base64.cc",
			want: CompileParams{
				Defines: []string{
					"DCHECK_ALWAYS_ON=1",
					`CR_CLANG_REVISION="llvmorg-17-init-10134-g3da83fba-1"`,
				},
				IncludeDirs: []string{
					"../..",
					"gen",
				},
				SystemIncludeDirs: []string{
					"../../buildtools/third_party/libc++/trunk/include",
					"../../buildtools/third_party/libc++abi/trunk/include",
				},
				Options: []string{
					"-MMD",
					"--sysroot=../../build/linux/debian_bullseye_amd64-sysroot",
					"-std=c++20",
				},
			},
		},
		{
			name: "iquote",
			args: []string{
				"gcc",
				"-Ia",
				"-I-",
				"-Ib",
				"-iquote", "q",
				"-idirafter/after",
				"-D", "X",
				"-c", "./x.c",
				"-ox.o",
			},
			file: "x.c",
			want: CompileParams{
				Defines:     []string{"X"},
				IncludeDirs: []string{"b"},
				Options: []string{
					"-iquote", "a",
					"-iquote", "q",
					"-idirafter/after",
				},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCompileParams(tc.args, tc.file)
			if err != nil {
				t.Fatalf("ParseCompileParams(%q, %q)=_, %v; want nil err", tc.args, tc.file, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseCompileParams(%q, %q) diff -want +got:\n%s", tc.args, tc.file, diff)
			}
		})
	}
}

func TestParseCompileParams_Error(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"cc", "a.c", "-I"},
		{"cc", "a.c", "-o"},
	} {
		_, err := ParseCompileParams(args, "a.c")
		if !errors.Is(err, ErrUsage) {
			t.Errorf("ParseCompileParams(%q)=_, %v; want %v", args, err, ErrUsage)
		}
	}
}
