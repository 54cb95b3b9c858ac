// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/ccdeps/compdb"
	"go.chromium.org/infra/build/ccdeps/execute"
	"go.chromium.org/infra/build/ccdeps/sync/semaphore"
	"go.chromium.org/infra/build/ccdeps/toolsupport/gccutil"
	"go.chromium.org/infra/build/ccdeps/toolsupport/makeutil"
)

// fakeCompiler returns rule text keyed by "<dir>$ <args>".
type fakeCompiler struct {
	mu    sync.Mutex
	rules map[string]string
	ran   []string
}

func (f *fakeCompiler) Run(ctx context.Context, cmd *execute.Cmd) error {
	key := cmd.Dir + "$ " + strings.Join(cmd.Args, " ")
	f.mu.Lock()
	f.ran = append(f.ran, key)
	f.mu.Unlock()
	rule, ok := f.rules[key]
	if !ok {
		fmt.Fprintf(cmd.StderrWriter(), "unexpected command: %s", key)
		return &execute.ExitError{ExitCode: 1}
	}
	fmt.Fprint(cmd.StdoutWriter(), rule)
	return nil
}

func newTestResolver(opts Options, rules map[string]string) *Resolver {
	r := New(opts)
	r.Executor = &fakeCompiler{rules: rules}
	r.CheckDir = nil
	return r
}

func parseDB(t *testing.T, s string) *compdb.Database {
	t.Helper()
	db, err := compdb.Parse([]byte(s))
	if err != nil {
		t.Fatalf("compdb.Parse(%s)=_, %v", s, err)
	}
	return db
}

func TestResolve_EndToEnd(t *testing.T) {
	ctx := context.Background()
	db := parseDB(t, `[{"directory":"/p","file":"m.c","command":"cc -c m.c -o m.o"}]`)
	r := newTestResolver(DefaultOptions(), map[string]string{
		"/p$ cc -MM m.c": "m.o: m.c m.h",
	})
	got, err := r.Resolve(ctx, db)
	if err != nil {
		t.Fatalf("Resolve=_, %v; want nil err", err)
	}
	if diff := cmp.Diff([][]string{{"/p/m.c", "/p/m.h"}}, got.Files); diff != "" {
		t.Errorf("Resolve files diff -want +got:\n%s", diff)
	}
	if len(got.Macros) != 0 {
		t.Errorf("Resolve macros=%v; want empty", got.Macros)
	}
	if diff := cmp.Diff([]string{".c", ".h"}, got.Extensions); diff != "" {
		t.Errorf("Resolve extensions diff -want +got:\n%s", diff)
	}
}

func TestResolve_Record(t *testing.T) {
	ctx := context.Background()
	db := parseDB(t, `[
 {"directory":"/proj/build","file":"a.c","arguments":["cc","-c","a.c","-o","a.o"]},
 {"directory":"/proj/build","file":"../src/b.c","command":"cc -I../include -c ../src/b.c -o b.o"}
]`)
	r := newTestResolver(DefaultOptions(), map[string]string{
		"/proj/build$ cc -MM a.c":                        "a.o: a.c b.h c.h\n",
		"/proj/build$ cc -MM -I../include ../src/b.c": "b.o: ../src/b.c \\\n ../include/./x.h \\\n /usr/include/stdio.h\n",
	})
	got, err := r.Resolve(ctx, db)
	if err != nil {
		t.Fatalf("Resolve=_, %v; want nil err", err)
	}
	want := []Record{
		{
			Source:   "/proj/build/a.c",
			Includes: []string{"/proj/build/b.h", "/proj/build/c.h"},
		},
		{
			Source:   "/proj/src/b.c",
			Includes: []string{"/proj/include/x.h", "/usr/include/stdio.h"},
		},
	}
	if diff := cmp.Diff(want, got.Records); diff != "" {
		t.Errorf("Resolve records diff -want +got:\n%s", diff)
	}
}

func TestResolve_Dedupe(t *testing.T) {
	ctx := context.Background()
	db := parseDB(t, `[
 {"directory":"/proj","file":"a.c","command":"cc -c a.c"},
 {"directory":"/proj/sub","file":"../b.c","command":"cc -c ../b.c"}
]`)
	rules := map[string]string{
		"/proj$ cc -MM a.c":        "a.o: a.c x.h",
		"/proj/sub$ cc -MM ../b.c": "b.o: ../b.c ../x.h",
	}
	for _, tc := range []struct {
		name   string
		dedupe bool
		want   [][]string
	}{
		{
			name:   "unique",
			dedupe: true,
			want: [][]string{
				{"/proj/a.c", "/proj/x.h"},
				{"/proj/b.c"},
			},
		},
		{
			name:   "full",
			dedupe: false,
			want: [][]string{
				{"/proj/a.c", "/proj/x.h"},
				{"/proj/b.c", "/proj/x.h"},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Dedupe = tc.dedupe
			r := newTestResolver(opts, rules)
			got, err := r.Resolve(ctx, db)
			if err != nil {
				t.Fatalf("Resolve=_, %v; want nil err", err)
			}
			if diff := cmp.Diff(tc.want, got.Files); diff != "" {
				t.Errorf("Resolve files diff -want +got:\n%s", diff)
			}
		})
	}
}

func TestResolve_Macros(t *testing.T) {
	ctx := context.Background()
	db := parseDB(t, `[
 {"directory":"/p","file":"a.c","arguments":["cc","-DFOO","-DBAR=1","-D","BAZ","-c","a.c"]},
 {"directory":"/p","file":"b.c","arguments":["cc","-DFOO","-UNDEBUG","-c","b.c"]}
]`)
	rules := map[string]string{
		"/p$ cc -MM -DFOO -DBAR=1 -D BAZ a.c": "a.o: a.c",
		"/p$ cc -MM -DFOO -UNDEBUG b.c":       "b.o: b.c",
	}
	r := newTestResolver(DefaultOptions(), rules)
	got, err := r.Resolve(ctx, db)
	if err != nil {
		t.Fatalf("Resolve=_, %v; want nil err", err)
	}
	want := []gccutil.MacroCount{
		{Macro: gccutil.Macro{Value: "FOO"}, Count: 2},
		{Macro: gccutil.Macro{Value: "BAR=1"}, Count: 1},
		{Macro: gccutil.Macro{Value: "BAZ"}, Count: 1},
		{Macro: gccutil.Macro{Undef: true, Value: "NDEBUG"}, Count: 1},
	}
	if diff := cmp.Diff(want, got.Macros); diff != "" {
		t.Errorf("Resolve macros diff -want +got:\n%s", diff)
	}

	opts := DefaultOptions()
	opts.EmitMacros = false
	r = newTestResolver(opts, rules)
	got, err = r.Resolve(ctx, db)
	if err != nil {
		t.Fatalf("Resolve=_, %v; want nil err", err)
	}
	if len(got.Macros) != 0 {
		t.Errorf("Resolve macros=%v; want empty with EmitMacros=false", got.Macros)
	}
}

func TestResolve_RelativePath(t *testing.T) {
	ctx := context.Background()
	db := parseDB(t, `[{"directory":"/proj/build","file":"../src/a.c","command":"cc -c ../src/a.c"}]`)
	db.Dir = "/proj"
	rules := map[string]string{
		"/proj/build$ cc -MM ../src/a.c": "a.o: ../src/a.c /usr/include/stdio.h gen/a.h",
	}
	for _, tc := range []struct {
		name       string
		relativeTo string
		want       [][]string
	}{
		{
			name: "databaseDir",
			want: [][]string{{"src/a.c", "/usr/include/stdio.h", "build/gen/a.h"}},
		},
		{
			name:       "relativeTo",
			relativeTo: "/proj/build",
			want:       [][]string{{"/proj/src/a.c", "/usr/include/stdio.h", "gen/a.h"}},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.PathStyle = Relative
			opts.RelativeTo = tc.relativeTo
			r := newTestResolver(opts, rules)
			got, err := r.Resolve(ctx, db)
			if err != nil {
				t.Fatalf("Resolve=_, %v; want nil err", err)
			}
			if diff := cmp.Diff(tc.want, got.Files); diff != "" {
				t.Errorf("Resolve files diff -want +got:\n%s", diff)
			}
		})
	}
}

func TestResolve_RelativeDirectory(t *testing.T) {
	ctx := context.Background()
	db := parseDB(t, `[{"directory":"out","file":"../a.c","command":"cc -c ../a.c"}]`)
	db.Dir = "/proj"
	r := newTestResolver(DefaultOptions(), map[string]string{
		"/proj/out$ cc -MM ../a.c": "a.o: ../a.c",
	})
	got, err := r.Resolve(ctx, db)
	if err != nil {
		t.Fatalf("Resolve=_, %v; want nil err", err)
	}
	if diff := cmp.Diff([][]string{{"/proj/a.c"}}, got.Files); diff != "" {
		t.Errorf("Resolve files diff -want +got:\n%s", diff)
	}
}

func TestResolve_NT(t *testing.T) {
	ctx := context.Background()
	db := parseDB(t, `[{"directory":"C:\\src\\out","file":"..\\a.cc","command":"clang++.exe -c ..\\a.cc -o a.obj"}]`)
	r := newTestResolver(DefaultOptions(), map[string]string{
		`C:\src\out$ clang++.exe -MM ..\a.cc`: "a.obj: ..\\A.cc C:\\src\\a.h",
	})
	got, err := r.Resolve(ctx, db)
	if err != nil {
		t.Fatalf("Resolve=_, %v; want nil err", err)
	}
	want := []Record{{Source: `C:\src\a.cc`, Includes: []string{`C:\src\a.h`}}}
	if diff := cmp.Diff(want, got.Records); diff != "" {
		t.Errorf("Resolve records diff -want +got:\n%s", diff)
	}
}

func TestResolve_MSVC(t *testing.T) {
	ctx := context.Background()
	db := parseDB(t, `[{"directory":"C:\\src\\out","file":"..\\a.cc","command":"cl.exe /nologo /DUNICODE /c ..\\a.cc /Foobj\\a.obj"}]`)
	r := newTestResolver(DefaultOptions(), map[string]string{
		`C:\src\out$ cl.exe /Zs /showIncludes /nologo /DUNICODE ..\a.cc`: "a.cc\r\nNote: including file: C:\\src\\a.h\r\nNote: including file:  ..\\b.h\r\n",
	})
	got, err := r.Resolve(ctx, db)
	if err != nil {
		t.Fatalf("Resolve=_, %v; want nil err", err)
	}
	want := []Record{{Source: `C:\src\a.cc`, Includes: []string{`C:\src\a.h`, `C:\src\b.h`}}}
	if diff := cmp.Diff(want, got.Records); diff != "" {
		t.Errorf("Resolve records diff -want +got:\n%s", diff)
	}
	wantMacros := []gccutil.MacroCount{{Macro: gccutil.Macro{Value: "UNICODE"}, Count: 1}}
	if diff := cmp.Diff(wantMacros, got.Macros); diff != "" {
		t.Errorf("Resolve macros diff -want +got:\n%s", diff)
	}
}

func TestResolve_MixedStyleWarning(t *testing.T) {
	ctx := context.Background()
	db := parseDB(t, `[{"directory":"/p","file":"a.c","command":"cc -c a.c"}]`)
	r := newTestResolver(DefaultOptions(), map[string]string{
		"/p$ cc -MM a.c": `a.o: a.c inc\x.h`,
	})
	got, err := r.Resolve(ctx, db)
	if err != nil {
		t.Fatalf("Resolve=_, %v; want nil err", err)
	}
	if got.Warnings != 1 {
		t.Errorf("Resolve warnings=%d; want 1", got.Warnings)
	}
}

func TestResolve_MixedStyleSource(t *testing.T) {
	ctx := context.Background()
	db := parseDB(t, `[{"directory":"/p","file":"src\\a.c","arguments":["cc","-c","src\\a.c"]}]`)
	r := newTestResolver(DefaultOptions(), map[string]string{
		`/p$ cc -MM src\a.c`: `a.o: src\a.c inc\x.h`,
	})
	got, err := r.Resolve(ctx, db)
	if err != nil {
		t.Fatalf("Resolve=_, %v; want nil err", err)
	}
	want := [][]string{{`/p/src\a.c`, `/p/inc\x.h`}}
	if diff := cmp.Diff(want, got.Files); diff != "" {
		t.Errorf("Resolve files diff -want +got:\n%s", diff)
	}
	if got.Warnings != 2 {
		t.Errorf("Resolve warnings=%d; want 2", got.Warnings)
	}
}

func TestResolve_Stderr(t *testing.T) {
	ctx := context.Background()
	db := parseDB(t, `[{"directory":"/p","file":"a.c","command":"cc -c a.c"}]`)
	r := newTestResolver(DefaultOptions(), nil)
	var stderr bytes.Buffer
	r.Stderr = &stderr
	_, err := r.Resolve(ctx, db)
	var eerr *execute.ExitError
	if !errors.As(err, &eerr) {
		t.Fatalf("Resolve=_, %v; want ExitError", err)
	}
	if got, want := stderr.String(), "unexpected command: /p$ cc -MM a.c"; got != want {
		t.Errorf("stderr=%q; want %q", got, want)
	}
}

func TestSemaStats(t *testing.T) {
	ctx := context.Background()
	sema := semaphore.New("deps-test", 2)
	err := sema.Do(ctx, func(ctx context.Context) error {
		if got, want := semaStats(sema), "deps-test=1/2 waits=0 reqs=1"; got != want {
			t.Errorf("semaStats=%q; want %q", got, want)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := semaStats(sema), "deps-test=0/2 waits=0 reqs=1"; got != want {
		t.Errorf("semaStats=%q; want %q", got, want)
	}
}

func TestResolve_UseDepfiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	err := os.MkdirAll(filepath.Join(dir, "obj"), 0755)
	if err != nil {
		t.Fatal(err)
	}
	err = os.WriteFile(filepath.Join(dir, "obj/a.o.d"), []byte("obj/a.o: ../a.c \\\n  x.h\nx.h:\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	entries := []compdb.Entry{
		{
			Directory: dir,
			File:      "../a.c",
			Command:   compdb.TokenizedCommand{"cc", "-c", "../a.c", "-o", "obj/a.o"},
		},
	}
	db := &compdb.Database{Entries: entries}
	db.Style, err = compdb.DetectStyle(entries)
	if err != nil {
		t.Fatal(err)
	}
	opts := DefaultOptions()
	opts.UseDepfiles = true
	r := New(opts)
	fc := &fakeCompiler{}
	r.Executor = fc
	got, err := r.Resolve(ctx, db)
	if err != nil {
		t.Fatalf("Resolve=_, %v; want nil err", err)
	}
	parent := filepath.ToSlash(filepath.Dir(dir))
	want := [][]string{{parent + "/a.c", filepath.ToSlash(dir) + "/x.h"}}
	if diff := cmp.Diff(want, got.Files); diff != "" {
		t.Errorf("Resolve files diff -want +got:\n%s", diff)
	}
	if len(fc.ran) > 0 {
		t.Errorf("compiler ran %q; want no run", fc.ran)
	}
}

func TestResolve_Error(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name  string
		db    string
		rules map[string]string
		want  error
	}{
		{
			name: "twoOutputs",
			db:   `[{"directory":"/p","file":"a.c","command":"cc -c a.c -o a.o -o b.o"}]`,
			want: gccutil.ErrUsage,
		},
		{
			name: "untokenizable",
			db:   `[{"directory":"/p","file":"a.c","command":"cc -DX=\"y -c a.c"}]`,
			want: compdb.ErrInvalidEntry,
		},
		{
			name: "loneDefine",
			db:   `[{"directory":"/p","file":"a.c","arguments":["cc","-c","a.c","-D"]}]`,
			want: gccutil.ErrUsage,
		},
		{
			name: "compilerFailed",
			db:   `[{"directory":"/p","file":"a.c","command":"cc -c a.c"}]`,
			want: gccutil.ErrProcess,
		},
		{
			name: "badRule",
			db:   `[{"directory":"/p","file":"a.c","command":"cc -c a.c"}]`,
			rules: map[string]string{
				"/p$ cc -MM a.c": "a.o: a.c: x.h",
			},
			want: makeutil.ErrParse,
		},
		{
			name: "noPrerequisites",
			db:   `[{"directory":"/p","file":"a.c","command":"cc -c a.c"}]`,
			rules: map[string]string{
				"/p$ cc -MM a.c": "a.o:",
			},
			want: makeutil.ErrParse,
		},
		{
			name: "inconsistentSource",
			db:   `[{"directory":"/p","file":"a.c","command":"cc -c a.c"}]`,
			rules: map[string]string{
				"/p$ cc -MM a.c": "a.o: b.c a.c",
			},
			want: ErrConsistency,
		},
		{
			name: "laterEntryFails",
			db: `[
 {"directory":"/p","file":"a.c","command":"cc -c a.c"},
 {"directory":"/p","file":"b.c","command":"cc -c b.c"}
]`,
			rules: map[string]string{
				"/p$ cc -MM a.c": "a.o: a.c",
			},
			want: gccutil.ErrProcess,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			db := parseDB(t, tc.db)
			r := newTestResolver(DefaultOptions(), tc.rules)
			got, err := r.Resolve(ctx, db)
			if !errors.Is(err, tc.want) {
				t.Errorf("Resolve=_, %v; want %v", err, tc.want)
			}
			if got != nil {
				t.Errorf("Resolve=%v; want nil on error", got)
			}
		})
	}
}

func TestResolve_CheckDir(t *testing.T) {
	ctx := context.Background()
	missing := filepath.ToSlash(filepath.Join(t.TempDir(), "missing"))
	db := parseDB(t, fmt.Sprintf(`[{"directory":%q,"file":"a.c","command":"cc -c a.c"}]`, missing))
	r := New(DefaultOptions())
	r.Executor = &fakeCompiler{}
	_, err := r.Resolve(ctx, db)
	if !errors.Is(err, compdb.ErrInvalidEntry) {
		t.Errorf("Resolve=_, %v; want %v", err, compdb.ErrInvalidEntry)
	}
}

func TestResolve_Progress(t *testing.T) {
	ctx := context.Background()
	db := parseDB(t, `[
 {"directory":"/p","file":"a.c","command":"cc -c a.c"},
 {"directory":"/p","file":"b.c","command":"cc -c b.c"}
]`)
	r := newTestResolver(DefaultOptions(), map[string]string{
		"/p$ cc -MM a.c": "a.o: a.c",
		"/p$ cc -MM b.c": "b.o: b.c",
	})
	var done []int
	r.Progress = func(n, total int, file string) {
		if total != 2 {
			t.Errorf("progress total=%d; want 2", total)
		}
		done = append(done, n)
	}
	if _, err := r.Resolve(ctx, db); err != nil {
		t.Fatalf("Resolve=_, %v; want nil err", err)
	}
	if diff := cmp.Diff([]int{1, 2}, done); diff != "" {
		t.Errorf("progress diff -want +got:\n%s", diff)
	}
}

func TestOptionsValidate(t *testing.T) {
	opts := DefaultOptions()
	if err := opts.Validate(); err != nil {
		t.Errorf("DefaultOptions().Validate()=%v; want nil", err)
	}
	opts.Jobs = 0
	if err := opts.Validate(); !errors.Is(err, gccutil.ErrUsage) {
		t.Errorf("Validate() with -j 0 =%v; want %v", err, gccutil.ErrUsage)
	}
	t.Setenv(JobsEnv, "many")
	opts = DefaultOptions()
	if err := opts.Validate(); !errors.Is(err, gccutil.ErrUsage) {
		t.Errorf("Validate() with %s=many =%v; want %v", JobsEnv, err, gccutil.ErrUsage)
	}
}

func TestSamePath(t *testing.T) {
	for _, tc := range []struct {
		a, b string
		want bool
	}{
		{a: "/p/a.c", b: "/p/a.c", want: true},
		{a: "/p/a.c", b: "/p/A.c", want: false},
		{a: `C:\src\a.cc`, b: `c:\SRC\A.cc`, want: true},
		{a: `C:\src\a.cc`, b: `C:\src\b.cc`, want: false},
	} {
		if got := samePath(tc.a, tc.b); got != tc.want {
			t.Errorf("samePath(%q, %q)=%t; want %t", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestExtension(t *testing.T) {
	for p, want := range map[string]string{
		"/p/a.c":       ".c",
		"/p/a.tar.gz":  ".gz",
		`C:\x.y\a`:     "",
		"/p/.hidden":   "",
		"/p/dir.d/foo": "",
	} {
		if got := extension(p); got != want {
			t.Errorf("extension(%q)=%q; want %q", p, got, want)
		}
	}
}
