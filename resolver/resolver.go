// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package resolver resolves source and header files of compile commands
// in a compilation database.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/infra/build/ccdeps/compdb"
	"go.chromium.org/infra/build/ccdeps/execute"
	"go.chromium.org/infra/build/ccdeps/execute/localexec"
	"go.chromium.org/infra/build/ccdeps/sync/semaphore"
	"go.chromium.org/infra/build/ccdeps/toolsupport/gccutil"
	"go.chromium.org/infra/build/ccdeps/toolsupport/makeutil"
	"go.chromium.org/infra/build/ccdeps/toolsupport/msvcutil"
	"go.chromium.org/infra/build/ccdeps/toolsupport/pathutil"
)

// ErrConsistency is returned when the source file in the make rule
// differs from the file of the entry.
var ErrConsistency = errors.New("inconsistent source file")

// Record is the dependency of an entry.
type Record struct {
	// Source is the normalized absolute path of the source file.
	Source string
	// Includes are normalized absolute paths of other prerequisites,
	// in the order the compiler emitted.
	Includes []string
}

// Result is a result of Resolve.
type Result struct {
	// Records are dependencies of entries, in the database order.
	Records []Record
	// Files are output paths grouped by entry.
	// A group may be empty if all of its paths are deduped.
	Files [][]string
	// Macros are macros sorted by descending count.
	Macros []gccutil.MacroCount
	// Extensions are file extensions seen in records, sorted.
	Extensions []string
	// Warnings is the number of distinct paths with mixed path styles.
	Warnings int
}

// NumFiles returns the number of output paths.
func (r *Result) NumFiles() int {
	n := 0
	for _, g := range r.Files {
		n += len(g)
	}
	return n
}

// Resolver resolves dependencies of compile commands.
type Resolver struct {
	Options

	// Executor runs compiler commands.
	Executor execute.Executor

	// Stderr receives stderr of compilers as they run, if not nil.
	// It must be safe for concurrent use.
	Stderr io.Writer

	// CheckDir validates the working directory of an entry.
	// If nil, directories are not checked.
	CheckDir func(dir string) error

	// Progress is called when an entry is resolved, if not nil.
	// Calls are serialized, and done increases by one on each call.
	Progress func(done, total int, file string)
}

// New creates a resolver that runs compilers locally.
func New(opts Options) *Resolver {
	return &Resolver{
		Options:  opts,
		Executor: localexec.LocalExec{},
		CheckDir: checkDir,
	}
}

func checkDir(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

type entryResult struct {
	record Record
	macros []gccutil.Macro
}

// Resolve resolves all entries in db.
// Compilers of entries run concurrently up to Jobs, each in its own
// working directory. Any error aborts the run, and no partial result
// is returned.
func (r *Resolver) Resolve(ctx context.Context, db *compdb.Database) (*Result, error) {
	if err := r.Options.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	var n pathutil.Normalizer
	results := make([]entryResult, len(db.Entries))
	var mu sync.Mutex
	done := 0
	progress := func(file string) {
		mu.Lock()
		defer mu.Unlock()
		done++
		log.Debugf("%d/%d %s %s %s", done, len(db.Entries), file, semaStats(gccutil.Semaphore), semaStats(msvcutil.Semaphore))
		if r.Progress != nil {
			r.Progress(done, len(db.Entries), file)
		}
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.Jobs)
	for i := range db.Entries {
		eg.Go(func() error {
			e := db.Entries[i]
			rec, macros, err := r.resolveEntry(ctx, db, i, &n)
			if err != nil {
				return fmt.Errorf("entry %d (%s): %w", i, e.File, err)
			}
			results[i] = entryResult{record: rec, macros: macros}
			progress(rec.Source)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	result, err := r.merge(db, results)
	if err != nil {
		return nil, err
	}
	result.Warnings = n.Warnings()
	log.Infof("resolved %d entries: files=%d macros=%d warnings=%d in %s", len(db.Entries), result.NumFiles(), len(result.Macros), result.Warnings, time.Since(started))
	return result, nil
}

// semaStats formats usage of the compiler process semaphore s.
func semaStats(s *semaphore.Semaphore) string {
	return fmt.Sprintf("%s=%d/%d waits=%d reqs=%d", s.Name(), s.NumServs(), s.Capacity(), s.NumWaits(), s.NumRequests())
}

func (r *Resolver) resolveEntry(ctx context.Context, db *compdb.Database, i int, n *pathutil.Normalizer) (Record, []gccutil.Macro, error) {
	e := db.Entries[i]
	dir, err := db.EntryDir(i)
	if err != nil {
		return Record{}, nil, err
	}
	if r.CheckDir != nil {
		if err := r.CheckDir(dir); err != nil {
			return Record{}, nil, fmt.Errorf("%w: bad directory: %w", compdb.ErrInvalidEntry, err)
		}
	}
	args, err := db.Args(i)
	if err != nil {
		return Record{}, nil, err
	}
	msvc := msvcutil.IsMSVC(args)
	var macros []gccutil.Macro
	if r.EmitMacros {
		if msvc {
			macros, err = msvcutil.ExtractMacros(args)
		} else {
			macros, err = gccutil.ExtractMacros(args)
		}
		if err != nil {
			return Record{}, nil, err
		}
	}
	var rule makeutil.Rule
	switch {
	case r.UseDepfiles:
		rule, err = r.depfileRule(e, dir, args)
	case msvc:
		rule, err = r.showIncludesRule(ctx, e, dir, args)
	default:
		rule, err = r.compilerRule(ctx, e, dir, args)
	}
	if err != nil {
		return Record{}, nil, err
	}
	rec, err := record(n, dir, e.File, rule)
	if err != nil {
		return Record{}, nil, err
	}
	return rec, macros, nil
}

func (r *Resolver) compilerRule(ctx context.Context, e compdb.Entry, dir string, args []string) (makeutil.Rule, error) {
	dargs, err := gccutil.DepsArgs(args, r.DepsFlag)
	if err != nil {
		return makeutil.Rule{}, err
	}
	cmd := &execute.Cmd{
		ID:      uuid.New().String(),
		Desc:    "DEPS " + e.File,
		Args:    dargs,
		Env:     r.Env,
		Dir:     dir,
		Timeout: r.Timeout,
	}
	if r.Stderr != nil {
		cmd.SetStderrWriter(r.Stderr)
	}
	return gccutil.Deps(ctx, r.Executor, cmd)
}

// showIncludesRule runs the msvc compiler of the entry with /showIncludes.
func (r *Resolver) showIncludesRule(ctx context.Context, e compdb.Entry, dir string, args []string) (makeutil.Rule, error) {
	dargs, err := msvcutil.DepsArgs(args)
	if err != nil {
		return makeutil.Rule{}, err
	}
	cmd := &execute.Cmd{
		ID:      uuid.New().String(),
		Desc:    "DEPS " + e.File,
		Args:    dargs,
		Env:     r.Env,
		Dir:     dir,
		Timeout: r.Timeout,
	}
	if r.Stderr != nil {
		cmd.SetStderrWriter(r.Stderr)
	}
	return msvcutil.Deps(ctx, r.Executor, cmd, e.File)
}

// depfileRule reads the first rule of the depfile of the entry.
// The depfile is <output>.d, where output is the "output" of the entry,
// or the value of -o in the command.
func (r *Resolver) depfileRule(e compdb.Entry, dir string, args []string) (makeutil.Rule, error) {
	out := e.Output
	if out == "" {
		out = gccutil.OutputPath(args)
	}
	if out == "" {
		return makeutil.Rule{}, fmt.Errorf("%w: no output to find depfile", gccutil.ErrUsage)
	}
	fname := pathutil.Join(dir, out+".d")
	b, err := os.ReadFile(fname)
	if err != nil {
		return makeutil.Rule{}, err
	}
	rules, err := makeutil.ParseRules(b)
	if err != nil {
		return makeutil.Rule{}, fmt.Errorf("%s: %w", fname, err)
	}
	if len(rules) == 0 || len(rules[0].Prerequisites) == 0 {
		return makeutil.Rule{}, fmt.Errorf("%w: no prerequisites in %s", makeutil.ErrParse, fname)
	}
	return rules[0], nil
}

// record normalizes the rule of file compiled in dir.
// The first prerequisite must be file.
func record(n *pathutil.Normalizer, dir, file string, rule makeutil.Rule) (Record, error) {
	src, err := n.Normalize(dir, file)
	if err != nil {
		return Record{}, err
	}
	candidate, err := n.Normalize(dir, rule.Prerequisites[0])
	if err != nil {
		return Record{}, err
	}
	if !samePath(src, candidate) {
		return Record{}, fmt.Errorf("%w: multiple candidate sources %q and %q in rule for %q", ErrConsistency, src, candidate, rule.Target)
	}
	rec := Record{Source: src}
	for _, p := range rule.Prerequisites[1:] {
		inc, err := n.Normalize(dir, p)
		if err != nil {
			return Record{}, err
		}
		rec.Includes = append(rec.Includes, inc)
	}
	return rec, nil
}

// samePath compares normalized paths. NT paths are compared
// case-insensitively, since compilers on Windows may emit the source
// with different case than the database.
func samePath(a, b string) bool {
	if pathutil.DetectStyle(a) == pathutil.NT {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// merge accumulates results in the database order.
func (r *Resolver) merge(db *compdb.Database, results []entryResult) (*Result, error) {
	root := r.RelativeTo
	if r.PathStyle == Relative {
		if root == "" {
			root = db.Dir
		}
		if !pathutil.IsAbs(root) {
			return nil, fmt.Errorf("%w: -relative_to must be absolute: %q", gccutil.ErrUsage, root)
		}
		root = pathutil.Clean(root)
	}
	result := &Result{
		Records: make([]Record, 0, len(results)),
		Files:   make([][]string, 0, len(results)),
	}
	var macros gccutil.MacroTable
	seen := make(map[string]bool)
	exts := make(map[string]bool)
	for _, res := range results {
		result.Records = append(result.Records, res.record)
		macros.Add(res.macros...)
		group := []string{}
		for _, p := range append([]string{res.record.Source}, res.record.Includes...) {
			if ext := extension(p); ext != "" {
				exts[ext] = true
			}
			if r.Dedupe {
				if seen[p] {
					continue
				}
				seen[p] = true
			}
			if r.PathStyle == Relative {
				p, _ = pathutil.Rel(root, p)
			}
			group = append(group, p)
		}
		result.Files = append(result.Files, group)
	}
	result.Macros = macros.Sorted()
	for ext := range exts {
		result.Extensions = append(result.Extensions, ext)
	}
	sort.Strings(result.Extensions)
	return result, nil
}

// extension returns the file extension of p in either path style.
func extension(p string) string {
	base := p[strings.LastIndexAny(p, `/\`)+1:]
	i := strings.LastIndex(base, ".")
	if i <= 0 {
		return ""
	}
	return base[i:]
}
