// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package ninjautil provides utilities for ninja.
package ninjautil

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
)

// ErrNoDepsLog is returned when the deps log doesn't exist.
var ErrNoDepsLog = errors.New("no ninja deps log")

// ErrNoDeps is returned when the deps log has no deps for an output.
var ErrNoDeps = errors.New("no deps in ninja deps log")

// DepsLogName is the filename of ninja's deps log in a build directory.
const DepsLogName = ".ninja_deps"

// DepsLog is a read-only in-memory representation of ninja's deps log.
// Format:
// https://github.com/ninja-build/ninja/blob/87111bff382655075f2577c591745a335f0103c7/src/deps_log.h
type DepsLog struct {
	fname   string
	version int32

	paths   []string
	pathIdx map[string]int
	deps    []*depsRecord
}

const fileSignature = "# ninjadeps\n"
const maxRecordSize = 1<<19 - 1

// record length.
// high bit indicates record type.
//
//	unset - path record
//	set   - deps record
//
// max record sizes are capped at 512kB
type recordHeader uint32

func (h recordHeader) IsDepsRecord() bool {
	return h>>31 != 0
}

func (h recordHeader) RecordSize() int {
	return int(h & 0x7FFFFFFF)
}

type depsRecord struct {
	mtime  time.Time
	inputs []int32
}

// LoadDepsLog reads the deps log in fname.
// Versions 3 (32-bit mtime) and 4 (64-bit mtime in nanoseconds) are
// supported. Like ninja, a broken record truncates the log at the
// record instead of returning an error.
func LoadDepsLog(ctx context.Context, fname string) (*DepsLog, error) {
	b, err := os.ReadFile(fname)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", fname, ErrNoDepsLog)
	}
	if err != nil {
		return nil, err
	}
	d, err := parseDepsLog(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	d.fname = fname
	log.Debugf("ninja deps %s v%d => paths=%d, deps=%d", fname, d.version, len(d.paths), len(d.deps))
	return d, nil
}

func parseDepsLog(b []byte) (*DepsLog, error) {
	if !bytes.HasPrefix(b, []byte(fileSignature)) {
		return nil, fmt.Errorf("wrong signature %q", b[:min(len(b), len(fileSignature))])
	}
	b = b[len(fileSignature):]
	if len(b) < 4 {
		return nil, errors.New("no version")
	}
	d := &DepsLog{
		version: int32(binary.LittleEndian.Uint32(b)),
		pathIdx: make(map[string]int),
	}
	if d.version != 3 && d.version != 4 {
		return nil, fmt.Errorf("unsupported version %d", d.version)
	}
	b = b[4:]
	offset := len(fileSignature) + 4
	for len(b) > 0 {
		if len(b) < 4 {
			log.Warnf("truncated header at %d", offset)
			break
		}
		header := recordHeader(binary.LittleEndian.Uint32(b))
		size := header.RecordSize()
		if size > maxRecordSize || size > len(b)-4 || size%4 != 0 {
			log.Warnf("bad record size %d at %d", size, offset)
			break
		}
		rec := b[4 : 4+size]
		b = b[4+size:]
		offset += 4 + size
		if header.IsDepsRecord() {
			if !d.addDeps(rec) {
				log.Warnf("bad deps record at %d", offset)
				break
			}
			continue
		}
		if !d.addPath(rec) {
			log.Warnf("bad path record at %d", offset)
			break
		}
	}
	return d, nil
}

// addPath adds a path record.
//
//	string name of the path
//	up to 3 padding bytes to align on 4 byte boundaries
//	one's complement of the expected index of the record
func (d *DepsLog) addPath(rec []byte) bool {
	if len(rec) < 8 {
		return false
	}
	name := rec[:len(rec)-4]
	for i := 0; i < 3 && name[len(name)-1] == 0; i++ {
		name = name[:len(name)-1]
	}
	checksum := int32(binary.LittleEndian.Uint32(rec[len(rec)-4:]))
	if int(^checksum) != len(d.paths) {
		return false
	}
	pathname := string(name)
	d.pathIdx[pathname] = len(d.paths)
	d.paths = append(d.paths, pathname)
	return true
}

// addDeps adds a deps record, an array of 4-byte integers.
//
//	output path id
//	output path mtime (v3: 32-bit seconds. v4: 64-bit nanoseconds)
//	input path id, ...
func (d *DepsLog) addDeps(rec []byte) bool {
	ids := make([]int32, len(rec)/4)
	for i := range ids {
		ids[i] = int32(binary.LittleEndian.Uint32(rec[4*i:]))
	}
	mtimeWords := 1
	if d.version >= 4 {
		mtimeWords = 2
	}
	if len(ids) < 1+mtimeWords {
		return false
	}
	out := ids[0]
	var mtime time.Time
	if d.version >= 4 {
		mtime = time.Unix(0, int64(uint64(uint32(ids[1]))|uint64(uint32(ids[2]))<<32))
	} else {
		mtime = time.Unix(int64(ids[1]), 0)
	}
	inputs := ids[1+mtimeWords:]
	if int(out) < 0 || int(out) >= len(d.paths) {
		return false
	}
	for _, id := range inputs {
		if int(id) < 0 || int(id) >= len(d.paths) {
			return false
		}
	}
	for int(out) >= len(d.deps) {
		d.deps = append(d.deps, nil)
	}
	d.deps[out] = &depsRecord{mtime: mtime, inputs: inputs}
	return true
}

// Get returns deps of the output and its mtime.
// output is a path relative to the build directory.
func (d *DepsLog) Get(output string) ([]string, time.Time, error) {
	output = filepath.ToSlash(filepath.Clean(output))
	i, ok := d.pathIdx[output]
	if !ok || i >= len(d.deps) || d.deps[i] == nil {
		return nil, time.Time{}, fmt.Errorf("%s: %w", output, ErrNoDeps)
	}
	rec := d.deps[i]
	inputs := make([]string, 0, len(rec.inputs))
	for _, id := range rec.inputs {
		inputs = append(inputs, d.paths[id])
	}
	return inputs, rec.mtime, nil
}

// Outputs returns outputs that have deps, sorted.
func (d *DepsLog) Outputs() []string {
	var outs []string
	for i, rec := range d.deps {
		if rec == nil {
			continue
		}
		outs = append(outs, d.paths[i])
	}
	sort.Strings(outs)
	return outs
}
