// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"go.chromium.org/infra/build/ccdeps/toolsupport/cmdutil"
	"go.chromium.org/infra/build/ccdeps/toolsupport/pathutil"
	"go.chromium.org/infra/build/ccdeps/toolsupport/shutil"
)

// DefaultFilename is the conventional filename of a compilation database.
const DefaultFilename = "compile_commands.json"

// Database is a compilation database.
type Database struct {
	// Entries are the entries in the database order.
	Entries []Entry
	// Style is the path style of the commands.
	Style pathutil.Style
	// Dir is the absolute directory of the database file, if loaded
	// from a file.
	Dir string
}

// Load loads a database from fname.
// fname may be compressed with zstd (*.zst) or gzip (*.gz).
func Load(ctx context.Context, fname string) (*Database, error) {
	started := time.Now()
	b, err := loadFile(ctx, fname)
	if err != nil {
		return nil, err
	}
	db, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fname, err)
	}
	db.Dir, err = filepath.Abs(filepath.Dir(fname))
	if err != nil {
		return nil, err
	}
	log.Debugf("loaded %s: %d entries, style=%s in %s", fname, len(db.Entries), db.Style, time.Since(started))
	return db, nil
}

func loadFile(ctx context.Context, fname string) ([]byte, error) {
	b, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	var r io.ReadCloser
	switch {
	case strings.HasSuffix(fname, ".zst"):
		d, err := zstd.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		r = d.IOReadCloser()
	case strings.HasSuffix(fname, ".gz"):
		r, err = gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
	default:
		return b, nil
	}
	defer r.Close()
	b, err = io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", fname, err)
	}
	return b, nil
}

// Parse parses a database in JSON.
// It returns ErrInvalidEntry if an entry is malformed, or if entries
// mix POSIX and NT path styles.
func Parse(b []byte) (*Database, error) {
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, err
	}
	style, err := DetectStyle(entries)
	if err != nil {
		return nil, err
	}
	return &Database{
		Entries: entries,
		Style:   style,
	}, nil
}

// DetectStyle returns the path style used by entries.
// It is NT only if entries are in NT style, and POSIX otherwise.
func DetectStyle(entries []Entry) (pathutil.Style, error) {
	style := pathutil.Unknown
	first := -1
	for i, e := range entries {
		s := e.Style()
		if s == pathutil.Unknown {
			continue
		}
		if style == pathutil.Unknown {
			style = s
			first = i
			continue
		}
		if s != style {
			return pathutil.Unknown, fmt.Errorf("%w: mixed path styles: entry %d %q is %s, entry %d %q is %s", ErrInvalidEntry, first, entries[first].Directory, style, i, e.Directory, s)
		}
	}
	if style == pathutil.Unknown {
		style = pathutil.POSIX
	}
	return style, nil
}

// Args returns the tokenized command of the i-th entry.
func (db *Database) Args(i int) ([]string, error) {
	return db.Entries[i].Command.Args(db.Style)
}

// EntryDir returns the absolute working directory of the i-th entry.
// A relative directory is resolved against Dir.
func (db *Database) EntryDir(i int) (string, error) {
	dir := db.Entries[i].Directory
	if !pathutil.IsAbs(dir) {
		if db.Dir == "" {
			return "", fmt.Errorf("%w: relative directory %q without database directory", ErrInvalidEntry, dir)
		}
		dir = pathutil.Join(db.Dir, dir)
	}
	return pathutil.Clean(dir), nil
}

// Form is a form of commands in a database.
type Form int

const (
	// KeepForm keeps commands as they are.
	KeepForm Form = iota
	// CommandForm converts commands to "command".
	CommandForm
	// ArgumentsForm converts commands to "arguments".
	ArgumentsForm
)

// String returns the JSON key of the form.
func (f Form) String() string {
	switch f {
	case CommandForm:
		return "command"
	case ArgumentsForm:
		return "arguments"
	}
	return "keep"
}

// Set sets the form by the JSON key. It implements flag.Value.
func (f *Form) Set(s string) error {
	switch s {
	case "command":
		*f = CommandForm
	case "arguments":
		*f = ArgumentsForm
	case "keep", "":
		*f = KeepForm
	default:
		return fmt.Errorf("unknown form %q; want command or arguments", s)
	}
	return nil
}

// Convert returns entries whose commands are converted to form.
// "command" is quoted so that it splits back to the same arguments.
func (db *Database) Convert(form Form) ([]Entry, error) {
	entries := make([]Entry, 0, len(db.Entries))
	for i, e := range db.Entries {
		switch form {
		case CommandForm:
			if _, ok := e.Command.(RawCommand); ok {
				break
			}
			args, err := db.Args(i)
			if err != nil {
				return nil, fmt.Errorf("entry %d (%s): %w", i, e.File, err)
			}
			if db.Style == pathutil.NT {
				e.Command = RawCommand(cmdutil.Join(args))
			} else {
				e.Command = RawCommand(shutil.Join(args))
			}
		case ArgumentsForm:
			args, err := db.Args(i)
			if err != nil {
				return nil, fmt.Errorf("entry %d (%s): %w", i, e.File, err)
			}
			e.Command = TokenizedCommand(args)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Marshal encodes entries as an indented JSON database.
func Marshal(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
