// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package compdb reads and writes JSON compilation databases.
//
// https://clang.llvm.org/docs/JSONCompilationDatabase.html
package compdb

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.chromium.org/infra/build/ccdeps/toolsupport/cmdutil"
	"go.chromium.org/infra/build/ccdeps/toolsupport/pathutil"
	"go.chromium.org/infra/build/ccdeps/toolsupport/shutil"
)

// ErrInvalidEntry is returned for a malformed database entry.
var ErrInvalidEntry = errors.New("invalid compilation database entry")

// Command is a compile command of an entry.
// It is either RawCommand or TokenizedCommand.
type Command interface {
	// Args returns the command tokenized in the style.
	Args(style pathutil.Style) ([]string, error)
	isCommand()
}

// RawCommand is a command given as a single shell quoted string,
// i.e. "command" in the database.
type RawCommand string

// Args splits the command with POSIX shell rules, or with the Microsoft
// C runtime rules for NT style.
func (c RawCommand) Args(style pathutil.Style) ([]string, error) {
	var args []string
	var err error
	if style == pathutil.NT {
		args, err = cmdutil.Split(string(c))
	} else {
		args, err = shutil.Split(string(c))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to split %q: %w", ErrInvalidEntry, string(c), err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrInvalidEntry)
	}
	return args, nil
}

func (RawCommand) isCommand() {}

// TokenizedCommand is a command given as tokens,
// i.e. "arguments" in the database.
type TokenizedCommand []string

// Args returns a copy of the tokens.
func (c TokenizedCommand) Args(pathutil.Style) ([]string, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("%w: empty arguments", ErrInvalidEntry)
	}
	return append([]string(nil), c...), nil
}

func (TokenizedCommand) isCommand() {}

// Entry is an entry of a compilation database.
type Entry struct {
	// Directory is the working directory of the compile command.
	// It may be relative to the directory of the database.
	Directory string
	// File is the source file, absolute or relative to Directory.
	File string
	// Command is the compile command.
	Command Command
	// Output is the output of the compile command, if any.
	Output string
}

type jsonEntry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Command   *string  `json:"command,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
	Output    string   `json:"output,omitempty"`
}

// UnmarshalJSON decodes an entry.
// "arguments" is used if both "arguments" and "command" are present.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var je jsonEntry
	if err := json.Unmarshal(b, &je); err != nil {
		return err
	}
	*e = Entry{
		Directory: je.Directory,
		File:      je.File,
		Output:    je.Output,
	}
	switch {
	case je.Arguments != nil:
		e.Command = TokenizedCommand(je.Arguments)
	case je.Command != nil:
		e.Command = RawCommand(*je.Command)
	}
	return e.validate()
}

// MarshalJSON encodes an entry with "command" or "arguments" by the
// type of Command.
func (e Entry) MarshalJSON() ([]byte, error) {
	je := jsonEntry{
		Directory: e.Directory,
		File:      e.File,
		Output:    e.Output,
	}
	switch c := e.Command.(type) {
	case RawCommand:
		s := string(c)
		je.Command = &s
	case TokenizedCommand:
		je.Arguments = []string(c)
		if je.Arguments == nil {
			je.Arguments = []string{}
		}
	default:
		return nil, fmt.Errorf("%w: no command for %s", ErrInvalidEntry, e.File)
	}
	return json.Marshal(je)
}

func (e Entry) validate() error {
	switch {
	case e.Directory == "":
		return fmt.Errorf("%w: no directory for %q", ErrInvalidEntry, e.File)
	case e.File == "":
		return fmt.Errorf("%w: no file in %q", ErrInvalidEntry, e.Directory)
	case e.Command == nil:
		return fmt.Errorf("%w: neither command nor arguments for %q", ErrInvalidEntry, e.File)
	}
	return nil
}

// Style returns the path style of the entry, detected from its
// directory, file and output.
func (e Entry) Style() pathutil.Style {
	for _, p := range []string{e.Directory, e.File, e.Output} {
		if s := pathutil.DetectStyle(p); s != pathutil.Unknown {
			return s
		}
	}
	return pathutil.Unknown
}
