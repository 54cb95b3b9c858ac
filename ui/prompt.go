// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNotConfirmed is returned when the user declines the prompt.
var ErrNotConfirmed = errors.New("not confirmed")

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Confirm asks msg with [y/N] on w, and reads the answer from r.
// Empty answer is no. It asks again for other answers.
func Confirm(r io.Reader, w io.Writer, msg string) (bool, error) {
	s := bufio.NewScanner(r)
	for {
		fmt.Fprintf(w, "%s [y/N]: ", msg)
		if !s.Scan() {
			if err := s.Err(); err != nil {
				return false, err
			}
			fmt.Fprintln(w)
			return false, nil
		}
		switch strings.ToLower(strings.TrimSpace(s.Text())) {
		case "y", "yes":
			return true, nil
		case "n", "no", "":
			return false, nil
		}
		fmt.Fprintln(w, "make a choice...")
	}
}

// ConfirmOverwrite asks whether to overwrite existing files among fnames.
// It returns nil when none of them exists, or force is true.
// Without a terminal, it returns an error instead of asking.
func ConfirmOverwrite(force bool, fnames ...string) error {
	if force {
		return nil
	}
	var exists []string
	for _, fname := range fnames {
		if _, err := os.Stat(fname); err == nil {
			exists = append(exists, fname)
		}
	}
	if len(exists) == 0 {
		return nil
	}
	if !IsInteractive() {
		return fmt.Errorf("%s already exists; use -f to overwrite: %w", strings.Join(exists, ", "), ErrNotConfirmed)
	}
	ok, err := Confirm(os.Stdin, os.Stderr, fmt.Sprintf("%s already exists! Overwrite?", strings.Join(exists, " or ")))
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}
