// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package execute

import (
	"bytes"
	"fmt"
	"testing"
)

func TestCommand(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		want string
	}{
		{
			name: "shell",
			args: []string{"/bin/sh", "-c", "cc -MM a.c > a.d"},
			want: "cc -MM a.c > a.d",
		},
		{
			name: "quoted",
			args: []string{"cc", "-MM", "-DMSG=\"hi there\"", "-c", "a.c"},
			want: `cc -MM '-DMSG="hi there"' -c a.c`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cmd := &Cmd{Args: tc.args}
			if got := cmd.Command(); got != tc.want {
				t.Errorf("Command()=%q; want %q", got, tc.want)
			}
		})
	}
}

func TestStderrWriter(t *testing.T) {
	var tee bytes.Buffer
	cmd := &Cmd{}
	cmd.SetStderrWriter(&tee)
	fmt.Fprint(cmd.StdoutWriter(), "a.o: a.c")
	fmt.Fprint(cmd.StderrWriter(), "warning")
	if got, want := string(cmd.Stdout()), "a.o: a.c"; got != want {
		t.Errorf("Stdout()=%q; want %q", got, want)
	}
	if got, want := string(cmd.Stderr()), "warning"; got != want {
		t.Errorf("Stderr()=%q; want %q", got, want)
	}
	if got, want := tee.String(), "warning"; got != want {
		t.Errorf("tee=%q; want %q", got, want)
	}
	// StdoutWriter resets the previous output.
	fmt.Fprint(cmd.StdoutWriter(), "b.o: b.c")
	if got, want := string(cmd.Stdout()), "b.o: b.c"; got != want {
		t.Errorf("Stdout()=%q; want %q", got, want)
	}
}
