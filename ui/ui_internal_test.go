// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ui

import "testing"

func TestElideMiddle(t *testing.T) {
	for _, tc := range []struct {
		msg   string
		width int
		want  string
	}{
		{
			msg:   "120/3456 /home/user/src/chromium/third_party/perfetto/src/trace_processor/importers/proto/track_event_parser.cc",
			width: 80,
			want:  "120/3456 /home/user/src/chromium/third.../importers/proto/track_event_parser.cc",
		},
		{
			msg:   "1/2 /p/m.c",
			width: 80,
			want:  "1/2 /p/m.c",
		},
	} {
		got := elideMiddle(tc.msg, tc.width)
		if got != tc.want {
			t.Errorf("elideMiddle(%q, %d)=%q; want %q", tc.msg, tc.width, got, tc.want)
		}
	}
}
