// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package pathutil

import "sync"

type symtab struct {
	// Map of string => string, where both key and value are the same.
	m sync.Map
}

func (s *symtab) Intern(v string) string {
	vv, ok := s.m.Load(v)
	if ok {
		return vv.(string)
	}
	// Make a copy of the string.
	// In case string is substring of large string, if it is used as
	// intern value, the large string would be kept in memory.
	v = string([]byte(v))
	vv, _ = s.m.LoadOrStore(v, v)
	return vv.(string)
}
