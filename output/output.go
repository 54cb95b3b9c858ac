// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package output writes results to files.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"go.chromium.org/infra/build/ccdeps/toolsupport/gccutil"
)

// MacroDelimiter separates a macro and its count in the macro report.
const MacroDelimiter = "\t\t"

// File is an output file.
type File struct {
	Name string
	Data []byte
}

// WriteFile writes data to fname atomically.
// data is written to a temporary file in the same directory, which is
// renamed to fname on success, so fname is never left partially written.
// data is compressed with zstd for *.zst and gzip for *.gz.
func WriteFile(fname string, data []byte) error {
	return WriteFiles(File{Name: fname, Data: data})
}

// WriteFiles writes files like WriteFile, but renames the temporary
// files only after all of them are written, so a failure leaves
// none of files updated.
func WriteFiles(files ...File) error {
	tmps := make([]string, 0, len(files))
	defer func() {
		for _, tmp := range tmps {
			os.Remove(tmp)
		}
	}()
	for _, f := range files {
		tmp, err := writeTemp(f)
		if err != nil {
			return err
		}
		tmps = append(tmps, tmp)
	}
	for i, tmp := range tmps {
		err := os.Rename(tmp, files[i].Name)
		if err != nil {
			tmps = tmps[i:]
			return err
		}
	}
	tmps = nil
	return nil
}

// writeTemp writes f to a temporary file next to f.Name, and returns
// the name of the temporary file.
func writeTemp(f File) (string, error) {
	dir := filepath.Dir(f.Name)
	w, err := os.CreateTemp(dir, "."+filepath.Base(f.Name)+".*.tmp")
	if err != nil {
		return "", err
	}
	tmp := w.Name()
	err = writeCompressed(w, f.Name, f.Data)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, 0644)
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write %s: %w", f.Name, err)
	}
	return tmp, nil
}

func writeCompressed(w io.Writer, fname string, data []byte) error {
	var wc io.WriteCloser
	switch {
	case strings.HasSuffix(fname, ".zst"):
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		wc = zw
	case strings.HasSuffix(fname, ".gz"):
		gw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
		if err != nil {
			return err
		}
		wc = gw
	default:
		_, err := w.Write(data)
		return err
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return err
	}
	return wc.Close()
}

// WriteFileList writes paths, one per line.
// Unless compact, an empty line follows each group.
func WriteFileList(w io.Writer, groups [][]string, compact bool) error {
	bw := bufio.NewWriter(w)
	for _, group := range groups {
		for _, p := range group {
			fmt.Fprintln(bw, p)
		}
		if !compact {
			fmt.Fprintln(bw)
		}
	}
	return bw.Flush()
}

// WriteMacroReport writes macros as "<macro>\t\t<count>" lines.
// If header is true, "<MACRO>\t\t<COUNT>" line is written first.
func WriteMacroReport(w io.Writer, macros []gccutil.MacroCount, header bool) error {
	bw := bufio.NewWriter(w)
	if header {
		fmt.Fprintf(bw, "<MACRO>%s<COUNT>\n", MacroDelimiter)
	}
	for _, m := range macros {
		fmt.Fprintf(bw, "%s%s%d\n", m.Macro, MacroDelimiter, m.Count)
	}
	return bw.Flush()
}
