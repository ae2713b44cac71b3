// repgraph: a repeat graph construction and resolution tool
// for long-read genome assembly.
// Copyright (c) 2024-2026 the repgraph authors.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

package internal

import (
	"bufio"
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "out.txt")
	WriteFileAtomic(filename, func(w *bufio.Writer) {
		WriteString(w, "hello\n")
	})
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\n" {
		t.Error("WriteFileAtomic content failed")
	}
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Error("WriteFileAtomic temporary cleanup failed")
	}
}

func TestWriteFastaRecord(t *testing.T) {
	var buf bytes.Buffer
	data := bytes.Repeat([]byte("A"), 200)
	WriteFastaRecord(&buf, "seq1 note", data)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != ">seq1 note" {
		t.Error("WriteFastaRecord header failed")
	}
	if len(lines) != 4 {
		t.Fatal("WriteFastaRecord wrapping failed")
	}
	if len(lines[1]) != 80 || len(lines[3]) != 40 {
		t.Error("WriteFastaRecord line width failed")
	}
}
