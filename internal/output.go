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
	"io"

	"github.com/google/uuid"
)

// WriteFileAtomic writes a file through a uniquely named temporary
// sibling and renames it into place, so readers never observe a
// partially written checkpoint.
func WriteFileAtomic(filename string, write func(w *bufio.Writer)) {
	tmp := filename + "-" + uuid.New().String()
	file := FileCreate(tmp)
	w := bufio.NewWriter(file)
	write(w)
	if err := w.Flush(); err != nil {
		Close(file)
		panic(err)
	}
	Close(file)
	Rename(tmp, filename)
}

const fastaLineWidth = 80

// WriteFastaRecord writes one FASTA record with wrapped sequence
// lines.
func WriteFastaRecord(w io.Writer, name string, data []byte) {
	WriteString(w, ">")
	WriteString(w, name)
	WriteString(w, "\n")
	for len(data) > 0 {
		n := fastaLineWidth
		if n > len(data) {
			n = len(data)
		}
		Write(w, data[:n])
		WriteString(w, "\n")
		data = data[n:]
	}
}
