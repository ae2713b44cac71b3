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

package seq

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/rgtools/repgraph/internal"
)

// A ParseError reports a malformed input sequence file. It aborts
// the pipeline; partially loaded containers are never used.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v:%v: %v", e.File, e.Line, e.Msg)
}

func parseErrorf(file string, line int, format string, args ...interface{}) {
	panic(&ParseError{File: file, Line: line, Msg: fmt.Sprintf(format, args...)})
}

var baseTable = func() (table [256]byte) {
	for i := range table {
		table[i] = 0
	}
	for _, b := range []byte("ACGTN") {
		table[b] = b
		table[b+'a'-'A'] = b
	}
	// IUPAC ambiguity codes are normalized to N.
	for _, b := range []byte("RYMKWSBDHV") {
		table[b] = 'N'
		table[b+'a'-'A'] = 'N'
	}
	return table
}()

func normalizeBases(file string, line int, b []byte) []byte {
	for i, c := range b {
		n := baseTable[c]
		if n == 0 {
			parseErrorf(file, line, "invalid nucleotide %q", c)
		}
		b[i] = n
	}
	return b
}

func nameFromHeader(b []byte) string {
	header := strings.TrimSpace(string(b[1:]))
	if i := strings.IndexAny(header, " \t"); i >= 0 {
		header = header[:i]
	}
	return header
}

// LoadFromFile parses a FASTA or FASTQ file (optionally gzipped)
// into the container. The format is detected from the first header
// character. Malformed input panics with a ParseError naming the
// offending file and line.
func (c *Container) LoadFromFile(filename string) {
	f := internal.FileOpen(filename)
	defer internal.Close(f)

	var reader io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(filename, ".gz") {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			parseErrorf(filename, 0, "%v", err)
		}
		defer internal.Close(gz)
		reader = gz
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<30)

	line := 0
	scan := func() bool {
		if scanner.Scan() {
			line++
			return true
		}
		return false
	}

	if !scan() {
		parseErrorf(filename, line, "empty sequence file")
	}
	first := scanner.Bytes()
	for len(first) == 0 {
		if !scan() {
			parseErrorf(filename, line, "empty sequence file")
		}
		first = scanner.Bytes()
	}

	switch first[0] {
	case '>':
		c.parseFasta(filename, scanner, scan, &line)
	case '@':
		c.parseFastq(filename, scanner, scan, &line)
	default:
		parseErrorf(filename, line, "missing first header")
	}

	if err := scanner.Err(); err != nil {
		parseErrorf(filename, line, "%v", err)
	}
}

func (c *Container) parseFasta(filename string, scanner *bufio.Scanner, scan func() bool, line *int) {
	name := nameFromHeader(scanner.Bytes())
	var seq []byte
	for scan() {
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		if b[0] == '>' {
			if len(seq) == 0 {
				parseErrorf(filename, *line, "sequence %v is empty", name)
			}
			c.AddSequence(name, seq)
			name = nameFromHeader(b)
			seq = nil
		} else {
			seq = append(seq, normalizeBases(filename, *line, b)...)
		}
	}
	if len(seq) == 0 {
		parseErrorf(filename, *line, "sequence %v is empty", name)
	}
	c.AddSequence(name, seq)
}

func (c *Container) parseFastq(filename string, scanner *bufio.Scanner, scan func() bool, line *int) {
	for {
		header := scanner.Bytes()
		if header[0] != '@' {
			parseErrorf(filename, *line, "missing fastq header")
		}
		name := nameFromHeader(header)
		if !scan() {
			parseErrorf(filename, *line, "truncated fastq record %v", name)
		}
		seq := append([]byte(nil), normalizeBases(filename, *line, scanner.Bytes())...)
		if len(seq) == 0 {
			parseErrorf(filename, *line, "sequence %v is empty", name)
		}
		if !scan() || len(scanner.Bytes()) == 0 || scanner.Bytes()[0] != '+' {
			parseErrorf(filename, *line, "missing + separator in record %v", name)
		}
		if !scan() {
			parseErrorf(filename, *line, "missing quality line in record %v", name)
		}
		if len(scanner.Bytes()) != len(seq) {
			parseErrorf(filename, *line, "quality length mismatch in record %v", name)
		}
		c.AddSequence(name, seq)
		if !scan() {
			return
		}
		for len(scanner.Bytes()) == 0 {
			if !scan() {
				return
			}
		}
	}
}
