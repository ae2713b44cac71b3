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

// Package seq stores sequence collections and provides the k-mer
// index the rest of the pipeline uses as a lookup service.
//
// Sequences are stored double-stranded: every sequence added to a
// Container gets two consecutive ids, the forward strand on the even
// id and the reverse complement on id^1.
package seq

import "log"

// ID identifies one strand of a stored sequence.
type ID int32

// NoID marks the absence of a sequence id.
const NoID ID = -1

// Complement returns the id of the opposite strand.
func (id ID) Complement() ID {
	return id ^ 1
}

// IsForward reports whether the id refers to the strand as it
// appeared in the input file.
func (id ID) IsForward() bool {
	return id&1 == 0
}

// Strand returns "+" or "-".
func (id ID) Strand() string {
	if id.IsForward() {
		return "+"
	}
	return "-"
}

// A Sequence is one strand of an input sequence.
type Sequence struct {
	ID   ID
	Name string
	Data []byte // upper case ACGTN
}

// A Container is an immutable-after-load collection of sequences,
// addressable by id or by name.
type Container struct {
	seqs  []*Sequence
	names map[string]ID // name -> forward strand id
}

// NewContainer returns an empty sequence container.
func NewContainer() *Container {
	return &Container{names: make(map[string]ID)}
}

var complementTable = func() (table [256]byte) {
	for i := range table {
		table[i] = 'N'
	}
	table['A'] = 'T'
	table['C'] = 'G'
	table['G'] = 'C'
	table['T'] = 'A'
	return table
}()

// ReverseComplement returns the reverse complement of seq as a fresh
// slice.
func ReverseComplement(seq []byte) []byte {
	result := make([]byte, len(seq))
	for i, b := range seq {
		result[len(seq)-1-i] = complementTable[b]
	}
	return result
}

// AddSequence stores a sequence and its reverse complement and
// returns the forward strand id. Duplicate names panic: downstream
// stages address sequences by name in diagnostics output.
func (c *Container) AddSequence(name string, data []byte) ID {
	if _, ok := c.names[name]; ok {
		log.Panicf("duplicate sequence name %v", name)
	}
	id := ID(len(c.seqs))
	c.seqs = append(c.seqs,
		&Sequence{ID: id, Name: name, Data: data},
		&Sequence{ID: id + 1, Name: name, Data: ReverseComplement(data)})
	c.names[name] = id
	return id
}

// Seq returns the bases of the given strand.
func (c *Container) Seq(id ID) []byte {
	return c.seqs[id].Data
}

// Name returns the input name of the sequence the strand belongs to.
func (c *Container) Name(id ID) string {
	return c.seqs[id].Name
}

// Len returns the length of the sequence in bases.
func (c *Container) Len(id ID) int {
	return len(c.seqs[id].Data)
}

// Count returns the number of stored strands, twice the number of
// input sequences.
func (c *Container) Count() int {
	return len(c.seqs)
}

// IDByName returns the forward strand id for an input name.
func (c *Container) IDByName(name string) (ID, bool) {
	id, ok := c.names[name]
	return id, ok
}

// IterIDs calls fn for every stored strand in id order.
func (c *Container) IterIDs(fn func(id ID)) {
	for _, s := range c.seqs {
		fn(s.ID)
	}
}

// TotalLength returns the summed length of all forward strands.
func (c *Container) TotalLength() (total int64) {
	for _, s := range c.seqs {
		if s.ID.IsForward() {
			total += int64(len(s.Data))
		}
	}
	return total
}
