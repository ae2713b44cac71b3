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
	"bytes"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func randomSeq(r *rand.Rand, n int) []byte {
	bases := []byte("ACGT")
	s := make([]byte, n)
	for i := range s {
		s[i] = bases[r.Intn(4)]
	}
	return s
}

func TestReverseComplement(t *testing.T) {
	if !bytes.Equal(ReverseComplement([]byte("ACGTN")), []byte("NACGT")) {
		t.Error("ReverseComplement failed")
	}
	r := rand.New(rand.NewSource(1))
	s := randomSeq(r, 1000)
	if !bytes.Equal(ReverseComplement(ReverseComplement(s)), s) {
		t.Error("ReverseComplement involution failed")
	}
}

func TestContainer(t *testing.T) {
	c := NewContainer()
	id1 := c.AddSequence("seq1", []byte("ACGTACGT"))
	id2 := c.AddSequence("seq2", []byte("TTTTT"))
	if c.Count() != 4 {
		t.Error("Container Count failed")
	}
	if !id1.IsForward() || id1.Complement().IsForward() {
		t.Error("Container strand ids failed")
	}
	if !bytes.Equal(c.Seq(id1.Complement()), ReverseComplement(c.Seq(id1))) {
		t.Error("Container complement strand failed")
	}
	if c.Len(id2) != 5 || c.Name(id2.Complement()) != "seq2" {
		t.Error("Container Len/Name failed")
	}
	if id, ok := c.IDByName("seq1"); !ok || id != id1 {
		t.Error("Container IDByName failed")
	}
	if c.TotalLength() != 13 {
		t.Error("Container TotalLength failed")
	}
}

func TestLoadFasta(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "test.fasta")
	content := ">seq1 description\nACGT\nACGT\n>seq2\nttggn\n"
	if err := ioutil.WriteFile(filename, []byte(content), 0666); err != nil {
		t.Fatal(err)
	}
	c := NewContainer()
	c.LoadFromFile(filename)
	if c.Count() != 4 {
		t.Error("LoadFromFile fasta count failed")
	}
	id, ok := c.IDByName("seq1")
	if !ok || !bytes.Equal(c.Seq(id), []byte("ACGTACGT")) {
		t.Error("LoadFromFile fasta sequence failed")
	}
	id2, _ := c.IDByName("seq2")
	if !bytes.Equal(c.Seq(id2), []byte("TTGGN")) {
		t.Error("LoadFromFile fasta normalization failed")
	}
}

func TestLoadFastq(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "test.fastq")
	content := "@read1\nACGTA\n+\nIIIII\n@read2\nGGG\n+\nIII\n"
	if err := ioutil.WriteFile(filename, []byte(content), 0666); err != nil {
		t.Fatal(err)
	}
	c := NewContainer()
	c.LoadFromFile(filename)
	if c.Count() != 4 {
		t.Error("LoadFromFile fastq count failed")
	}
	id, ok := c.IDByName("read1")
	if !ok || !bytes.Equal(c.Seq(id), []byte("ACGTA")) {
		t.Error("LoadFromFile fastq sequence failed")
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "bad.fasta")
	if err := ioutil.WriteFile(filename, []byte(">seq1\nACXGT\n"), 0666); err != nil {
		t.Fatal(err)
	}
	func() {
		defer func() {
			r := recover()
			if r == nil {
				t.Error("LoadFromFile malformed input did not panic")
				return
			}
			if _, ok := r.(*ParseError); !ok {
				t.Error("LoadFromFile malformed input wrong error type")
			}
		}()
		c := NewContainer()
		c.LoadFromFile(filename)
	}()
	if _, err := os.Stat(filename); err != nil {
		t.Fatal(err)
	}
}

func TestIterKmers(t *testing.T) {
	var positions []int32
	IterKmers([]byte("ACGTNACGT"), 4, func(pos int32, code uint64) {
		positions = append(positions, pos)
	})
	if len(positions) != 2 || positions[0] != 0 || positions[1] != 5 {
		t.Error("IterKmers skip over N failed")
	}
	code1, ok1 := KmerCode([]byte("ACGT"))
	var code5 uint64
	IterKmers([]byte("ACGTNACGT"), 4, func(pos int32, code uint64) {
		if pos == 5 {
			code5 = code
		}
	})
	if !ok1 || code1 != code5 {
		t.Error("IterKmers rolling code failed")
	}
	if _, ok := KmerCode([]byte("ACNT")); ok {
		t.Error("KmerCode with N failed")
	}
}

func BenchmarkIterKmers(b *testing.B) {
	r := rand.New(rand.NewSource(17))
	data := randomSeq(r, 1<<16)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var count int
		IterKmers(data, 15, func(pos int32, code uint64) {
			count++
		})
	}
}

func TestVertexIndex(t *testing.T) {
	c := NewContainer()
	r := rand.New(rand.NewSource(2))
	data := randomSeq(r, 500)
	c.AddSequence("seq1", data)
	index := BuildVertexIndex(c, 15, 0)
	if index.KmerSize() != 15 {
		t.Error("VertexIndex KmerSize failed")
	}
	code, ok := KmerCode(data[100:115])
	if !ok {
		t.Fatal("KmerCode failed")
	}
	found := false
	for _, ip := range index.Lookup(code) {
		if ip.SeqID == 0 && ip.Pos == 100 {
			found = true
		}
	}
	if !found {
		t.Error("VertexIndex Lookup failed")
	}
}

func TestVertexIndexBanning(t *testing.T) {
	c := NewContainer()
	c.AddSequence("polyA", bytes.Repeat([]byte("A"), 100))
	index := BuildVertexIndex(c, 5, 10)
	if index.BannedCount() == 0 {
		t.Error("VertexIndex banning failed")
	}
	code, _ := KmerCode([]byte("AAAAA"))
	if index.Lookup(code) != nil {
		t.Error("VertexIndex banned lookup failed")
	}
}
