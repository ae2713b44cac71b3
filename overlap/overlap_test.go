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

package overlap

import (
	"math/rand"
	"testing"

	"github.com/rgtools/repgraph/seq"
)

func randomSeq(r *rand.Rand, n int) []byte {
	bases := []byte("ACGT")
	s := make([]byte, n)
	for i := range s {
		s[i] = bases[r.Intn(4)]
	}
	return s
}

func newTestDetector(c *seq.Container, minOverlap int) *Detector {
	index := seq.BuildVertexIndex(c, 15, 500)
	return NewDetector(c, index, minOverlap, 500)
}

func TestRangeComplement(t *testing.T) {
	r := Range{CurID: 0, ExtID: 2, CurBegin: 100, CurEnd: 900, ExtBegin: 50, ExtEnd: 850, Score: 42}
	c := r.Complement(1000, 2000)
	if c.CurID != 1 || c.ExtID != 3 {
		t.Error("Range Complement ids failed")
	}
	if c.CurBegin != 100 || c.CurEnd != 900 || c.ExtBegin != 1150 || c.ExtEnd != 1950 {
		t.Error("Range Complement coordinates failed")
	}
	back := c.Complement(1000, 2000)
	if back != r {
		t.Error("Range Complement involution failed")
	}
}

func TestOverlapsIdenticalSequences(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	data := randomSeq(r, 2000)
	c := seq.NewContainer()
	c.AddSequence("seq1", data)
	c.AddSequence("seq2", append([]byte(nil), data...))

	d := newTestDetector(c, 500)
	overlaps := d.SelfOverlaps()
	found := false
	for i := range overlaps {
		ovl := &overlaps[i]
		if ovl.CurID == 0 && ovl.ExtID == 2 && ovl.CurSpan() > 1500 {
			found = true
		}
	}
	if !found {
		t.Error("SelfOverlaps identical sequences failed")
	}
}

func TestOverlapsSuppressIdentity(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	data := randomSeq(r, 2000)
	c := seq.NewContainer()
	c.AddSequence("seq1", data)

	d := newTestDetector(c, 500)
	for _, ovl := range d.Overlaps(data, 0) {
		if ovl.ExtID == 0 {
			t.Error("Overlaps identity suppression failed")
		}
	}
}

func TestOverlapsUnrelatedSequences(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	c := seq.NewContainer()
	c.AddSequence("seq1", randomSeq(r, 2000))
	c.AddSequence("seq2", randomSeq(r, 2000))

	d := newTestDetector(c, 500)
	if len(d.SelfOverlaps()) != 0 {
		t.Error("SelfOverlaps unrelated sequences failed")
	}
}

func TestOverlapsMinOverlap(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	shared := randomSeq(r, 300)
	s1 := append(randomSeq(r, 1000), shared...)
	s2 := append(append([]byte(nil), shared...), randomSeq(r, 1000)...)
	c := seq.NewContainer()
	c.AddSequence("seq1", s1)
	c.AddSequence("seq2", s2)

	strict := newTestDetector(c, 500)
	for _, ovl := range strict.Overlaps(s1, 0) {
		if ovl.ExtID == 2 {
			t.Error("Overlaps min-overlap filter failed")
		}
	}

	relaxed := newTestDetector(c, 100)
	found := false
	for _, ovl := range relaxed.Overlaps(s1, 0) {
		if ovl.ExtID == 2 && ovl.CurSpan() >= 100 {
			found = true
		}
	}
	if !found {
		t.Error("Overlaps shared region detection failed")
	}
}
