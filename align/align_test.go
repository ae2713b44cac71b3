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

package align

import (
	"math/rand"
	"testing"

	"github.com/rgtools/repgraph/config"
	"github.com/rgtools/repgraph/graph"
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

func testConfig() config.Config {
	cfg := config.Default()
	cfg.KmerSize = 15
	cfg.MinOverlap = 300
	cfg.MaxJump = 500
	cfg.MaxSeparation = 250
	return cfg
}

// linearGraph builds a chain of edges, one per given sequence, with
// shared junction vertices between consecutive edges.
func linearGraph(cfg config.Config, seqs ...[]byte) (*graph.RepeatGraph, []*graph.Edge) {
	asm := seq.NewContainer()
	ids := make([]seq.ID, len(seqs))
	for i, s := range seqs {
		ids[i] = asm.AddSequence(string(rune('A'+i))+"seq", s)
	}
	g := graph.NewRepeatGraph(asm, cfg)
	prev, _ := g.AddVertexPair()
	edges := make([]*graph.Edge, len(seqs))
	for i, s := range seqs {
		next, _ := g.AddVertexPair()
		e, ec := g.AddEdgePair(prev, next, []graph.EdgeSegment{{SeqID: ids[i], Start: 0, End: int32(len(s))}})
		e.Multiplicity = 1
		ec.Multiplicity = 1
		edges[i] = e
		prev = next
	}
	return g, edges
}

func concat(seqs ...[]byte) []byte {
	var result []byte
	for _, s := range seqs {
		result = append(result, s...)
	}
	return result
}

func TestAlignReads(t *testing.T) {
	r := rand.New(rand.NewSource(12))
	a := randomSeq(r, 1000)
	b := randomSeq(r, 1000)
	c := randomSeq(r, 1000)
	cfg := testConfig()
	g, edges := linearGraph(cfg, a, b, c)

	reads := seq.NewContainer()
	reads.AddSequence("read1", concat(a, b, c))

	aligner := NewReadAligner(g, reads, cfg)
	aligner.AlignReads()

	alns := aligner.Alignments()
	if len(alns) != 2 {
		t.Fatal("AlignReads alignment count failed")
	}
	if aligner.UnalignedReads() != 0 {
		t.Error("AlignReads unaligned count failed")
	}

	fwd := alns[0]
	if !fwd.ReadID.IsForward() {
		fwd = alns[1]
	}
	if len(fwd.Path) != 3 {
		t.Fatal("AlignReads path length failed")
	}
	for i, ea := range fwd.Path {
		if ea.EdgeID != edges[i].ID {
			t.Error("AlignReads path order failed")
		}
	}
	if fwd.AlignedLength < 2900 {
		t.Error("AlignReads aligned length failed")
	}
	if fwd.Path[0].ReadBegin > 50 || fwd.Path[2].ReadEnd < 2950 {
		t.Error("AlignReads read span failed")
	}
}

func TestComplementAlignment(t *testing.T) {
	r := rand.New(rand.NewSource(13))
	a := randomSeq(r, 1000)
	b := randomSeq(r, 1000)
	cfg := testConfig()
	g, edges := linearGraph(cfg, a, b)

	reads := seq.NewContainer()
	reads.AddSequence("read1", concat(a, b))

	aligner := NewReadAligner(g, reads, cfg)
	aligner.AlignReads()

	alns := aligner.Alignments()
	if len(alns) != 2 {
		t.Fatal("AlignReads alignment count failed")
	}
	fwd, rev := alns[0], alns[1]
	if !fwd.ReadID.IsForward() {
		fwd, rev = rev, fwd
	}
	if rev.ReadID != fwd.ReadID.Complement() {
		t.Error("complement alignment read id failed")
	}
	if len(rev.Path) != len(fwd.Path) {
		t.Fatal("complement alignment path length failed")
	}
	for i, ea := range rev.Path {
		mirror := fwd.Path[len(fwd.Path)-1-i]
		if ea.EdgeID != g.Edge(mirror.EdgeID).ComplID {
			t.Error("complement alignment edge failed")
		}
	}
	if aligner.EdgeAlignments(edges[0].ID) == nil {
		t.Error("edge index lookup failed")
	}
	if aligner.EdgeAlignments(edges[0].ComplID) == nil {
		t.Error("edge index complement lookup failed")
	}
}

func TestAlignShortRead(t *testing.T) {
	r := rand.New(rand.NewSource(14))
	a := randomSeq(r, 1000)
	cfg := testConfig()
	g, _ := linearGraph(cfg, a)

	reads := seq.NewContainer()
	reads.AddSequence("short", a[:100])

	aligner := NewReadAligner(g, reads, cfg)
	aligner.AlignReads()

	if len(aligner.Alignments()) != 0 {
		t.Error("short read alignment failed")
	}
	if aligner.UnalignedReads() != 1 {
		t.Error("short read unaligned count failed")
	}
}

func TestAlignUnrelatedRead(t *testing.T) {
	r := rand.New(rand.NewSource(15))
	a := randomSeq(r, 1000)
	cfg := testConfig()
	g, _ := linearGraph(cfg, a)

	reads := seq.NewContainer()
	reads.AddSequence("junk", randomSeq(r, 1000))

	aligner := NewReadAligner(g, reads, cfg)
	aligner.AlignReads()

	if len(aligner.Alignments()) != 0 || aligner.UnalignedReads() != 1 {
		t.Error("unrelated read alignment failed")
	}
}

func TestAlignReverseStrandRead(t *testing.T) {
	r := rand.New(rand.NewSource(16))
	a := randomSeq(r, 1000)
	cfg := testConfig()
	g, edges := linearGraph(cfg, a)

	reads := seq.NewContainer()
	reads.AddSequence("revread", seq.ReverseComplement(a))

	aligner := NewReadAligner(g, reads, cfg)
	aligner.AlignReads()

	alns := aligner.Alignments()
	if len(alns) != 2 {
		t.Fatal("reverse strand read alignment failed")
	}
	fwd := alns[0]
	if !fwd.ReadID.IsForward() {
		fwd = alns[1]
	}
	if len(fwd.Path) != 1 || fwd.Path[0].EdgeID != edges[0].ComplID {
		t.Error("reverse strand read path failed")
	}
}
