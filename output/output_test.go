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

package output

import (
	"io/ioutil"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rgtools/repgraph/config"
	"github.com/rgtools/repgraph/graph"
	"github.com/rgtools/repgraph/resolve"
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

// forkGraph builds a graph with one edge into a junction and two
// edges out of it, so the three unbranching paths stay separate.
func forkGraph(t *testing.T) (*graph.RepeatGraph, []graph.UnbranchingPath) {
	r := rand.New(rand.NewSource(30))
	asm := seq.NewContainer()
	a := asm.AddSequence("A", randomSeq(r, 500))
	b := asm.AddSequence("B", randomSeq(r, 400))
	c := asm.AddSequence("C", randomSeq(r, 300))

	g := graph.NewRepeatGraph(asm, config.Default())
	u, _ := g.AddVertexPair()
	v, _ := g.AddVertexPair()
	w, _ := g.AddVertexPair()
	x, _ := g.AddVertexPair()
	for _, spec := range []struct {
		from, to *graph.Vertex
		id       seq.ID
		length   int32
	}{
		{u, v, a, 500},
		{v, w, b, 400},
		{v, x, c, 300},
	} {
		e, ec := g.AddEdgePair(spec.from, spec.to,
			[]graph.EdgeSegment{{SeqID: spec.id, Start: 0, End: spec.length}})
		e.Multiplicity = 1
		ec.Multiplicity = 1
		e.MeanCoverage = 10
		ec.MeanCoverage = 10
	}

	paths := graph.UnbranchingPathsOf(g)
	if len(paths) != 3 {
		t.Fatal("fork graph path count failed")
	}
	return g, paths
}

func TestOutputDot(t *testing.T) {
	g, paths := forkGraph(t)
	filename := filepath.Join(t.TempDir(), "graph.dot")
	NewGenerator(g).OutputDot(filename, paths)

	data, err := ioutil.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "digraph {") || !strings.HasSuffix(strings.TrimSpace(text), "}") {
		t.Error("OutputDot framing failed")
	}
	if strings.Count(text, "->") != 2*len(paths) {
		t.Error("OutputDot arrow count failed")
	}
	if !strings.Contains(text, "color = \"black\"") {
		t.Error("OutputDot unique color failed")
	}
}

func TestOutputGfa(t *testing.T) {
	g, paths := forkGraph(t)
	filename := filepath.Join(t.TempDir(), "graph.gfa")
	NewGenerator(g).OutputGfa(filename, paths)

	data, err := ioutil.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "H\tVN:Z:1.0" {
		t.Error("OutputGfa header failed")
	}
	segments, links := 0, 0
	for _, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line, "S\t"):
			segments++
			if !strings.Contains(line, "\tdp:i:10") {
				t.Error("OutputGfa depth tag failed")
			}
		case strings.HasPrefix(line, "L\t"):
			links++
			if !strings.HasSuffix(line, "\t0M") {
				t.Error("OutputGfa link overlap failed")
			}
		default:
			t.Error("OutputGfa unexpected line failed")
		}
	}
	if segments != 3 {
		t.Error("OutputGfa segment count failed")
	}
	// One link per junction adjacency, mirrors implied.
	if links != 2 {
		t.Error("OutputGfa link count failed")
	}
}

func TestOutputFasta(t *testing.T) {
	g, paths := forkGraph(t)
	filename := filepath.Join(t.TempDir(), "graph.fasta")
	NewGenerator(g).OutputFasta(filename, paths)

	data, err := ioutil.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if strings.Count(text, ">") != 3 {
		t.Error("OutputFasta record count failed")
	}
	if !strings.Contains(text, "length=500 coverage=10") {
		t.Error("OutputFasta header fields failed")
	}
}

func TestDumpRepeats(t *testing.T) {
	g, _ := forkGraph(t)
	records := []resolve.RepeatRecord{
		{
			Edge:         4,
			Multiplicity: 2,
			Pairings: []resolve.FlankPairing{
				{Left: 0, Right: 8, Support: 5},
				{Left: 2, Right: 10, Support: 4},
			},
			Resolved: true,
		},
		{Edge: 6, Multiplicity: 3},
	}
	filename := filepath.Join(t.TempDir(), "repeats_dump.txt")
	NewGenerator(g).DumpRepeats(filename, records)

	data, err := ioutil.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "#Repeat edge_4") || !strings.Contains(text, "#Repeat edge_6") {
		t.Error("DumpRepeats record headers failed")
	}
	if !strings.Contains(text, "status\tresolved") || !strings.Contains(text, "status\tunresolved") {
		t.Error("DumpRepeats status failed")
	}
	if !strings.Contains(text, "pairing\tedge_0\tedge_8\t5") {
		t.Error("DumpRepeats pairing line failed")
	}
}
