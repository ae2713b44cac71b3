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

// Package output renders graph checkpoints: Graphviz dot for
// inspection, GFA for downstream tools, FASTA for sequence export,
// and the repeat evidence dump for diagnostics.
package output

import (
	"bufio"
	"fmt"

	"github.com/rgtools/repgraph/graph"
	"github.com/rgtools/repgraph/internal"
	"github.com/rgtools/repgraph/resolve"
)

// A Generator renders views of one repeat graph. All output files are
// written atomically, so an interrupted run never leaves a truncated
// checkpoint behind.
type Generator struct {
	graph *graph.RepeatGraph
}

// NewGenerator returns a generator over the given graph.
func NewGenerator(g *graph.RepeatGraph) *Generator {
	return &Generator{graph: g}
}

var repeatColors = []string{
	"red", "darkgreen", "blue", "goldenrod", "cadetblue", "darkorchid",
	"aquamarine1", "darkgoldenrod1", "deepskyblue1", "darkolivegreen3",
}

// OutputDot writes the graph as Graphviz dot, one arrow per
// unbranching path per strand. Repeat paths get a color from a
// palette keyed on the path name, so the same path keeps its color
// across checkpoints; unique paths stay black.
func (gen *Generator) OutputDot(filename string, paths []graph.UnbranchingPath) {
	g := gen.graph
	internal.WriteFileAtomic(filename, func(w *bufio.Writer) {
		fmt.Fprintln(w, "digraph {")
		fmt.Fprintln(w, "nodesep = 0.5;")
		fmt.Fprintln(w, "node [shape = circle, label = \"\", height = 0.3];")

		for i := range paths {
			up := &paths[i]
			color := "black"
			if up.Repetitive {
				color = repeatColors[internal.StringHash(up.Name())%uint64(len(repeatColors))]
			}
			first := g.Edge(up.Path[0])
			last := g.Edge(up.Path[len(up.Path)-1])
			label := fmt.Sprintf("id %v\\l%v %vx", up.ID, up.Length, int(up.MeanCoverage+0.5))
			fmt.Fprintf(w, "\"%v\" -> \"%v\" [label = \"%v\", color = \"%v\"];\n",
				first.From, last.To, label, color)
			cFirst := g.Complement(last)
			cLast := g.Complement(first)
			fmt.Fprintf(w, "\"%v\" -> \"%v\" [label = \"%v\", color = \"%v\"];\n",
				cFirst.From, cLast.To, fmt.Sprintf("id -%v\\l%v %vx", up.ID, up.Length, int(up.MeanCoverage+0.5)), color)
		}
		fmt.Fprintln(w, "}")
	})
}

// pathStart and pathEnd give the endpoint vertices of a path on
// either strand; sign "-" walks the complement strand.
func pathStart(g *graph.RepeatGraph, up *graph.UnbranchingPath, sign byte) graph.VertexID {
	if sign == '+' {
		return g.Edge(up.Path[0]).From
	}
	return g.Complement(g.Edge(up.Path[len(up.Path)-1])).From
}

func pathEnd(g *graph.RepeatGraph, up *graph.UnbranchingPath, sign byte) graph.VertexID {
	if sign == '+' {
		return g.Edge(up.Path[len(up.Path)-1]).To
	}
	return g.Complement(g.Edge(up.Path[0])).To
}

// OutputGfa writes the graph in GFA 1.0: one segment per unbranching
// path with its depth tag, and one link per junction adjacency. Each
// link is emitted once; its strand mirror is implied.
func (gen *Generator) OutputGfa(filename string, paths []graph.UnbranchingPath) {
	g := gen.graph
	internal.WriteFileAtomic(filename, func(w *bufio.Writer) {
		fmt.Fprintln(w, "H\tVN:Z:1.0")
		for i := range paths {
			up := &paths[i]
			fmt.Fprintf(w, "S\t%v\t", up.Name())
			internal.Write(w, graph.PathSeq(g, up))
			fmt.Fprintf(w, "\tdp:i:%v\n", int(up.MeanCoverage+0.5))
		}

		type link struct {
			a     string
			aSign byte
			b     string
			bSign byte
		}
		seen := make(map[link]bool)
		signs := []byte{'+', '-'}
		for i := range paths {
			for j := range paths {
				for _, si := range signs {
					for _, sj := range signs {
						if pathEnd(g, &paths[i], si) != pathStart(g, &paths[j], sj) {
							continue
						}
						l := link{a: paths[i].Name(), aSign: si, b: paths[j].Name(), bSign: sj}
						mirror := link{a: paths[j].Name(), aSign: flipSign(sj), b: paths[i].Name(), bSign: flipSign(si)}
						if seen[l] || seen[mirror] {
							continue
						}
						seen[l] = true
						fmt.Fprintf(w, "L\t%v\t%c\t%v\t%c\t0M\n", l.a, l.aSign, l.b, l.bSign)
					}
				}
			}
		}
	})
}

func flipSign(s byte) byte {
	if s == '+' {
		return '-'
	}
	return '+'
}

// OutputFasta writes one FASTA record per unbranching path.
func (gen *Generator) OutputFasta(filename string, paths []graph.UnbranchingPath) {
	g := gen.graph
	internal.WriteFileAtomic(filename, func(w *bufio.Writer) {
		for i := range paths {
			up := &paths[i]
			name := fmt.Sprintf("%v length=%v coverage=%v", up.Name(), up.Length, int(up.MeanCoverage+0.5))
			internal.WriteFastaRecord(w, name, graph.PathSeq(g, up))
		}
	})
}

// DumpRepeats writes the per-repeat evidence collected during
// resolution, including repeats that stayed unresolved, plus the log
// of removed edges.
func (gen *Generator) DumpRepeats(filename string, records []resolve.RepeatRecord) {
	g := gen.graph
	internal.WriteFileAtomic(filename, func(w *bufio.Writer) {
		for i := range records {
			r := &records[i]
			status := "unresolved"
			if r.Resolved {
				status = "resolved"
			}
			fmt.Fprintf(w, "#Repeat edge_%v\n", r.Edge)
			fmt.Fprintf(w, "multiplicity\t%v\n", r.Multiplicity)
			fmt.Fprintf(w, "status\t%v\n", status)
			for _, p := range r.Pairings {
				fmt.Fprintf(w, "pairing\tedge_%v\tedge_%v\t%v\n", p.Left, p.Right, p.Support)
			}
			fmt.Fprintln(w)
		}
		if removed := g.RemovedEdges(); len(removed) > 0 {
			fmt.Fprintln(w, "#Removed edges")
			for _, r := range removed {
				fmt.Fprintf(w, "edge_%v\t%v\t%.1f\t%v\n", r.ID, r.Length, r.Coverage, r.Reason)
			}
		}
	})
}
