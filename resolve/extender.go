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

package resolve

import (
	"bufio"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/rgtools/repgraph/align"
	"github.com/rgtools/repgraph/config"
	"github.com/rgtools/repgraph/graph"
	"github.com/rgtools/repgraph/internal"
)

// A Contig is a linear assembly product: one or more unbranching
// paths merged end to end.
type Contig struct {
	ID           int
	Path         []graph.EdgeID
	Seq          []byte
	Length       int32
	MeanCoverage float64
	Multiplicity int
	Circular     bool

	// Extended marks contigs that crossed a still-ambiguous junction
	// under the graph-continue policy.
	Extended bool
}

// Name returns the output name of the contig.
func (c *Contig) Name() string {
	return fmt.Sprintf("contig_%v", c.ID)
}

// A ScaffoldLink is a gap-spanning join between two contigs
// supported by read evidence without full sequence support.
type ScaffoldLink struct {
	Left    string
	Right   string
	Gap     int32
	Support int
}

// A ContigExtender walks the resolved graph, emits maximal
// unbranching paths, and merges them into final contigs and
// scaffolds.
type ContigExtender struct {
	graph        *graph.RepeatGraph
	aligner      *align.ReadAligner
	cfg          config.Config
	meanCoverage float64

	paths    []graph.UnbranchingPath
	contigs  []*Contig
	scaffold []ScaffoldLink
}

// NewContigExtender returns an extender over the resolved graph.
func NewContigExtender(g *graph.RepeatGraph, aligner *align.ReadAligner, cfg config.Config, meanCoverage float64) *ContigExtender {
	return &ContigExtender{graph: g, aligner: aligner, cfg: cfg, meanCoverage: meanCoverage}
}

// GenerateUnbranchingPaths materializes the current maximal
// unbranching paths; after resolution the graph should be mostly
// linear.
func (ce *ContigExtender) GenerateUnbranchingPaths() {
	ce.paths = graph.UnbranchingPathsOf(ce.graph)
	log.Printf("Generated %v unbranching paths", len(ce.paths))
}

// UnbranchingPaths returns the paths produced by
// GenerateUnbranchingPaths.
func (ce *ContigExtender) UnbranchingPaths() []graph.UnbranchingPath {
	return ce.paths
}

// GenerateContigs merges unbranching paths end to end wherever a
// junction has exactly one predecessor and one successor path. With
// graphContinue set, contigs additionally extend across ambiguous
// junctions along the branch with the strongest read support — a
// deliberate completeness-over-precision trade-off chosen by the
// caller; it is the only behavioral difference between the two
// modes.
func (ce *ContigExtender) GenerateContigs(graphContinue bool) {
	g := ce.graph
	support := ce.transitionSupport()

	startsAt := make(map[graph.VertexID][]int)
	endsAt := make(map[graph.VertexID][]int)
	for i := range ce.paths {
		up := &ce.paths[i]
		first := g.Edge(up.Path[0])
		last := g.Edge(up.Path[len(up.Path)-1])
		startsAt[first.From] = append(startsAt[first.From], i)
		endsAt[last.To] = append(endsAt[last.To], i)
	}

	// pickContinuation returns the successor path of up, or -1. At
	// unambiguous junctions there is exactly one candidate; at
	// ambiguous junctions a candidate is only picked under
	// graphContinue, and only when its read support strictly beats
	// every alternative.
	pickContinuation := func(i int) int {
		up := &ce.paths[i]
		last := g.Edge(up.Path[len(up.Path)-1])
		candidates := startsAt[last.To]
		if len(candidates) == 1 && len(endsAt[last.To]) == 1 {
			return candidates[0]
		}
		if !graphContinue || len(candidates) == 0 {
			return -1
		}
		best, second := -1, 0
		var bestSupport int
		for _, c := range candidates {
			first := g.Edge(ce.paths[c].Path[0])
			s := support[[2]graph.EdgeID{last.ID, first.ID}]
			if best < 0 || s > bestSupport {
				second = bestSupport
				bestSupport = s
				best = c
			} else if s > second {
				second = s
			}
		}
		if bestSupport < ce.cfg.MinReadSupport || bestSupport == second {
			return -1 // unresolved tie, never an arbitrary choice
		}
		return best
	}

	consumed := make([]bool, len(ce.paths))
	ce.contigs = nil
	for i := range ce.paths {
		if consumed[i] {
			continue
		}
		chain := []int{i}
		consumed[i] = true
		extended := false
		if !ce.paths[i].Circular {
			for {
				cur := chain[len(chain)-1]
				next := pickContinuation(cur)
				if next < 0 || consumed[next] {
					break
				}
				last := g.Edge(ce.paths[cur].Path[len(ce.paths[cur].Path)-1])
				if len(startsAt[last.To]) > 1 || len(endsAt[last.To]) > 1 {
					extended = true
				}
				chain = append(chain, next)
				consumed[next] = true
			}
		}

		contig := &Contig{
			ID:           len(ce.contigs) + 1,
			Circular:     len(chain) == 1 && ce.paths[i].Circular,
			Multiplicity: ce.paths[i].Multiplicity,
			Extended:     extended,
		}
		var weighted float64
		for _, pi := range chain {
			up := &ce.paths[pi]
			contig.Path = append(contig.Path, up.Path...)
			contig.Seq = append(contig.Seq, graph.PathSeq(g, up)...)
			contig.Length += up.Length
			weighted += up.MeanCoverage * float64(up.Length)
		}
		if contig.Length > 0 {
			contig.MeanCoverage = weighted / float64(contig.Length)
		}
		if ce.meanCoverage > 0 {
			mult := int(math.Round(contig.MeanCoverage / ce.meanCoverage))
			if mult < 1 {
				mult = 1
			}
			contig.Multiplicity = mult
		}
		ce.contigs = append(ce.contigs, contig)
	}

	ce.findScaffoldLinks()
	log.Printf("Generated %v contigs", len(ce.contigs))
}

func (ce *ContigExtender) transitionSupport() map[[2]graph.EdgeID]int {
	support := make(map[[2]graph.EdgeID]int)
	for _, aln := range ce.aligner.Alignments() {
		for i := 0; i+1 < len(aln.Path); i++ {
			support[[2]graph.EdgeID{aln.Path[i].EdgeID, aln.Path[i+1].EdgeID}]++
		}
	}
	return support
}

// findScaffoldLinks collects read-path jumps between edges that are
// not graph-adjacent: a read aligning off the end of one contig and
// onto the start of another witnesses a gap-spanning join.
func (ce *ContigExtender) findScaffoldLinks() {
	g := ce.graph

	lastEdgeOf := make(map[graph.EdgeID]*Contig)
	firstEdgeOf := make(map[graph.EdgeID]*Contig)
	for _, c := range ce.contigs {
		lastEdgeOf[c.Path[len(c.Path)-1]] = c
		firstEdgeOf[c.Path[0]] = c
	}

	type linkKey struct {
		left, right string
	}
	gaps := make(map[linkKey][]int32)
	for _, aln := range ce.aligner.Alignments() {
		for i := 0; i+1 < len(aln.Path); i++ {
			a, b := &aln.Path[i], &aln.Path[i+1]
			edgeA := g.Edge(a.EdgeID)
			edgeB := g.Edge(b.EdgeID)
			if edgeA == nil || edgeB == nil || edgeA.To == edgeB.From {
				continue
			}
			left, okA := lastEdgeOf[a.EdgeID]
			right, okB := firstEdgeOf[b.EdgeID]
			if !okA || !okB || left == right {
				continue
			}
			gap := b.ReadBegin - a.ReadEnd
			gaps[linkKey{left: left.Name(), right: right.Name()}] = append(gaps[linkKey{left: left.Name(), right: right.Name()}], gap)
		}
	}

	keys := make([]linkKey, 0, len(gaps))
	for k := range gaps {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].left != keys[j].left {
			return keys[i].left < keys[j].left
		}
		return keys[i].right < keys[j].right
	})

	ce.scaffold = nil
	for _, k := range keys {
		observed := gaps[k]
		if len(observed) < ce.cfg.MinReadSupport {
			continue
		}
		sort.Slice(observed, func(i, j int) bool { return observed[i] < observed[j] })
		ce.scaffold = append(ce.scaffold, ScaffoldLink{
			Left:    k.left,
			Right:   k.right,
			Gap:     observed[len(observed)/2],
			Support: len(observed),
		})
	}
}

// Contigs returns the generated contigs.
func (ce *ContigExtender) Contigs() []*Contig {
	return ce.contigs
}

// ScaffoldLinks returns the gap-spanning joins between contigs.
func (ce *ContigExtender) ScaffoldLinks() []ScaffoldLink {
	return ce.scaffold
}

// OutputContigs writes the contig sequences as FASTA.
func (ce *ContigExtender) OutputContigs(filename string) {
	internal.WriteFileAtomic(filename, func(w *bufio.Writer) {
		for _, c := range ce.contigs {
			internal.WriteFastaRecord(w, c.Name(), c.Seq)
		}
	})
}

// OutputStatsTable writes per-contig statistics.
func (ce *ContigExtender) OutputStatsTable(filename string) {
	internal.WriteFileAtomic(filename, func(w *bufio.Writer) {
		fmt.Fprintln(w, "#seq_name\tlength\tcoverage\tcircular\trepeat\tmult")
		for _, c := range ce.contigs {
			repeat := "N"
			if c.Multiplicity > 1 {
				repeat = "Y"
			}
			circular := "N"
			if c.Circular {
				circular = "Y"
			}
			fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\t%v\n",
				c.Name(), c.Length, int(c.MeanCoverage+0.5), circular, repeat, c.Multiplicity)
		}
	})
}

// OutputScaffoldConnections writes the scaffold-link table.
func (ce *ContigExtender) OutputScaffoldConnections(filename string) {
	internal.WriteFileAtomic(filename, func(w *bufio.Writer) {
		fmt.Fprintln(w, "#left_contig\tright_contig\tgap_estimate\tsupport")
		for _, link := range ce.scaffold {
			fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", link.Left, link.Right, link.Gap, link.Support)
		}
	})
}
