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
	"log"
	"sort"

	"github.com/rgtools/repgraph/align"
	"github.com/rgtools/repgraph/config"
	"github.com/rgtools/repgraph/graph"
	"github.com/rgtools/repgraph/seq"
)

// A FlankPairing is one observed (left-unique, right-unique)
// combination across a repeat edge: evidence for one true genomic
// copy of the repeat.
type FlankPairing struct {
	Left    graph.EdgeID
	Right   graph.EdgeID
	Support int
}

// A RepeatRecord is the evidence collected for one repeat edge,
// kept for the diagnostics dump whether or not the repeat was
// resolved.
type RepeatRecord struct {
	Edge         graph.EdgeID
	Multiplicity int
	Pairings     []FlankPairing
	Resolved     bool
}

// A RepeatResolver identifies repeat edges and splits them into
// distinct copies where read-path evidence corroborates each copy's
// flanks. Ambiguous repeats are left unresolved and flagged; they
// surface as branching points rather than being silently guessed.
type RepeatResolver struct {
	graph   *graph.RepeatGraph
	aligner *align.ReadAligner
	inferer *MultiplicityInferer
	cfg     config.Config

	records    []RepeatRecord
	resolved   int
	unresolved int
	fixedEdges int
}

// NewRepeatResolver returns a resolver over the inferred graph.
func NewRepeatResolver(g *graph.RepeatGraph, aligner *align.ReadAligner, inferer *MultiplicityInferer, cfg config.Config) *RepeatResolver {
	return &RepeatResolver{graph: g, aligner: aligner, inferer: inferer, cfg: cfg}
}

// FindRepeats marks edges with inferred multiplicity above one as
// repeats and collects their flank pairings from read paths. A
// pairing is only counted when a read traverses
// left-repeat-right contiguously, so every pairing corresponds to
// adjacency that actually exists in the graph.
func (rr *RepeatResolver) FindRepeats() {
	g := rr.graph
	g.Edges(func(e *graph.Edge) {
		e.Repetitive = e.Multiplicity > 1 && e.AltGroup < 0
	})

	type pairingKey struct {
		left, right graph.EdgeID
	}
	pairings := make(map[graph.EdgeID]map[pairingKey]int)
	for _, aln := range rr.aligner.Alignments() {
		for i := 1; i+1 < len(aln.Path); i++ {
			mid := g.Edge(aln.Path[i].EdgeID)
			if mid == nil || !mid.Repetitive {
				continue
			}
			left := g.Edge(aln.Path[i-1].EdgeID)
			right := g.Edge(aln.Path[i+1].EdgeID)
			if left == nil || right == nil || left.Repetitive || right.Repetitive {
				continue
			}
			if left.To != mid.From || right.From != mid.To {
				continue // scaffold jump, not a traversal
			}
			if left.ID == right.ID || right.ID == left.ComplID {
				continue
			}
			if pairings[mid.ID] == nil {
				pairings[mid.ID] = make(map[pairingKey]int)
			}
			pairings[mid.ID][pairingKey{left: left.ID, right: right.ID}]++
		}
	}

	rr.records = rr.records[:0]
	repeats := 0
	g.Edges(func(e *graph.Edge) {
		if !e.Repetitive || e.ComplID < e.ID {
			return
		}
		repeats++
		record := RepeatRecord{Edge: e.ID, Multiplicity: e.Multiplicity}
		for key, support := range pairings[e.ID] {
			record.Pairings = append(record.Pairings, FlankPairing{
				Left:    key.left,
				Right:   key.right,
				Support: support,
			})
		}
		sort.Slice(record.Pairings, func(i, j int) bool {
			p, q := record.Pairings[i], record.Pairings[j]
			if p.Support != q.Support {
				return p.Support > q.Support
			}
			if p.Left != q.Left {
				return p.Left < q.Left
			}
			return p.Right < q.Right
		})
		rr.records = append(rr.records, record)
	})
	log.Printf("Found %v repeat edges", repeats)
}

// matchPairings selects the corroborated flank pairings of one
// repeat: strongest support first, each flank used at most once,
// support at or above the read-support floor. Ties that would force
// an arbitrary flank assignment have already been broken by the
// stable pairing order.
func (rr *RepeatResolver) matchPairings(record *RepeatRecord) []FlankPairing {
	usedLeft := make(map[graph.EdgeID]bool)
	usedRight := make(map[graph.EdgeID]bool)
	var accepted []FlankPairing
	for _, p := range record.Pairings {
		if p.Support < rr.cfg.MinReadSupport {
			continue
		}
		if usedLeft[p.Left] || usedRight[p.Right] {
			continue
		}
		usedLeft[p.Left] = true
		usedRight[p.Right] = true
		accepted = append(accepted, p)
	}
	return accepted
}

// ResolveRepeats splits every repeat edge with fully corroborated
// flank evidence into one copy per pairing. A repeat is resolved
// only when the number of matched pairings equals its inferred
// multiplicity; anything weaker stays unresolved and flagged.
func (rr *RepeatResolver) ResolveRepeats() {
	g := rr.graph
	for i := range rr.records {
		record := &rr.records[i]
		e := g.Edge(record.Edge)
		if e == nil || e.SelfComplement {
			rr.unresolved++
			continue
		}
		accepted := rr.matchPairings(record)
		if len(accepted) != record.Multiplicity || len(accepted) < 2 {
			rr.unresolved++
			continue
		}
		if !rr.flanksStillAttached(e, accepted) {
			rr.unresolved++
			continue
		}
		rr.splitRepeat(e, accepted)
		record.Resolved = true
		rr.resolved++
	}
	rr.aligner.RebuildEdgeIndex()
	log.Printf("Resolved %v repeats, %v left unresolved", rr.resolved, rr.unresolved)
}

// flanksStillAttached verifies that earlier surgery has not moved
// any flank away from the repeat's endpoints.
func (rr *RepeatResolver) flanksStillAttached(e *graph.Edge, accepted []FlankPairing) bool {
	g := rr.graph
	for _, p := range accepted {
		left := g.Edge(p.Left)
		right := g.Edge(p.Right)
		if left == nil || right == nil {
			return false
		}
		if left.To != e.From || right.From != e.To {
			return false
		}
	}
	return true
}

// splitRepeat replaces a repeat edge with one parallel copy per
// corroborated flank pairing, each copy connecting exactly one
// (left, right) flank combination through fresh vertices. Read
// paths that witnessed a pairing are remapped onto its copy.
func (rr *RepeatResolver) splitRepeat(e *graph.Edge, accepted []FlankPairing) {
	g := rr.graph
	oldFrom, oldTo := e.From, e.To
	copyCoverage := e.MeanCoverage / float64(len(accepted))
	repeatSeq := append([]byte(nil), g.EdgeSeq(e)...)

	for idx, p := range accepted {
		left := g.Edge(p.Left)
		right := g.Edge(p.Right)

		nu, nuc := g.AddVertexPair()
		nw, nwc := g.AddVertexPair()

		g.MoveEdgeTo(left, nu)
		g.MoveEdgeFrom(g.Complement(left), nuc)
		g.MoveEdgeFrom(right, nw)
		g.MoveEdgeTo(g.Complement(right), nwc)

		segments := e.Segments
		if idx < len(e.Segments) {
			segments = e.Segments[idx : idx+1]
		}
		eCopy, eCopyCompl := g.AddEdgePair(nu, nw, segments)
		g.SetEdgeSeq(eCopy, repeatSeq)
		g.SetEdgeSeq(eCopyCompl, seq.ReverseComplement(repeatSeq))
		for _, c := range []*graph.Edge{eCopy, eCopyCompl} {
			c.Multiplicity = 1
			c.Resolved = true
			c.MeanCoverage = copyCoverage
		}

		rr.remapReadPaths(e, p, eCopy)
	}

	g.RemoveEdgePair(e, "resolved repeat")
	g.RemoveVertexIfIsolated(oldFrom)
	g.RemoveVertexIfIsolated(oldTo)
}

// remapReadPaths re-points path entries of reads witnessing a
// pairing from the shared repeat edge onto its new copy, on both
// strands.
func (rr *RepeatResolver) remapReadPaths(e *graph.Edge, p FlankPairing, eCopy *graph.Edge) {
	g := rr.graph
	for _, aln := range rr.aligner.EdgeAlignments(e.ID) {
		for i := 1; i+1 < len(aln.Path); i++ {
			if aln.Path[i].EdgeID == e.ID &&
				aln.Path[i-1].EdgeID == p.Left && aln.Path[i+1].EdgeID == p.Right {
				aln.Path[i].EdgeID = eCopy.ID
			}
		}
	}
	ec := g.Edge(e.ComplID)
	leftCompl := g.Edge(p.Left).ComplID
	rightCompl := g.Edge(p.Right).ComplID
	for _, aln := range rr.aligner.EdgeAlignments(ec.ID) {
		for i := 1; i+1 < len(aln.Path); i++ {
			if aln.Path[i].EdgeID == ec.ID &&
				aln.Path[i-1].EdgeID == rightCompl && aln.Path[i+1].EdgeID == leftCompl {
				aln.Path[i].EdgeID = eCopy.ComplID
			}
		}
	}
}

// detachEdgeEnd moves the sink end of an edge (and symmetrically
// the source end of its complement) to a fresh vertex pair.
func detachEdgeEnd(g *graph.RepeatGraph, e *graph.Edge) {
	oldTo := e.To
	ec := g.Complement(e)
	oldFrom := ec.From
	nv, nvc := g.AddVertexPair()
	g.MoveEdgeTo(e, nv)
	if ec != e {
		g.MoveEdgeFrom(ec, nvc)
	}
	g.RemoveVertexIfIsolated(oldTo)
	g.RemoveVertexIfIsolated(oldFrom)
}

// FixLongEdges detaches the ends of long repeat edges whose
// connections lack read-path continuity: a long edge that no read
// carries into a neighbor is more likely a mis-assembly than a real
// adjacency. The length and support thresholds are configuration,
// not constants.
func (rr *RepeatResolver) FixLongEdges() {
	g := rr.graph
	support := rr.inferer.transitionSupport()

	var targets []*graph.Edge
	g.Edges(func(e *graph.Edge) {
		if !e.Repetitive || e.ComplID < e.ID || e.SelfComplement {
			return
		}
		if int(e.Length()) < rr.cfg.LongEdgeLength {
			return
		}
		targets = append(targets, e)
	})

	for _, e := range targets {
		if g.Edge(e.ID) == nil {
			continue
		}
		outSupport := 0
		for _, out := range g.Vertex(e.To).Out {
			if s := support[[2]graph.EdgeID{e.ID, out}]; s > outSupport {
				outSupport = s
			}
		}
		inSupport := 0
		for _, in := range g.Vertex(e.From).In {
			if s := support[[2]graph.EdgeID{in, e.ID}]; s > inSupport {
				inSupport = s
			}
		}
		fixed := false
		if outSupport < rr.cfg.LongEdgeMinSupport && len(g.Vertex(e.To).Out) > 0 {
			detachEdgeEnd(g, e)
			fixed = true
		}
		if inSupport < rr.cfg.LongEdgeMinSupport && len(g.Vertex(e.From).In) > 0 {
			detachEdgeEnd(g, g.Complement(e))
			fixed = true
		}
		if fixed {
			rr.fixedEdges++
		}
	}
	log.Printf("Fixed %v long edges", rr.fixedEdges)
}

// Repeats returns the collected repeat evidence for diagnostics.
func (rr *RepeatResolver) Repeats() []RepeatRecord {
	return rr.records
}

// ResolvedCount returns the number of repeats split into copies.
func (rr *RepeatResolver) ResolvedCount() int {
	return rr.resolved
}

// UnresolvedCount returns the number of repeats left flagged.
func (rr *RepeatResolver) UnresolvedCount() int {
	return rr.unresolved
}
