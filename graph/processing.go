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

package graph

import (
	"fmt"
	"log"

	"github.com/bits-and-blooms/bitset"

	"github.com/rgtools/repgraph/seq"
)

// An UnbranchingPath is a maximal chain of edges with no internal
// branching, the unit contigs are built from. One path is reported
// per complement pair, on the strand with the smaller leading edge
// id.
type UnbranchingPath struct {
	ID           EdgeID // id of the first edge in the path
	Path         []EdgeID
	Repetitive   bool
	Circular     bool
	Length       int32
	MeanCoverage float64
	Multiplicity int
}

// Name returns the stable name used in graph and contig output.
func (up *UnbranchingPath) Name() string {
	return fmt.Sprintf("edge_%v", up.ID)
}

// A Processor simplifies the raw repeat graph and maintains the
// canonical mapping from compound edges back to the original
// segments, so that simplified edges can be decomposed for output.
type Processor struct {
	graph   *RepeatGraph
	paths   map[EdgeID][]EdgeID
	archive map[EdgeID]*Edge
}

// NewProcessor returns a processor over the given graph.
func NewProcessor(g *RepeatGraph) *Processor {
	return &Processor{
		graph:   g,
		paths:   make(map[EdgeID][]EdgeID),
		archive: make(map[EdgeID]*Edge),
	}
}

// Simplify collapses unbranching chains into compound edges and
// removes degenerate self-loops and zero-length artifacts. Calling
// it on an already simplified graph is a no-op.
func (p *Processor) Simplify() {
	removedLoops := p.removeDegenerateEdges()
	collapsed := p.collapseChains()
	if removedLoops > 0 || collapsed > 0 {
		log.Printf("Simplified graph: %v chains collapsed, %v degenerate edges removed",
			collapsed, removedLoops)
	}
}

// removeDegenerateEdges drops zero-length edges (merging their
// endpoints) and self-loops shorter than the junction separation
// radius, which are artifacts of gluepoint clustering.
func (p *Processor) removeDegenerateEdges() (removed int) {
	g := p.graph
	minLoop := int32(g.cfg.MaxSeparation)
	for {
		var target *Edge
		g.Edges(func(e *Edge) {
			if target != nil {
				return
			}
			if e.From == e.To && e.Length() < minLoop {
				target = e
			} else if e.From != e.To && e.Length() == 0 {
				target = e
			}
		})
		if target == nil {
			return removed
		}
		if target.From != target.To {
			p.mergeVertices(target)
		}
		g.RemoveEdgePair(target, "degenerate")
		removed++
	}
}

// mergeVertices collapses the endpoints of a zero-length edge: e.To
// is absorbed into e.From, and the mirrored vertices are absorbed
// the same way on the complement strand, so the survivors stay a
// complement pair.
func (p *Processor) mergeVertices(e *Edge) {
	g := p.graph
	ec := g.Complement(e)
	keep := g.Vertex(e.From)
	absorb := g.Vertex(e.To)
	if keep == absorb {
		return
	}
	// An edge touching its own mirror image cannot be collapsed
	// without folding the two strands into one vertex; it is removed
	// without merging.
	if keep.ComplID == absorb.ID || keep.ComplID == keep.ID || absorb.ComplID == absorb.ID {
		return
	}
	keepC := g.Vertex(ec.To)
	absorbC := g.Vertex(ec.From)
	g.detachEdge(e)
	g.detachEdge(ec)
	p.absorbVertex(keep, absorb)
	p.absorbVertex(keepC, absorbC)
}

// absorbVertex redirects every edge end of absorb onto keep and
// drops absorb once it is empty.
func (p *Processor) absorbVertex(keep, absorb *Vertex) {
	g := p.graph
	for len(absorb.In) > 0 {
		g.MoveEdgeTo(g.Edge(absorb.In[0]), keep)
	}
	for len(absorb.Out) > 0 {
		g.MoveEdgeFrom(g.Edge(absorb.Out[0]), keep)
	}
	g.RemoveVertexIfIsolated(absorb.ID)
}

// collapseChains replaces every maximal unbranching chain of two or
// more edges with a single compound edge, recording the constituent
// edges so the chain can be decomposed later.
func (p *Processor) collapseChains() (collapsed int) {
	g := p.graph
	visited := bitset.New(uint(len(g.edges)))

	var chains [][]EdgeID
	g.Edges(func(e *Edge) {
		if visited.Test(uint(e.ID)) {
			return
		}
		chain := p.walkChain(e, visited)
		if len(chain) > 1 {
			chains = append(chains, chain)
		}
	})

	for _, chain := range chains {
		if p.chainAlive(chain) && !selfComplementary(g, chain) {
			p.condenseChain(chain)
			collapsed++
		}
	}
	return collapsed
}

// selfComplementary reports whether a chain contains both strands of
// some edge; such chains are left uncondensed.
func selfComplementary(g *RepeatGraph, chain []EdgeID) bool {
	ids := make(map[EdgeID]bool, len(chain))
	for _, id := range chain {
		ids[id] = true
	}
	for _, id := range chain {
		if ids[g.Edge(id).ComplID] {
			return true
		}
	}
	return false
}

func (p *Processor) chainAlive(chain []EdgeID) bool {
	for _, id := range chain {
		if p.graph.Edge(id) == nil {
			return false
		}
	}
	return true
}

// walkChain extends an edge in both directions through 1-in/1-out
// vertices. The chain and its complement are both marked visited, so
// each complement pair is collapsed exactly once.
func (p *Processor) walkChain(e *Edge, visited *bitset.BitSet) []EdgeID {
	g := p.graph
	unbranching := func(v *Vertex) bool {
		return len(v.In) == 1 && len(v.Out) == 1
	}

	chain := []EdgeID{e.ID}
	visited.Set(uint(e.ID))
	visited.Set(uint(e.ComplID))

	for cur := e; ; {
		v := g.Vertex(cur.To)
		if !unbranching(v) {
			break
		}
		next := g.Edge(v.Out[0])
		if visited.Test(uint(next.ID)) {
			break
		}
		chain = append(chain, next.ID)
		visited.Set(uint(next.ID))
		visited.Set(uint(next.ComplID))
		cur = next
	}
	for cur := e; ; {
		v := g.Vertex(cur.From)
		if !unbranching(v) {
			break
		}
		prev := g.Edge(v.In[0])
		if visited.Test(uint(prev.ID)) {
			break
		}
		chain = append([]EdgeID{prev.ID}, chain...)
		visited.Set(uint(prev.ID))
		visited.Set(uint(prev.ComplID))
		cur = prev
	}
	return chain
}

// condenseChain replaces the chain with one compound edge pair and
// archives the constituents.
func (p *Processor) condenseChain(chain []EdgeID) {
	g := p.graph

	var seqData []byte
	var pathIDs []EdgeID
	var weighted float64
	var totalLen int32
	for _, id := range chain {
		e := g.Edge(id)
		seqData = append(seqData, g.EdgeSeq(e)...)
		weighted += e.MeanCoverage * float64(e.Length())
		totalLen += e.Length()
		if sub, ok := p.paths[id]; ok {
			pathIDs = append(pathIDs, sub...)
		} else {
			pathIDs = append(pathIDs, id)
		}
	}

	first := g.Edge(chain[0])
	last := g.Edge(chain[len(chain)-1])
	from := g.Vertex(first.From)
	to := g.Vertex(last.To)

	for _, id := range chain {
		e := g.Edge(id)
		p.archive[id] = e
		g.detachEdge(e)
		g.edges[id] = nil
		ec := g.Edge(e.ComplID)
		if ec != nil && ec != e {
			p.archive[ec.ID] = ec
			g.detachEdge(ec)
			g.edges[ec.ID] = nil
		}
	}
	// Interior vertices of the chain are now isolated.
	g.Vertices(func(v *Vertex) {
		g.RemoveVertexIfIsolated(v.ID)
	})

	e, ec := g.AddEdgePair(from, to, first.Segments)
	g.SetEdgeSeq(e, seqData)
	g.SetEdgeSeq(ec, seq.ReverseComplement(seqData))
	e.Multiplicity = first.Multiplicity
	ec.Multiplicity = first.Multiplicity
	e.Repetitive = first.Repetitive
	ec.Repetitive = first.Repetitive
	if totalLen > 0 {
		e.MeanCoverage = weighted / float64(totalLen)
		ec.MeanCoverage = e.MeanCoverage
	}

	p.paths[e.ID] = pathIDs
	complPath := make([]EdgeID, len(pathIDs))
	for i, id := range pathIDs {
		orig := p.archive[id]
		complPath[len(pathIDs)-1-i] = orig.ComplID
	}
	p.paths[ec.ID] = complPath
}

// DecomposeEdge returns the original pre-simplification edge ids a
// compound edge was built from, or the edge itself if it was never
// condensed.
func (p *Processor) DecomposeEdge(id EdgeID) []EdgeID {
	if path, ok := p.paths[id]; ok {
		return path
	}
	return []EdgeID{id}
}

// Archived returns a constituent edge consumed by condensation.
func (p *Processor) Archived(id EdgeID) *Edge {
	return p.archive[id]
}

// EdgesPaths returns the current unbranching paths of the graph, the
// authoritative view other components traverse.
func (p *Processor) EdgesPaths() []UnbranchingPath {
	return UnbranchingPathsOf(p.graph)
}

// UnbranchingPathsOf walks the graph and returns all maximal
// unbranching paths, one per complement pair, in deterministic
// order.
func UnbranchingPathsOf(g *RepeatGraph) []UnbranchingPath {
	visited := bitset.New(uint(len(g.edges)))
	unbranching := func(v *Vertex) bool {
		return len(v.In) == 1 && len(v.Out) == 1
	}

	var paths []UnbranchingPath
	g.Edges(func(e *Edge) {
		if visited.Test(uint(e.ID)) {
			return
		}

		chain := []EdgeID{e.ID}
		visited.Set(uint(e.ID))
		circular := false
		for cur := e; ; {
			v := g.Vertex(cur.To)
			if !unbranching(v) {
				break
			}
			next := g.Edge(v.Out[0])
			if next.ID == chain[0] {
				circular = true
				break
			}
			if visited.Test(uint(next.ID)) {
				break
			}
			chain = append(chain, next.ID)
			visited.Set(uint(next.ID))
			cur = next
		}
		if !circular {
			for cur := e; ; {
				v := g.Vertex(cur.From)
				if !unbranching(v) {
					break
				}
				prev := g.Edge(v.In[0])
				if visited.Test(uint(prev.ID)) {
					break
				}
				chain = append([]EdgeID{prev.ID}, chain...)
				visited.Set(uint(prev.ID))
				cur = prev
			}
		}

		for _, id := range chain {
			visited.Set(uint(g.Edge(id).ComplID))
		}

		up := UnbranchingPath{
			ID:           chain[0],
			Path:         chain,
			Circular:     circular,
			Multiplicity: g.Edge(chain[0]).Multiplicity,
		}
		var weighted float64
		for _, id := range chain {
			member := g.Edge(id)
			up.Length += member.Length()
			weighted += member.MeanCoverage * float64(member.Length())
			if member.Repetitive {
				up.Repetitive = true
			}
		}
		if up.Length > 0 {
			up.MeanCoverage = weighted / float64(up.Length)
		}
		paths = append(paths, up)
	})
	return paths
}

// PathSeq concatenates the sequences of a path's edges.
func PathSeq(g *RepeatGraph, up *UnbranchingPath) []byte {
	var data []byte
	for _, id := range up.Path {
		data = append(data, g.EdgeSeq(g.Edge(id))...)
	}
	return data
}
