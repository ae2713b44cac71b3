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

// Package graph implements the repeat graph: a mutable multigraph
// whose edges are genomic sequence segments and whose vertices are
// junction points where repeat copies join unique flanks.
//
// Vertices and edges live in arenas addressed by stable integer ids,
// with adjacency stored as id lists. The graph is double-stranded:
// every edge and vertex has a complement, and all mutations keep the
// two strands symmetric.
package graph

import (
	"fmt"
	"log"

	"github.com/rgtools/repgraph/config"
	"github.com/rgtools/repgraph/seq"
)

// A ConfigurationError reports parameters that are invalid for the
// input data, such as a k-mer size exceeding every input sequence.
// It aborts the pipeline before graph construction.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

// VertexID identifies a vertex in the graph arena.
type VertexID int32

// EdgeID identifies an edge in the graph arena.
type EdgeID int32

// NoVertex and NoEdge mark absent ids.
const (
	NoVertex VertexID = -1
	NoEdge   EdgeID   = -1
)

// An EdgeSegment is a half-open range into one strand of the draft
// assembly. An edge carries one segment per genomic occurrence that
// was glued onto it.
type EdgeSegment struct {
	SeqID seq.ID
	Start int32
	End   int32
}

// Length returns the segment length in bases.
func (s EdgeSegment) Length() int32 {
	return s.End - s.Start
}

// An Edge is a directed sequence segment between two vertices, the
// unit of multiplicity inference and repeat resolution.
type Edge struct {
	ID      EdgeID
	ComplID EdgeID
	From    VertexID
	To      VertexID

	// Segments are the assembly occurrences glued onto this edge.
	// The first segment is the representative used for sequence
	// extraction.
	Segments []EdgeSegment

	Multiplicity   int
	MeanCoverage   float64
	Repetitive     bool
	Resolved       bool
	SelfComplement bool

	// AltGroup tags haplotype pairs; -1 means none.
	AltGroup int

	// seqCache holds the materialized sequence of compound edges
	// created by simplification.
	seqCache []byte
}

// Name returns the stable name of the edge used in output files.
func (e *Edge) Name() string {
	return fmt.Sprintf("edge_%v", e.ID)
}

// Length returns the edge length in bases.
func (e *Edge) Length() int32 {
	if e.seqCache != nil {
		return int32(len(e.seqCache))
	}
	if len(e.Segments) == 0 {
		return 0
	}
	return e.Segments[0].Length()
}

// A Vertex is a junction point with ordered incident edge ends.
type Vertex struct {
	ID      VertexID
	ComplID VertexID
	In      []EdgeID
	Out     []EdgeID
}

// A RemovedEdge records an edge deleted during simplification or
// pruning; removals are never silent.
type RemovedEdge struct {
	ID       EdgeID
	Length   int32
	Coverage float64
	Reason   string
}

// RepeatGraph is the arena of vertices and edges, built once from
// the draft assembly and then mutated in place by the pipeline
// stages. Structural mutation is single-writer per stage; read-only
// traversal may proceed fully in parallel.
type RepeatGraph struct {
	cfg      config.Config
	asm      *seq.Container
	vertices []*Vertex
	edges    []*Edge

	nextAltGroup int
	removed      []RemovedEdge
}

// NewRepeatGraph returns an empty graph over the given draft
// assembly.
func NewRepeatGraph(asm *seq.Container, cfg config.Config) *RepeatGraph {
	return &RepeatGraph{cfg: cfg, asm: asm, nextAltGroup: 0}
}

// Assembly returns the underlying draft assembly container.
func (g *RepeatGraph) Assembly() *seq.Container {
	return g.asm
}

// Config returns the run parameters.
func (g *RepeatGraph) Config() config.Config {
	return g.cfg
}

// Vertex returns the vertex with the given id, or nil if deleted.
func (g *RepeatGraph) Vertex(id VertexID) *Vertex {
	if id < 0 || int(id) >= len(g.vertices) {
		return nil
	}
	return g.vertices[id]
}

// Edge returns the edge with the given id, or nil if deleted.
func (g *RepeatGraph) Edge(id EdgeID) *Edge {
	if id < 0 || int(id) >= len(g.edges) {
		return nil
	}
	return g.edges[id]
}

// Complement returns the complement strand of an edge.
func (g *RepeatGraph) Complement(e *Edge) *Edge {
	return g.edges[e.ComplID]
}

// Edges calls fn for every live edge in id order.
func (g *RepeatGraph) Edges(fn func(e *Edge)) {
	for _, e := range g.edges {
		if e != nil {
			fn(e)
		}
	}
}

// Vertices calls fn for every live vertex in id order.
func (g *RepeatGraph) Vertices(fn func(v *Vertex)) {
	for _, v := range g.vertices {
		if v != nil {
			fn(v)
		}
	}
}

// EdgeCount returns the number of live edges.
func (g *RepeatGraph) EdgeCount() (n int) {
	g.Edges(func(*Edge) { n++ })
	return n
}

// VertexCount returns the number of live vertices.
func (g *RepeatGraph) VertexCount() (n int) {
	g.Vertices(func(*Vertex) { n++ })
	return n
}

// AddVertex allocates a new vertex without a complement binding.
// Callers must pair it with PairVertices before the graph is handed
// to the next stage.
func (g *RepeatGraph) AddVertex() *Vertex {
	v := &Vertex{ID: VertexID(len(g.vertices)), ComplID: NoVertex}
	g.vertices = append(g.vertices, v)
	return v
}

// PairVertices binds two vertices as strand complements. A vertex
// may be its own complement.
func (g *RepeatGraph) PairVertices(a, b *Vertex) {
	a.ComplID = b.ID
	b.ComplID = a.ID
}

// AddVertexPair allocates a fresh complementary vertex pair.
func (g *RepeatGraph) AddVertexPair() (*Vertex, *Vertex) {
	a := g.AddVertex()
	b := g.AddVertex()
	g.PairVertices(a, b)
	return a, b
}

// addEdgeRaw allocates an edge and attaches it to its endpoints.
func (g *RepeatGraph) addEdgeRaw(from, to VertexID, segments []EdgeSegment) *Edge {
	e := &Edge{
		ID:       EdgeID(len(g.edges)),
		ComplID:  NoEdge,
		From:     from,
		To:       to,
		Segments: segments,
		AltGroup: -1,
	}
	g.edges = append(g.edges, e)
	g.vertices[from].Out = append(g.vertices[from].Out, e.ID)
	g.vertices[to].In = append(g.vertices[to].In, e.ID)
	return e
}

// complementSegment maps a segment to the opposite strand.
func (g *RepeatGraph) complementSegment(s EdgeSegment) EdgeSegment {
	length := int32(g.asm.Len(s.SeqID))
	return EdgeSegment{
		SeqID: s.SeqID.Complement(),
		Start: length - s.End,
		End:   length - s.Start,
	}
}

// AddEdgePair creates an edge and its complement between the
// complement vertices, keeping the strands symmetric.
func (g *RepeatGraph) AddEdgePair(from, to *Vertex, segments []EdgeSegment) (*Edge, *Edge) {
	e := g.addEdgeRaw(from.ID, to.ID, segments)
	complSegments := make([]EdgeSegment, len(segments))
	for i, s := range segments {
		complSegments[i] = g.complementSegment(s)
	}
	ec := g.addEdgeRaw(g.vertices[to.ID].ComplID, g.vertices[from.ID].ComplID, complSegments)
	e.ComplID = ec.ID
	ec.ComplID = e.ID
	return e, ec
}

func removeID(ids []EdgeID, id EdgeID) []EdgeID {
	for i, x := range ids {
		if x == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// detachEdge removes the edge from its endpoint adjacency lists.
func (g *RepeatGraph) detachEdge(e *Edge) {
	if v := g.vertices[e.From]; v != nil {
		v.Out = removeID(v.Out, e.ID)
	}
	if v := g.vertices[e.To]; v != nil {
		v.In = removeID(v.In, e.ID)
	}
}

// removeEdgeOneStrand deletes a single edge, recording the removal.
func (g *RepeatGraph) removeEdgeOneStrand(e *Edge, reason string) {
	g.detachEdge(e)
	g.removed = append(g.removed, RemovedEdge{
		ID:       e.ID,
		Length:   e.Length(),
		Coverage: e.MeanCoverage,
		Reason:   reason,
	})
	g.edges[e.ID] = nil
}

// RemoveEdgePair deletes an edge and its complement, logging both
// removals for diagnostics.
func (g *RepeatGraph) RemoveEdgePair(e *Edge, reason string) {
	ec := g.Edge(e.ComplID)
	g.removeEdgeOneStrand(e, reason)
	if ec != nil && ec != e {
		g.removeEdgeOneStrand(ec, reason)
	}
}

// RemoveVertexIfIsolated drops a vertex with no incident edges.
func (g *RepeatGraph) RemoveVertexIfIsolated(id VertexID) {
	if v := g.Vertex(id); v != nil && len(v.In) == 0 && len(v.Out) == 0 {
		g.vertices[id] = nil
	}
}

// MoveEdgeFrom re-points the source endpoint of an edge.
func (g *RepeatGraph) MoveEdgeFrom(e *Edge, to *Vertex) {
	g.vertices[e.From].Out = removeID(g.vertices[e.From].Out, e.ID)
	e.From = to.ID
	to.Out = append(to.Out, e.ID)
}

// MoveEdgeTo re-points the sink endpoint of an edge.
func (g *RepeatGraph) MoveEdgeTo(e *Edge, to *Vertex) {
	g.vertices[e.To].In = removeID(g.vertices[e.To].In, e.ID)
	e.To = to.ID
	to.In = append(to.In, e.ID)
}

// EdgeSeq returns the nucleotide sequence of an edge: the
// materialized compound sequence if present, otherwise the
// representative assembly segment.
func (g *RepeatGraph) EdgeSeq(e *Edge) []byte {
	if e.seqCache != nil {
		return e.seqCache
	}
	if len(e.Segments) == 0 {
		return nil
	}
	s := e.Segments[0]
	return g.asm.Seq(s.SeqID)[s.Start:s.End]
}

// SetEdgeSeq materializes the sequence of a compound edge.
func (g *RepeatGraph) SetEdgeSeq(e *Edge, data []byte) {
	e.seqCache = data
}

// NewAltGroup allocates a fresh haplotype group id.
func (g *RepeatGraph) NewAltGroup() int {
	id := g.nextAltGroup
	g.nextAltGroup++
	return id
}

// RemovedEdges returns the diagnostics log of deleted edges.
func (g *RepeatGraph) RemovedEdges() []RemovedEdge {
	return g.removed
}

// CheckSymmetry panics if the two strands of the graph have come
// apart; this is an internal invariant of every mutation.
func (g *RepeatGraph) CheckSymmetry() {
	g.Edges(func(e *Edge) {
		ec := g.Edge(e.ComplID)
		if ec == nil {
			log.Panic(fmt.Errorf("edge %v has no complement", e.ID))
		}
		if ec.ComplID != e.ID {
			log.Panic(fmt.Errorf("edge %v complement mismatch", e.ID))
		}
		if g.vertices[e.From].ComplID != ec.To || g.vertices[e.To].ComplID != ec.From {
			log.Panic(fmt.Errorf("edge %v endpoint complement mismatch", e.ID))
		}
	})
}
