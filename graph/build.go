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
	"sort"

	"github.com/rgtools/repgraph/overlap"
	"github.com/rgtools/repgraph/seq"
)

// Build constructs the repeat graph from self-overlaps of the draft
// assembly. Overlap endpoints become junction candidates
// ("gluepoints"); positions that correspond under an overlap are
// clustered into shared vertices, and the sequence segments between
// them that overlap each other are glued into shared edges, so that
// a k-copy repeat collapses onto one edge carrying k segments.
//
// It panics with a ConfigurationError if the assembly is empty or
// too short for the configured k-mer size.
func (g *RepeatGraph) Build() {
	if g.asm.Count() == 0 {
		panic(&ConfigurationError{Msg: "draft assembly is empty"})
	}
	if g.cfg.KmerSize < 1 || g.cfg.KmerSize > 31 {
		panic(&ConfigurationError{Msg: fmt.Sprintf("k-mer size %v out of range", g.cfg.KmerSize)})
	}
	longest := 0
	g.asm.IterIDs(func(id seq.ID) {
		if n := g.asm.Len(id); n > longest {
			longest = n
		}
	})
	if longest <= g.cfg.KmerSize {
		panic(&ConfigurationError{
			Msg: fmt.Sprintf("every assembly sequence is shorter than k-mer size %v", g.cfg.KmerSize),
		})
	}

	index := seq.BuildVertexIndex(g.asm, g.cfg.KmerSize, g.cfg.MaxIndexFrequency)
	detector := overlap.NewDetector(g.asm, index, g.cfg.MinOverlap, g.cfg.MaxJump)
	overlaps := detector.SelfOverlaps()
	log.Printf("Found %v self-overlaps in the assembly", len(overlaps))

	g.buildFromOverlaps(overlaps)
}

// union-find over int32 indices

func findRepNode(grouping []int32, node int32) int32 {
	rep := node
	for rep != grouping[rep] {
		rep = grouping[rep]
	}
	for node != rep {
		next := grouping[node]
		grouping[node] = rep
		node = next
	}
	return rep
}

func joinNodes(grouping []int32, node1, node2 int32) {
	rep1 := findRepNode(grouping, node1)
	rep2 := findRepNode(grouping, node2)
	if rep1 == rep2 {
		return
	}
	if rep2 < rep1 {
		rep1, rep2 = rep2, rep1
	}
	// Smaller index wins, which keeps class representatives
	// independent of join order.
	grouping[rep2] = rep1
}

func newGrouping(size int) []int32 {
	grouping := make([]int32, size)
	for i := range grouping {
		grouping[i] = int32(i)
	}
	return grouping
}

// pointSet accumulates junction candidate positions per forward
// strand. Positions observed on a reverse strand are mirrored before
// insertion, so the two strands cannot drift apart.
type pointSet struct {
	asm    *seq.Container
	points map[seq.ID][]int32 // forward ids only, kept sorted
	minGap int32
}

func (ps *pointSet) add(id seq.ID, pos int32) {
	if !id.IsForward() {
		id = id.Complement()
		pos = int32(ps.asm.Len(id)) - pos
	}
	if pos < 0 {
		pos = 0
	}
	if n := int32(ps.asm.Len(id)); pos > n {
		pos = n
	}
	points := ps.points[id]
	i := sort.Search(len(points), func(i int) bool { return points[i] >= pos })
	if i < len(points) && points[i]-pos < ps.minGap {
		return
	}
	if i > 0 && pos-points[i-1] < ps.minGap {
		return
	}
	points = append(points, 0)
	copy(points[i+1:], points[i:])
	points[i] = pos
	ps.points[id] = points
}

// strandPoints returns the current points of a strand in that
// strand's own coordinates.
func (ps *pointSet) strandPoints(id seq.ID) []int32 {
	fwd := id
	if !fwd.IsForward() {
		fwd = fwd.Complement()
	}
	points := ps.points[fwd]
	if id.IsForward() {
		return points
	}
	n := int32(ps.asm.Len(id))
	mirrored := make([]int32, len(points))
	for i, p := range points {
		mirrored[len(points)-1-i] = n - p
	}
	return mirrored
}

// projectionRounds propagates junction candidates through overlaps,
// so that a junction discovered on one repeat copy appears on all
// other copies as well.
const projectionRounds = 2

func (g *RepeatGraph) buildFromOverlaps(overlaps []overlap.Range) {
	maxSeparation := int32(g.cfg.MaxSeparation)

	// Overlap detection is not guaranteed to find the mirror image of
	// every overlap on the reverse strands, but gluing must be strand
	// symmetric. Expanding the list with every overlap's complement
	// makes the projection and union passes see both strands of each
	// correspondence.
	expanded := make([]overlap.Range, 0, 2*len(overlaps))
	for _, ovl := range overlaps {
		curLen := int32(g.asm.Len(ovl.CurID))
		extLen := int32(g.asm.Len(ovl.ExtID))
		expanded = append(expanded, ovl, ovl.Complement(curLen, extLen))
	}
	overlaps = expanded

	ps := &pointSet{
		asm:    g.asm,
		points: make(map[seq.ID][]int32),
		minGap: maxSeparation/2 + 1,
	}
	g.asm.IterIDs(func(id seq.ID) {
		if id.IsForward() {
			ps.points[id] = []int32{}
		}
	})
	g.asm.IterIDs(func(id seq.ID) {
		if id.IsForward() {
			ps.add(id, 0)
			ps.add(id, int32(g.asm.Len(id)))
		}
	})
	for i := range overlaps {
		ovl := &overlaps[i]
		ps.add(ovl.CurID, ovl.CurBegin)
		ps.add(ovl.CurID, ovl.CurEnd)
		ps.add(ovl.ExtID, ovl.ExtBegin)
		ps.add(ovl.ExtID, ovl.ExtEnd)
	}

	for round := 0; round < projectionRounds; round++ {
		for i := range overlaps {
			ovl := &overlaps[i]
			if ovl.CurSpan() <= 0 {
				continue
			}
			for _, p := range ps.strandPoints(ovl.CurID) {
				if p < ovl.CurBegin || p > ovl.CurEnd {
					continue
				}
				q := ovl.ExtBegin + int32(int64(p-ovl.CurBegin)*int64(ovl.ExtSpan())/int64(ovl.CurSpan()))
				ps.add(ovl.ExtID, q)
			}
		}
	}

	// Cluster candidates into gluepoints, per forward strand, then
	// mirror onto the reverse strands.
	gluepoints := make(map[seq.ID][]int32)
	g.asm.IterIDs(func(id seq.ID) {
		if !id.IsForward() {
			return
		}
		n := int32(g.asm.Len(id))
		clustered := clusterPositions(ps.points[id], maxSeparation, n)
		gluepoints[id] = clustered
		mirrored := make([]int32, len(clustered))
		for i, p := range clustered {
			mirrored[len(clustered)-1-i] = n - p
		}
		gluepoints[id.Complement()] = mirrored
	})

	g.glueSegments(overlaps, gluepoints, maxSeparation)
}

// clusterPositions merges sorted candidate positions lying within
// the separation radius, clamping the boundary clusters to the exact
// sequence ends.
func clusterPositions(points []int32, radius, seqLen int32) []int32 {
	var clustered []int32
	for i := 0; i < len(points); {
		j := i
		var sum int64
		for j < len(points) && points[j]-points[i] <= radius {
			sum += int64(points[j])
			j++
		}
		clustered = append(clustered, int32(sum/int64(j-i)))
		i = j
	}
	if len(clustered) == 0 {
		clustered = []int32{0, seqLen}
	}
	clustered[0] = 0
	if last := len(clustered) - 1; clustered[last] < seqLen {
		if seqLen-clustered[last] <= radius || last == 0 {
			if last == 0 {
				clustered = append(clustered, seqLen)
			} else {
				clustered[last] = seqLen
			}
		} else {
			clustered = append(clustered, seqLen)
		}
	} else {
		clustered[len(clustered)-1] = seqLen
	}
	return clustered
}

// glueSegments unites corresponding gluepoints and segments across
// overlaps and materializes the resulting vertices and edges.
func (g *RepeatGraph) glueSegments(overlaps []overlap.Range, gluepoints map[seq.ID][]int32, maxSeparation int32) {
	// Global indexing of gluepoints and segments, strands in id
	// order.
	ids := make([]seq.ID, 0, g.asm.Count())
	g.asm.IterIDs(func(id seq.ID) { ids = append(ids, id) })

	gpOffset := make(map[seq.ID]int32)
	segOffset := make(map[seq.ID]int32)
	var gpTotal, segTotal int32
	for _, id := range ids {
		gpOffset[id] = gpTotal
		segOffset[id] = segTotal
		gpTotal += int32(len(gluepoints[id]))
		segTotal += int32(len(gluepoints[id]) - 1)
	}

	gpIndex := func(id seq.ID, i int) int32 { return gpOffset[id] + int32(i) }
	segIndex := func(id seq.ID, i int) int32 { return segOffset[id] + int32(i) }

	gpGroups := newGrouping(int(gpTotal))
	segGroups := newGrouping(int(segTotal))

	locate := func(id seq.ID, pos int32) (int, bool) {
		points := gluepoints[id]
		i := sort.Search(len(points), func(i int) bool { return points[i] >= pos })
		if i < len(points) && points[i]-pos <= maxSeparation {
			return i, true
		}
		if i > 0 && pos-points[i-1] <= maxSeparation {
			return i - 1, true
		}
		return 0, false
	}

	for oi := range overlaps {
		ovl := &overlaps[oi]
		if ovl.CurSpan() <= 0 {
			continue
		}
		curPoints := gluepoints[ovl.CurID]
		for k := 0; k+1 < len(curPoints); k++ {
			a, b := curPoints[k], curPoints[k+1]
			if a < ovl.CurBegin-maxSeparation || b > ovl.CurEnd+maxSeparation {
				continue
			}
			project := func(p int32) int32 {
				return ovl.ExtBegin + int32(int64(p-ovl.CurBegin)*int64(ovl.ExtSpan())/int64(ovl.CurSpan()))
			}
			ia, okA := locate(ovl.ExtID, project(a))
			ib, okB := locate(ovl.ExtID, project(b))
			if !okA || !okB {
				continue
			}
			joinNodes(gpGroups, gpIndex(ovl.CurID, k), gpIndex(ovl.ExtID, ia))
			joinNodes(gpGroups, gpIndex(ovl.CurID, k+1), gpIndex(ovl.ExtID, ib))
			if ib == ia+1 {
				joinNodes(segGroups, segIndex(ovl.CurID, k), segIndex(ovl.ExtID, ia))
			}
		}
	}

	// Vertices: one per gluepoint class that is actually used.
	vertexOf := make(map[int32]*Vertex)
	vertexFor := func(gp int32) *Vertex {
		rep := findRepNode(gpGroups, gp)
		if v, ok := vertexOf[rep]; ok {
			return v
		}
		v := g.AddVertex()
		vertexOf[rep] = v
		return v
	}

	// Edges: one per segment class; complements are derived from the
	// mirrored segment, visiting each class pair once.
	type segRef struct {
		id seq.ID
		k  int
	}
	members := make(map[int32][]segRef)
	for _, id := range ids {
		for k := 0; k+1 < len(gluepoints[id]); k++ {
			rep := findRepNode(segGroups, segIndex(id, k))
			members[rep] = append(members[rep], segRef{id: id, k: k})
		}
	}
	complRep := func(rep int32) int32 {
		first := members[rep][0]
		m := len(gluepoints[first.id]) - 1 // segment count on that strand
		return findRepNode(segGroups, segIndex(first.id.Complement(), m-1-first.k))
	}

	segmentsOf := func(rep int32) []EdgeSegment {
		refs := members[rep]
		segments := make([]EdgeSegment, len(refs))
		for i, ref := range refs {
			points := gluepoints[ref.id]
			segments[i] = EdgeSegment{SeqID: ref.id, Start: points[ref.k], End: points[ref.k+1]}
		}
		return segments
	}

	created := make(map[int32]*Edge)
	for _, id := range ids {
		points := gluepoints[id]
		for k := 0; k+1 < len(points); k++ {
			rep := findRepNode(segGroups, segIndex(id, k))
			if _, ok := created[rep]; ok {
				continue
			}
			crep := complRep(rep)
			first := members[rep][0]
			from := vertexFor(gpIndex(first.id, first.k))
			to := vertexFor(gpIndex(first.id, first.k+1))
			e := g.addEdgeRaw(from.ID, to.ID, segmentsOf(rep))
			created[rep] = e
			if crep == rep {
				e.ComplID = e.ID
				e.SelfComplement = true
			} else if ec, ok := created[crep]; ok {
				e.ComplID = ec.ID
				ec.ComplID = e.ID
			}
			e.Multiplicity = len(members[rep])
			e.Repetitive = e.Multiplicity > 1
		}
	}

	// Bind vertex complements now that every gluepoint class has its
	// vertex.
	for _, id := range ids {
		points := gluepoints[id]
		for k := range points {
			rep := findRepNode(gpGroups, gpIndex(id, k))
			v, ok := vertexOf[rep]
			if !ok || v.ComplID != NoVertex {
				continue
			}
			mirror := findRepNode(gpGroups, gpIndex(id.Complement(), len(points)-1-k))
			vc := vertexOf[mirror]
			if vc == nil {
				vc = vertexFor(gpIndex(id.Complement(), len(points)-1-k))
			}
			g.PairVertices(v, vc)
		}
	}

	log.Printf("Built repeat graph with %v vertices and %v edges", g.VertexCount(), g.EdgeCount())
}
