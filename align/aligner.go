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

// Package align maps raw reads onto the repeat graph. Each read gets
// a path: an ordered list of (edge, read range, edge range) records
// describing how its sequence crosses edges and vertices. Paths are
// the read evidence both multiplicity inference and repeat
// resolution are built on.
package align

import (
	"log"
	"sort"

	"github.com/exascience/pargo/parallel"

	"github.com/rgtools/repgraph/config"
	"github.com/rgtools/repgraph/graph"
	"github.com/rgtools/repgraph/overlap"
	"github.com/rgtools/repgraph/seq"
)

// An EdgeAlignment maps one read range onto one edge range.
type EdgeAlignment struct {
	EdgeID    graph.EdgeID
	ReadBegin int32
	ReadEnd   int32
	EdgeBegin int32
	EdgeEnd   int32
}

// A ReadAlignment is one read's path through the graph. Path entries
// are ordered by read coordinate; strand is carried by the read id,
// with the mirrored path stored under the complement read id.
type ReadAlignment struct {
	ReadID        seq.ID
	Path          []EdgeAlignment
	AlignedLength int32
}

// A ReadAligner aligns every read against the current graph. This is
// the runtime-dominant stage: reads are partitioned across workers
// with no shared mutable state, and per-worker results are merged
// under stable sort keys so the outcome does not depend on
// scheduling.
type ReadAligner struct {
	graph *graph.RepeatGraph
	reads *seq.Container
	cfg   config.Config

	alignments []*ReadAlignment
	edgeIndex  map[graph.EdgeID][]*ReadAlignment
	unaligned  int64
}

// NewReadAligner returns an aligner for the given graph and read
// set.
func NewReadAligner(g *graph.RepeatGraph, reads *seq.Container, cfg config.Config) *ReadAligner {
	return &ReadAligner{graph: g, reads: reads, cfg: cfg}
}

// edgeMinOverlap relaxes the overlap threshold for read-to-edge
// seeds: a read crossing several short edges only covers each of
// them briefly, while the full-path length is still checked against
// the configured minimum.
func (ra *ReadAligner) edgeMinOverlap() int {
	threshold := ra.cfg.MinOverlap
	if threshold > 1000 {
		threshold = 1000
	}
	if threshold < ra.cfg.KmerSize {
		threshold = ra.cfg.KmerSize
	}
	return threshold
}

// AlignReads aligns all reads against the current set of graph
// edges, replacing any previous alignment state. Reads shorter than
// the minimum overlap, or without chainable seeds, are counted as
// unaligned rather than treated as errors.
func (ra *ReadAligner) AlignReads() {
	edgeSeqs := seq.NewContainer()
	edgeOf := make(map[seq.ID]graph.EdgeID)
	ra.graph.Edges(func(e *graph.Edge) {
		if e.ComplID < e.ID {
			return // complement strand added together with the forward one
		}
		id := edgeSeqs.AddSequence(e.Name(), append([]byte(nil), ra.graph.EdgeSeq(e)...))
		edgeOf[id] = e.ID
		edgeOf[id.Complement()] = e.ComplID
	})
	if edgeSeqs.Count() == 0 {
		log.Println("Warning: aligning reads against an empty graph")
		ra.alignments = nil
		ra.edgeIndex = make(map[graph.EdgeID][]*ReadAlignment)
		return
	}

	index := seq.BuildVertexIndex(edgeSeqs, ra.cfg.KmerSize, ra.cfg.MaxIndexFrequency)
	detector := overlap.NewDetector(edgeSeqs, index, ra.edgeMinOverlap(), ra.cfg.MaxJump)

	readIDs := make([]seq.ID, 0, ra.reads.Count()/2)
	ra.reads.IterIDs(func(id seq.ID) {
		if id.IsForward() {
			readIDs = append(readIDs, id)
		}
	})

	type alignResult struct {
		alignments []*ReadAlignment
		unaligned  int64
	}

	result := parallel.RangeReduce(0, len(readIDs), 0, func(low, high int) interface{} {
		var local alignResult
		for _, readID := range readIDs[low:high] {
			aln := ra.alignRead(readID, detector, edgeOf)
			if aln == nil {
				local.unaligned++
				continue
			}
			local.alignments = append(local.alignments, aln, ra.complementAlignment(aln))
		}
		return local
	}, func(x, y interface{}) interface{} {
		r1 := x.(alignResult)
		r2 := y.(alignResult)
		r1.alignments = append(r1.alignments, r2.alignments...)
		r1.unaligned += r2.unaligned
		return r1
	}).(alignResult)

	sort.Slice(result.alignments, func(i, j int) bool {
		return result.alignments[i].ReadID < result.alignments[j].ReadID
	})
	ra.alignments = result.alignments
	ra.unaligned = result.unaligned
	ra.RebuildEdgeIndex()

	log.Printf("Aligned %v reads to the graph, %v reads unaligned",
		len(ra.alignments)/2, ra.unaligned)
}

// alignRead finds the best-scoring path of one read through the
// graph: per-edge overlaps chained across vertex boundaries, score =
// aligned length minus gap penalties, ties broken by fewer edges.
// Jumps between unconnected edges are allowed at a higher penalty;
// they show up as non-adjacent path entries and feed scaffolding.
func (ra *ReadAligner) alignRead(readID seq.ID, detector *overlap.Detector, edgeOf map[seq.ID]graph.EdgeID) *ReadAlignment {
	readSeq := ra.reads.Seq(readID)
	if len(readSeq) < ra.cfg.MinOverlap {
		return nil
	}

	ovlps := detector.Overlaps(readSeq, seq.NoID)
	if len(ovlps) == 0 {
		return nil
	}
	sort.Slice(ovlps, func(i, j int) bool {
		if ovlps[i].CurBegin != ovlps[j].CurBegin {
			return ovlps[i].CurBegin < ovlps[j].CurBegin
		}
		return ovlps[i].ExtID < ovlps[j].ExtID
	})

	maxSep := int32(ra.cfg.MaxSeparation)
	maxJump := int32(ra.cfg.MaxJump)
	maxScaffoldGap := 4 * maxJump

	type chainState struct {
		score     int32
		edgeCount int32
		parent    int32
	}
	states := make([]chainState, len(ovlps))
	best := -1
	for i := range ovlps {
		oi := &ovlps[i]
		states[i] = chainState{score: oi.CurSpan(), edgeCount: 1, parent: -1}
		edgeI := ra.graph.Edge(edgeOf[oi.ExtID])
		for j := i - 1; j >= 0; j-- {
			oj := &ovlps[j]
			readGap := oi.CurBegin - oj.CurEnd
			edgeJ := ra.graph.Edge(edgeOf[oj.ExtID])
			if edgeJ.To == edgeI.From {
				if readGap > maxJump || readGap < -maxSep {
					continue
				}
			} else {
				// A read can jump between unconnected edges across a
				// sequencing gap; such jumps become scaffold evidence.
				if readGap < 0 || readGap > maxScaffoldGap {
					continue
				}
			}
			// The previous overlap must reach the end of its edge and
			// the next one must start at the beginning of its edge,
			// within the junction tolerance.
			if int32(len(ra.graph.EdgeSeq(edgeJ)))-oj.ExtEnd > maxSep || oi.ExtBegin > maxSep {
				continue
			}
			gapPenalty := readGap
			if gapPenalty < 0 {
				gapPenalty = -gapPenalty
			}
			if edgeJ.To != edgeI.From {
				gapPenalty *= 2
			}
			s := states[j].score + oi.CurSpan() - gapPenalty/4
			if s > states[i].score ||
				(s == states[i].score && states[j].edgeCount+1 < states[i].edgeCount) {
				states[i].score = s
				states[i].edgeCount = states[j].edgeCount + 1
				states[i].parent = int32(j)
			}
		}
		if best < 0 || states[i].score > states[best].score ||
			(states[i].score == states[best].score && states[i].edgeCount < states[best].edgeCount) {
			best = i
		}
	}

	var path []EdgeAlignment
	var aligned int32
	for i := int32(best); i >= 0; i = states[i].parent {
		o := &ovlps[i]
		path = append([]EdgeAlignment{{
			EdgeID:    edgeOf[o.ExtID],
			ReadBegin: o.CurBegin,
			ReadEnd:   o.CurEnd,
			EdgeBegin: o.ExtBegin,
			EdgeEnd:   o.ExtEnd,
		}}, path...)
		aligned += o.CurSpan()
	}
	if aligned < int32(ra.cfg.MinOverlap) {
		return nil
	}
	return &ReadAlignment{ReadID: readID, Path: path, AlignedLength: aligned}
}

// complementAlignment mirrors a read path onto the opposite strand.
func (ra *ReadAligner) complementAlignment(aln *ReadAlignment) *ReadAlignment {
	readLen := int32(ra.reads.Len(aln.ReadID))
	mirrored := &ReadAlignment{
		ReadID:        aln.ReadID.Complement(),
		Path:          make([]EdgeAlignment, len(aln.Path)),
		AlignedLength: aln.AlignedLength,
	}
	for i, ea := range aln.Path {
		e := ra.graph.Edge(ea.EdgeID)
		edgeLen := int32(len(ra.graph.EdgeSeq(e)))
		mirrored.Path[len(aln.Path)-1-i] = EdgeAlignment{
			EdgeID:    e.ComplID,
			ReadBegin: readLen - ea.ReadEnd,
			ReadEnd:   readLen - ea.ReadBegin,
			EdgeBegin: edgeLen - ea.EdgeEnd,
			EdgeEnd:   edgeLen - ea.EdgeBegin,
		}
	}
	return mirrored
}

// Alignments returns all read alignments, sorted by read id. Both
// strands of every aligned read are present.
func (ra *ReadAligner) Alignments() []*ReadAlignment {
	return ra.alignments
}

// EdgeAlignments returns the read alignments whose path traverses
// the given edge.
func (ra *ReadAligner) EdgeAlignments(id graph.EdgeID) []*ReadAlignment {
	return ra.edgeIndex[id]
}

// UnalignedReads returns the number of reads that produced no valid
// path.
func (ra *ReadAligner) UnalignedReads() int64 {
	return ra.unaligned
}

// RebuildEdgeIndex recomputes the per-edge alignment lookup after
// alignment paths have been remapped by repeat resolution.
func (ra *ReadAligner) RebuildEdgeIndex() {
	ra.edgeIndex = make(map[graph.EdgeID][]*ReadAlignment)
	for _, aln := range ra.alignments {
		seen := make(map[graph.EdgeID]bool, len(aln.Path))
		for _, ea := range aln.Path {
			if !seen[ea.EdgeID] {
				ra.edgeIndex[ea.EdgeID] = append(ra.edgeIndex[ea.EdgeID], aln)
				seen[ea.EdgeID] = true
			}
		}
	}
}
