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

// Package overlap finds approximate overlaps between sequences by
// chaining shared k-mer seeds into colinear runs with bounded gaps,
// tolerating the indel noise of long-read data. It serves both the
// self-overlap phase of graph construction and read-to-graph
// alignment.
package overlap

import (
	"sort"

	"github.com/exascience/pargo/parallel"

	"github.com/rgtools/repgraph/seq"
)

// A Range is one overlap between a query ("cur") and a target
// ("ext") sequence. Coordinates are half-open on the respective
// strand. Score is the chained seed length minus gap penalties.
type Range struct {
	CurID    seq.ID
	ExtID    seq.ID
	CurBegin int32
	CurEnd   int32
	ExtBegin int32
	ExtEnd   int32
	Score    int32
}

// CurSpan returns the overlap length on the query.
func (r *Range) CurSpan() int32 {
	return r.CurEnd - r.CurBegin
}

// ExtSpan returns the overlap length on the target.
func (r *Range) ExtSpan() int32 {
	return r.ExtEnd - r.ExtBegin
}

// Complement maps the overlap onto the opposite strands of both
// sequences.
func (r *Range) Complement(curLen, extLen int32) Range {
	return Range{
		CurID:    r.CurID.Complement(),
		ExtID:    r.ExtID.Complement(),
		CurBegin: curLen - r.CurEnd,
		CurEnd:   curLen - r.CurBegin,
		ExtBegin: extLen - r.ExtEnd,
		ExtEnd:   extLen - r.ExtBegin,
		Score:    r.Score,
	}
}

// A Detector finds overlaps of query sequences against an indexed
// container. It is safe for concurrent use: lookups are read-only.
type Detector struct {
	cont       *seq.Container
	index      *seq.VertexIndex
	minOverlap int32
	maxJump    int32
}

// NewDetector returns a detector over the given container and its
// k-mer index.
func NewDetector(cont *seq.Container, index *seq.VertexIndex, minOverlap, maxJump int) *Detector {
	return &Detector{
		cont:       cont,
		index:      index,
		minOverlap: int32(minOverlap),
		maxJump:    int32(maxJump),
	}
}

type seedHit struct {
	curPos int32
	extPos int32
}

// lookback bounds the chaining DP: each seed only considers this
// many predecessors. Seeds are sorted, so distant predecessors are
// almost never the better link.
const lookback = 64

// maxChainsPerTarget caps the number of distinct overlap chains
// reported between one query/target pair. Genuine repeats need more
// than one; unbounded chains would let a low-complexity pair explode.
const maxChainsPerTarget = 50

// Overlaps finds all overlaps of query against the indexed
// container. queryID is used to suppress the trivial identity
// overlap during self-overlap detection; pass seq.NoID when the
// query is not part of the container.
func (d *Detector) Overlaps(query []byte, queryID seq.ID) []Range {
	hits := make(map[seq.ID][]seedHit)
	seq.IterKmers(query, d.index.KmerSize(), func(pos int32, code uint64) {
		for _, ip := range d.index.Lookup(code) {
			hits[ip.SeqID] = append(hits[ip.SeqID], seedHit{curPos: pos, extPos: ip.Pos})
		}
	})

	extIDs := make([]seq.ID, 0, len(hits))
	for extID := range hits {
		extIDs = append(extIDs, extID)
	}
	sort.Slice(extIDs, func(i, j int) bool { return extIDs[i] < extIDs[j] })

	var result []Range
	for _, extID := range extIDs {
		for _, r := range d.chainHits(hits[extID], queryID, extID) {
			result = append(result, r)
		}
	}
	return result
}

// chainHits extracts colinear seed chains between one query/target
// pair, best chain first, removing used seeds between rounds so that
// multiple copies of a repeat each yield their own overlap.
func (d *Detector) chainHits(hits []seedHit, queryID, extID seq.ID) []Range {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].curPos != hits[j].curPos {
			return hits[i].curPos < hits[j].curPos
		}
		return hits[i].extPos < hits[j].extPos
	})

	kmerSize := int32(d.index.KmerSize())
	used := make([]bool, len(hits))
	var chains []Range

	for round := 0; round < maxChainsPerTarget; round++ {
		score := make([]int32, len(hits))
		parent := make([]int32, len(hits))
		best := int32(-1)
		var bestScore int32

		for i := range hits {
			if used[i] {
				continue
			}
			score[i] = kmerSize
			parent[i] = -1
			lo := i - lookback
			if lo < 0 {
				lo = 0
			}
			for j := i - 1; j >= lo; j-- {
				if used[j] {
					continue
				}
				dCur := hits[i].curPos - hits[j].curPos
				dExt := hits[i].extPos - hits[j].extPos
				if dCur <= 0 || dExt <= 0 || dCur > d.maxJump || dExt > d.maxJump {
					continue
				}
				gap := dCur - dExt
				if gap < 0 {
					gap = -gap
				}
				if gap > d.maxJump/2 {
					continue
				}
				matched := dCur
				if matched > kmerSize {
					matched = kmerSize
				}
				s := score[j] + matched - gap/4
				if s > score[i] {
					score[i] = s
					parent[i] = int32(j)
				}
			}
			if score[i] > bestScore {
				bestScore = score[i]
				best = int32(i)
			}
		}

		if best < 0 {
			break
		}

		first := best
		for i := best; i >= 0; i = parent[i] {
			used[i] = true
			first = i
		}
		r := Range{
			CurID:    queryID,
			ExtID:    extID,
			CurBegin: hits[first].curPos,
			CurEnd:   hits[best].curPos + kmerSize,
			ExtBegin: hits[first].extPos,
			ExtEnd:   hits[best].extPos + kmerSize,
			Score:    bestScore,
		}
		if r.CurSpan() < d.minOverlap || r.ExtSpan() < d.minOverlap {
			// Chains come out best first, but a short chain may
			// still shadow seeds of a longer one; keep peeling.
			continue
		}
		if queryID != seq.NoID && extID == queryID && sameDiagonal(&r, d.maxJump) {
			continue
		}
		chains = append(chains, r)
	}
	return chains
}

func sameDiagonal(r *Range, tolerance int32) bool {
	shift := r.CurBegin - r.ExtBegin
	if shift < 0 {
		shift = -shift
	}
	return shift < tolerance
}

// SelfOverlaps finds all overlaps among the container's own
// sequences, data-parallel over strands. The result is sorted by
// (CurID, CurBegin, ExtID, ExtBegin) so downstream graph
// construction is deterministic.
func (d *Detector) SelfOverlaps() []Range {
	ids := make([]seq.ID, 0, d.cont.Count())
	d.cont.IterIDs(func(id seq.ID) {
		ids = append(ids, id)
	})

	result := parallel.RangeReduce(0, len(ids), 0, func(low, high int) interface{} {
		var local []Range
		for _, id := range ids[low:high] {
			local = append(local, d.Overlaps(d.cont.Seq(id), id)...)
		}
		return local
	}, func(x, y interface{}) interface{} {
		return append(x.([]Range), y.([]Range)...)
	})

	overlaps := result.([]Range)
	sort.Slice(overlaps, func(i, j int) bool {
		a, b := &overlaps[i], &overlaps[j]
		if a.CurID != b.CurID {
			return a.CurID < b.CurID
		}
		if a.CurBegin != b.CurBegin {
			return a.CurBegin < b.CurBegin
		}
		if a.ExtID != b.ExtID {
			return a.ExtID < b.ExtID
		}
		return a.ExtBegin < b.ExtBegin
	})
	return overlaps
}
