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

package seq

import (
	"log"
	"sort"

	"github.com/exascience/pargo/parallel"
)

// An IndexPosition is one occurrence of a k-mer in the container.
type IndexPosition struct {
	SeqID ID
	Pos   int32
}

// A VertexIndex maps k-mer codes to their occurrences across all
// strands of a container. K-mers above a frequency cap are banned
// from the index so that seed lookups stay near constant time on
// repetitive genomes.
type VertexIndex struct {
	kmerSize    int
	index       map[uint64][]IndexPosition
	bannedCount int
}

var kmerCodes = func() (codes [256]int8) {
	for i := range codes {
		codes[i] = -1
	}
	codes['A'] = 0
	codes['C'] = 1
	codes['G'] = 2
	codes['T'] = 3
	return codes
}()

// IterKmers calls fn with the position and 2-bit code of every solid
// k-mer in s. K-mers containing non-ACGT bases are skipped; the
// rolling code restarts after each such base.
func IterKmers(s []byte, kmerSize int, fn func(pos int32, code uint64)) {
	if kmerSize > 31 {
		log.Panicf("k-mer size %v out of range", kmerSize)
	}
	mask := uint64(1)<<(2*kmerSize) - 1
	var code uint64
	run := 0
	for i, b := range s {
		c := kmerCodes[b]
		if c < 0 {
			run = 0
			code = 0
			continue
		}
		code = (code<<2 | uint64(c)) & mask
		run++
		if run >= kmerSize {
			fn(int32(i-kmerSize+1), code)
		}
	}
}

// KmerCode returns the 2-bit code of a solid k-mer, or false if it
// contains a non-ACGT base.
func KmerCode(s []byte) (uint64, bool) {
	var code uint64
	for _, b := range s {
		c := kmerCodes[b]
		if c < 0 {
			return 0, false
		}
		code = code<<2 | uint64(c)
	}
	return code, true
}

// BuildVertexIndex indexes all strands of the container. The scan is
// data-parallel over sequences with per-goroutine maps, merged and
// position-sorted afterwards so the index contents do not depend on
// scheduling order.
func BuildVertexIndex(c *Container, kmerSize, maxFrequency int) *VertexIndex {
	ids := make([]ID, 0, c.Count())
	c.IterIDs(func(id ID) {
		ids = append(ids, id)
	})

	result := parallel.RangeReduce(0, len(ids), 0, func(low, high int) interface{} {
		local := make(map[uint64][]IndexPosition)
		for _, id := range ids[low:high] {
			seqID := id
			IterKmers(c.Seq(id), kmerSize, func(pos int32, code uint64) {
				local[code] = append(local[code], IndexPosition{SeqID: seqID, Pos: pos})
			})
		}
		return local
	}, func(x, y interface{}) interface{} {
		m1 := x.(map[uint64][]IndexPosition)
		m2 := y.(map[uint64][]IndexPosition)
		if len(m2) > len(m1) {
			m1, m2 = m2, m1
		}
		for code, positions := range m2 {
			m1[code] = append(m1[code], positions...)
		}
		return m1
	})

	index := result.(map[uint64][]IndexPosition)
	banned := 0
	for code, positions := range index {
		if maxFrequency > 0 && len(positions) > maxFrequency {
			delete(index, code)
			banned++
			continue
		}
		sort.Slice(positions, func(i, j int) bool {
			p, q := positions[i], positions[j]
			if p.SeqID != q.SeqID {
				return p.SeqID < q.SeqID
			}
			return p.Pos < q.Pos
		})
	}

	return &VertexIndex{kmerSize: kmerSize, index: index, bannedCount: banned}
}

// KmerSize returns the k-mer length of the index.
func (vi *VertexIndex) KmerSize() int {
	return vi.kmerSize
}

// Lookup returns all occurrences of a k-mer code, sorted by sequence
// id and position. Banned k-mers return nil.
func (vi *VertexIndex) Lookup(code uint64) []IndexPosition {
	return vi.index[code]
}

// BannedCount returns the number of k-mers removed by the frequency
// cap.
func (vi *VertexIndex) BannedCount() int {
	return vi.bannedCount
}

// DistinctKmers returns the number of distinct indexed k-mers.
func (vi *VertexIndex) DistinctKmers() int {
	return len(vi.index)
}
