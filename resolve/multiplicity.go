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

// Package resolve turns the aligned repeat graph into an assembly:
// it infers per-edge multiplicity from read coverage, resolves
// repeat edges into distinct copies using read-path evidence, and
// extends the resolved graph into contigs.
package resolve

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/stat"

	"github.com/rgtools/repgraph/align"
	"github.com/rgtools/repgraph/config"
	"github.com/rgtools/repgraph/graph"
)

// An InsufficientCoverageError reports that too few reads aligned to
// infer multiplicity reliably; the assembly cannot proceed.
type InsufficientCoverageError struct {
	AlignedReads int
	Required     int
}

func (e *InsufficientCoverageError) Error() string {
	return fmt.Sprintf("insufficient coverage: %v aligned reads, need at least %v",
		e.AlignedReads, e.Required)
}

// A MultiplicityInferer estimates per-edge copy counts from read
// depth and prunes graph structure that the reads do not support.
// All of its thresholds are relative to the estimated mean coverage,
// so behavior adapts to sequencing depth.
type MultiplicityInferer struct {
	graph   *graph.RepeatGraph
	aligner *align.ReadAligner
	cfg     config.Config

	meanCoverage       float64
	removedEdges       int
	removedConnections int
	haplotypeGroups    int
}

// NewMultiplicityInferer returns an inferer over the aligned graph.
func NewMultiplicityInferer(g *graph.RepeatGraph, aligner *align.ReadAligner, cfg config.Config) *MultiplicityInferer {
	return &MultiplicityInferer{graph: g, aligner: aligner, cfg: cfg}
}

// MeanCoverage returns the genome-wide mean coverage estimate: the
// mode of the per-edge depth distribution, where unique edges
// dominate.
func (mi *MultiplicityInferer) MeanCoverage() float64 {
	return mi.meanCoverage
}

// EstimateCoverage computes per-edge mean read depth and the
// genome-wide coverage mode, then assigns each supported edge
// multiplicity round(coverage/mean), floored at 1. It panics with an
// InsufficientCoverageError when too few reads aligned.
func (mi *MultiplicityInferer) EstimateCoverage() {
	alignedReads := len(mi.aligner.Alignments()) / 2
	if alignedReads < mi.cfg.MinReadsForCoverage {
		panic(&InsufficientCoverageError{
			AlignedReads: alignedReads,
			Required:     mi.cfg.MinReadsForCoverage,
		})
	}

	var edges []*graph.Edge
	mi.graph.Edges(func(e *graph.Edge) {
		edges = append(edges, e)
	})

	// Per-edge depth is independent work; results land in the edges
	// themselves only after the parallel phase.
	coverage := parallel.RangeReduce(0, len(edges), 0, func(low, high int) interface{} {
		local := make(map[graph.EdgeID]float64)
		for _, e := range edges[low:high] {
			length := e.Length()
			if length == 0 {
				continue
			}
			var bases int64
			for _, aln := range mi.aligner.EdgeAlignments(e.ID) {
				for _, ea := range aln.Path {
					if ea.EdgeID == e.ID {
						bases += int64(ea.EdgeEnd - ea.EdgeBegin)
					}
				}
			}
			local[e.ID] = float64(bases) / float64(length)
		}
		return local
	}, func(x, y interface{}) interface{} {
		m1 := x.(map[graph.EdgeID]float64)
		m2 := y.(map[graph.EdgeID]float64)
		for id, cov := range m2 {
			m1[id] = cov
		}
		return m1
	}).(map[graph.EdgeID]float64)

	for _, e := range edges {
		e.MeanCoverage = coverage[e.ID]
	}

	mi.meanCoverage = coverageMode(edges)
	if mi.meanCoverage <= 0 {
		panic(&InsufficientCoverageError{AlignedReads: alignedReads, Required: mi.cfg.MinReadsForCoverage})
	}

	for _, e := range edges {
		if e.MeanCoverage <= 0 {
			e.Multiplicity = 0
			continue
		}
		mult := int(math.Round(e.MeanCoverage / mi.meanCoverage))
		if mult < 1 {
			mult = 1
		}
		e.Multiplicity = mult
	}
	log.Printf("Mean coverage estimate: %.1fx", mi.meanCoverage)
}

// coverageMode finds the peak of the length-weighted per-edge depth
// distribution. Unique edges dominate in count and cluster around
// one depth; repeats sit at integer multiples and cannot shift the
// mode.
func coverageMode(edges []*graph.Edge) float64 {
	type sample struct {
		cov    float64
		weight float64
	}
	var samples []sample
	maxCov := 0.0
	for _, e := range edges {
		if e.MeanCoverage <= 0 || e.Length() == 0 {
			continue
		}
		samples = append(samples, sample{cov: e.MeanCoverage, weight: float64(e.Length())})
		if e.MeanCoverage > maxCov {
			maxCov = e.MeanCoverage
		}
	}
	if len(samples) == 0 {
		return 0
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].cov < samples[j].cov })

	x := make([]float64, len(samples))
	weights := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = s.cov
		weights[i] = s.weight
	}

	binWidth := maxCov / 100
	if binWidth < 1 {
		binWidth = 1
	}
	bins := int(maxCov/binWidth) + 1
	dividers := make([]float64, bins+1)
	for i := range dividers {
		dividers[i] = float64(i) * binWidth
	}
	dividers[bins] = maxCov + 1

	counts := stat.Histogram(nil, dividers, x, weights)
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return (dividers[best] + dividers[best+1]) / 2
}

// RemoveUnsupportedEdges deletes edges whose depth falls below the
// coverage noise threshold, treating them as assembly artifacts.
func (mi *MultiplicityInferer) RemoveUnsupportedEdges() {
	threshold := mi.meanCoverage * mi.cfg.CovNoiseRate
	var doomed []*graph.Edge
	mi.graph.Edges(func(e *graph.Edge) {
		if e.ComplID < e.ID {
			return
		}
		if e.MeanCoverage < threshold {
			doomed = append(doomed, e)
		}
	})
	for _, e := range doomed {
		mi.graph.RemoveEdgePair(e, "low coverage")
		mi.removedEdges++
	}
	mi.graph.Vertices(func(v *graph.Vertex) {
		mi.graph.RemoveVertexIfIsolated(v.ID)
	})
	log.Printf("Removed %v unsupported edges (coverage below %.2fx)", mi.removedEdges, threshold)
}

// transitionSupport counts read-path transitions between adjacent
// edges.
func (mi *MultiplicityInferer) transitionSupport() map[[2]graph.EdgeID]int {
	support := make(map[[2]graph.EdgeID]int)
	for _, aln := range mi.aligner.Alignments() {
		for i := 0; i+1 < len(aln.Path); i++ {
			key := [2]graph.EdgeID{aln.Path[i].EdgeID, aln.Path[i+1].EdgeID}
			support[key]++
		}
	}
	return support
}

// RemoveUnsupportedConnections detaches edge ends from branching
// vertices when no transition through the vertex has enough
// corroborating reads, so spurious joins are not treated as real
// adjacency.
func (mi *MultiplicityInferer) RemoveUnsupportedConnections() {
	g := mi.graph
	support := mi.transitionSupport()

	var detach []*graph.Edge
	seen := make(map[graph.EdgeID]bool)
	g.Edges(func(e *graph.Edge) {
		if seen[e.ID] || seen[e.ComplID] {
			return
		}
		v := g.Vertex(e.To)
		if len(v.Out) == 0 || (len(v.In) == 1 && len(v.Out) == 1) {
			return
		}
		total := 0
		for _, out := range v.Out {
			total += support[[2]graph.EdgeID{e.ID, out}]
		}
		// total == 0 is the clearest spurious join: no read continues
		// through the junction at all.
		if total < mi.cfg.MinReadSupport && len(v.In) > 1 {
			detach = append(detach, e)
			seen[e.ID] = true
			seen[e.ComplID] = true
		}
	})

	for _, e := range detach {
		detachEdgeEnd(g, e)
		mi.removedConnections++
	}
	log.Printf("Removed %v unsupported connections", mi.removedConnections)
}

// SeparateHaplotypes reclassifies parallel edge pairs whose depths
// sum to roughly the unique-coverage mode as alternate alleles of
// one locus rather than a two-copy repeat.
func (mi *MultiplicityInferer) SeparateHaplotypes() {
	g := mi.graph
	mean := mi.meanCoverage
	handled := make(map[graph.EdgeID]bool)

	g.Vertices(func(v *graph.Vertex) {
		if len(v.Out) < 2 {
			return
		}
		byTarget := make(map[graph.VertexID][]*graph.Edge)
		for _, id := range v.Out {
			e := g.Edge(id)
			byTarget[e.To] = append(byTarget[e.To], e)
		}
		targets := make([]graph.VertexID, 0, len(byTarget))
		for t := range byTarget {
			targets = append(targets, t)
		}
		sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

		for _, t := range targets {
			pair := byTarget[t]
			if len(pair) != 2 || handled[pair[0].ID] || handled[pair[1].ID] {
				continue
			}
			e1, e2 := pair[0], pair[1]
			if e1.MeanCoverage >= mean*mi.cfg.HaplotypeMaxRate ||
				e2.MeanCoverage >= mean*mi.cfg.HaplotypeMaxRate {
				continue
			}
			sum := e1.MeanCoverage + e2.MeanCoverage
			if sum < 0.5*mean || sum > 1.5*mean {
				continue
			}
			group := g.NewAltGroup()
			for _, e := range []*graph.Edge{e1, e2, g.Complement(e1), g.Complement(e2)} {
				e.Multiplicity = 1
				e.Repetitive = false
				e.AltGroup = group
				handled[e.ID] = true
			}
			mi.haplotypeGroups++
		}
	})
	log.Printf("Separated %v haplotype pairs", mi.haplotypeGroups)
}

// RemovedEdges returns the number of edges pruned for lack of
// support.
func (mi *MultiplicityInferer) RemovedEdges() int {
	return mi.removedEdges
}

// RemovedConnections returns the number of detached spurious joins.
func (mi *MultiplicityInferer) RemovedConnections() int {
	return mi.removedConnections
}

// HaplotypeGroups returns the number of separated haplotype pairs.
func (mi *MultiplicityInferer) HaplotypeGroups() int {
	return mi.haplotypeGroups
}
