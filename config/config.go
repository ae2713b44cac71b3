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

// Package config collects the tuning parameters of the assembly
// pipeline into one value that is passed to every component
// constructor, so that no component depends on global state.
package config

// Config holds the parameters of a repeat graph assembly run.
//
// The k-mer size, minimum overlap, thread count and the
// graph-continue flag come from the command line; the remaining
// fields are expert thresholds with defaults that work across
// sequencing depths because the coverage-related ones are relative to
// the estimated mean coverage, not absolute.
type Config struct {
	// KmerSize is the seed k-mer length for overlap detection.
	KmerSize int

	// MinOverlap is the minimum length of a valid overlap, and the
	// minimum read length worth aligning.
	MinOverlap int

	// NumThreads caps the number of worker goroutines.
	NumThreads int

	// GraphContinue extends contigs across ambiguous junctions using
	// the strongest resolved branch.
	GraphContinue bool

	// MaxJump is the maximum gap between chained seeds, in bases.
	MaxJump int

	// MaxSeparation is the clustering radius for junction positions
	// during graph construction, and the tolerance for matching
	// alignment endpoints against vertex boundaries.
	MaxSeparation int

	// MaxIndexFrequency bans k-mers that occur more often than this
	// from seeding, to keep seed lookups O(1)-ish on repetitive
	// genomes.
	MaxIndexFrequency int

	// MinReadsForCoverage is the minimum number of aligned reads
	// required before multiplicity inference is considered reliable.
	MinReadsForCoverage int

	// MinReadSupport is the minimum number of corroborating reads for
	// an edge transition or a repeat flank pairing.
	MinReadSupport int

	// CovNoiseRate, relative to mean coverage, is the depth below
	// which an edge is treated as an assembly artifact.
	CovNoiseRate float64

	// HaplotypeMaxRate is the maximum coverage of a single haplotype
	// edge, relative to mean coverage, for the haplotype separation
	// heuristic to apply.
	HaplotypeMaxRate float64

	// LongEdgeLength and LongEdgeMinSupport control when a long
	// unresolved edge is treated as a suspected mis-assembly. The
	// precise rule is heuristic, so both knobs are configuration
	// rather than constants.
	LongEdgeLength     int
	LongEdgeMinSupport int
}

// Default returns the parameters used by the standard pipeline.
func Default() Config {
	return Config{
		KmerSize:            15,
		MinOverlap:          5000,
		NumThreads:          1,
		MaxJump:             1500,
		MaxSeparation:       500,
		MaxIndexFrequency:   500,
		MinReadsForCoverage: 10,
		MinReadSupport:      2,
		CovNoiseRate:        0.02,
		HaplotypeMaxRate:    0.75,
		LongEdgeLength:      50000,
		LongEdgeMinSupport:  4,
	}
}
