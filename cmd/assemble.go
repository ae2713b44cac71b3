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

package cmd

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rgtools/repgraph/align"
	"github.com/rgtools/repgraph/config"
	"github.com/rgtools/repgraph/graph"
	"github.com/rgtools/repgraph/internal"
	"github.com/rgtools/repgraph/output"
	"github.com/rgtools/repgraph/resolve"
	"github.com/rgtools/repgraph/seq"
)

// AssembleHelp is the help string for the repgraph assemble command.
const AssembleHelp = "\nassemble parameters:\n" +
	"repgraph assemble assembly-file reads-file[,reads-file...] output-folder\n" +
	"[-k kmer-size]\n" +
	"[-v min-overlap]\n" +
	"[-t nr-of-threads]\n" +
	"[-g]\n" +
	"[-d]\n" +
	"[-l log-path]\n" +
	"[--max-kmer-frequency nr]\n" +
	"[--min-read-support nr]\n" +
	"[--timed]\n" +
	"[--profile filename]\n"

// Assemble implements the repgraph assemble command: it builds the
// repeat graph from the draft assembly, aligns the reads, resolves
// repeats, and writes the graph checkpoints and contigs into the
// output folder.
func Assemble() error {
	var (
		kmerSize, minOverlap    int
		nrOfThreads             int
		maxKmerFrequency        int
		minReadSupport          int
		graphContinue, debugLog bool
		timed                   bool
		logPath, profile        string
	)

	defaults := config.Default()

	var flags flag.FlagSet

	flags.IntVar(&kmerSize, "k", defaults.KmerSize, "k-mer size for overlap seeding")
	flags.IntVar(&minOverlap, "v", defaults.MinOverlap, "minimum overlap length")
	flags.IntVar(&nrOfThreads, "t", 0, "number of worker threads")
	flags.BoolVar(&graphContinue, "g", false, "extend contigs across ambiguous junctions")
	flags.BoolVar(&debugLog, "d", false, "enable debug logging and graph invariant checks")
	flags.StringVar(&logPath, "l", "", "write log files to the specified directory")
	flags.IntVar(&maxKmerFrequency, "max-kmer-frequency", defaults.MaxIndexFrequency, "ban k-mers above this frequency from seeding")
	flags.IntVar(&minReadSupport, "min-read-support", defaults.MinReadSupport, "minimum reads corroborating a transition or pairing")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")

	parseFlags(flags, 5, AssembleHelp)

	inAssembly := getFilename(os.Args[2], AssembleHelp)
	readsArg := getFilename(os.Args[3], AssembleHelp)
	outFolder := getFilename(os.Args[4], AssembleHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", inAssembly) {
		sanityChecksFailed = true
	}
	readsFiles := strings.Split(readsArg, ",")
	for _, f := range readsFiles {
		if !checkExist("", f) {
			sanityChecksFailed = true
		}
	}
	if profile != "" && !checkCreate("--profile", profile) {
		sanityChecksFailed = true
	}
	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}
	if kmerSize < 1 || kmerSize > 31 {
		sanityChecksFailed = true
		log.Println("Error: Invalid k-mer size: ", kmerSize)
	}
	if minOverlap < kmerSize {
		sanityChecksFailed = true
		log.Println("Error: Minimum overlap smaller than k-mer size: ", minOverlap)
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, AssembleHelp)
		os.Exit(1)
	}

	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
	}

	internal.MkdirAll(outFolder, 0700)
	out := func(name string) string { return filepath.Join(outFolder, name) }

	cfg := defaults
	cfg.KmerSize = kmerSize
	cfg.MinOverlap = minOverlap
	cfg.NumThreads = runtime.GOMAXPROCS(0)
	cfg.GraphContinue = graphContinue
	cfg.MaxIndexFrequency = maxKmerFrequency
	cfg.MinReadSupport = minReadSupport

	if debugLog {
		log.Printf("Configuration: %+v", cfg)
	}

	// building output command line

	fullAssembly, err := internal.FullPathname(inAssembly)
	if err != nil {
		log.Panic(err)
	}
	fullOutFolder, err := internal.FullPathname(outFolder)
	if err != nil {
		log.Panic(err)
	}

	var command strings.Builder
	fmt.Fprint(&command, os.Args[0], " assemble ", fullAssembly, " ", readsArg, " ", fullOutFolder)
	fmt.Fprint(&command, " -k ", kmerSize, " -v ", minOverlap, " -t ", cfg.NumThreads)
	if graphContinue {
		fmt.Fprint(&command, " -g")
	}
	log.Println("Executing command line: ", command.String())

	assembly := seq.NewContainer()
	reads := seq.NewContainer()
	phase := int64(1)
	timedRun(timed, profile, "Loading sequences.", phase, func() {
		assembly.LoadFromFile(inAssembly)
		for _, f := range readsFiles {
			reads.LoadFromFile(f)
		}
		log.Printf("Loaded %v assembly sequences and %v reads",
			assembly.Count()/2, reads.Count()/2)
	})

	g := graph.NewRepeatGraph(assembly, cfg)
	gen := output.NewGenerator(g)
	proc := graph.NewProcessor(g)

	phase++
	timedRun(timed, profile, "Building repeat graph.", phase, func() {
		g.Build()
		if debugLog {
			g.CheckSymmetry()
		}
	})
	gen.OutputDot(out("graph_raw.dot"), proc.EdgesPaths())

	phase++
	timedRun(timed, profile, "Simplifying repeat graph.", phase, func() {
		proc.Simplify()
		if debugLog {
			g.CheckSymmetry()
		}
	})

	aligner := align.NewReadAligner(g, reads, cfg)
	phase++
	timedRun(timed, profile, "Aligning reads to the graph.", phase, func() {
		aligner.AlignReads()
	})

	inferer := resolve.NewMultiplicityInferer(g, aligner, cfg)
	phase++
	timedRun(timed, profile, "Inferring edge multiplicity.", phase, func() {
		inferer.EstimateCoverage()
		inferer.RemoveUnsupportedEdges()
		inferer.RemoveUnsupportedConnections()
		inferer.SeparateHaplotypes()
		if debugLog {
			g.CheckSymmetry()
		}
	})

	resolver := resolve.NewRepeatResolver(g, aligner, inferer, cfg)
	phase++
	timedRun(timed, profile, "Finding repeats.", phase, func() {
		resolver.FindRepeats()
	})

	// The pre-resolution checkpoint carries coverage and repeat
	// annotations, so it is only written once those are known.
	gen.OutputDot(out("graph_before_rr.dot"), proc.EdgesPaths())
	gen.OutputGfa(out("graph_before_rr.gfa"), proc.EdgesPaths())
	gen.OutputFasta(out("graph_before_rr.fasta"), proc.EdgesPaths())

	phase++
	timedRun(timed, profile, "Resolving repeats.", phase, func() {
		resolver.ResolveRepeats()
		resolver.FixLongEdges()
		if debugLog {
			g.CheckSymmetry()
		}
	})
	gen.OutputDot(out("graph_after_rr.dot"), proc.EdgesPaths())
	gen.DumpRepeats(out("repeats_dump.txt"), resolver.Repeats())

	extender := resolve.NewContigExtender(g, aligner, cfg, inferer.MeanCoverage())
	phase++
	timedRun(timed, profile, "Generating contigs.", phase, func() {
		extender.GenerateUnbranchingPaths()
		extender.GenerateContigs(cfg.GraphContinue)
	})
	extender.OutputContigs(out("graph_paths.fasta"))
	extender.OutputStatsTable(out("contigs_stats.txt"))
	extender.OutputScaffoldConnections(out("scaffolds_links.txt"))

	gen.OutputDot(out("graph_final.dot"), extender.UnbranchingPaths())
	gen.OutputGfa(out("graph_final.gfa"), extender.UnbranchingPaths())
	gen.OutputFasta(out("graph_final.fasta"), extender.UnbranchingPaths())

	log.Printf("Assembly finished: %v contigs, %v repeats resolved, %v unresolved",
		len(extender.Contigs()), resolver.ResolvedCount(), resolver.UnresolvedCount())
	return nil
}
