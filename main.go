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

// repgraph builds a repeat graph from a draft genome assembly, aligns
// long reads to it, and resolves repeats into distinct copies using
// the read paths as evidence.
package main

import (
	"fmt"
	"log"
	"os"
	"runtime/debug"

	"github.com/rgtools/repgraph/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: assemble")
	fmt.Fprint(os.Stderr, "\n", cmd.AssembleHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)

	// Typed errors from deep pipeline code arrive here as panics;
	// report them with a stack trace and a non-zero exit instead of a
	// bare crash.
	defer func() {
		if r := recover(); r != nil {
			log.Println("Fatal error: ", r)
			log.Println(string(debug.Stack()))
			os.Exit(1)
		}
	}()

	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage, "\n")
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "assemble":
		err = cmd.Assemble()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Println("Unknown command: ", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
