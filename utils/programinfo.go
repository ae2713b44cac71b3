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

package utils

const (
	// ProgramName is "repgraph"
	ProgramName = "repgraph"

	// ProgramVersion is the version of the repgraph binary
	ProgramVersion = "1.2.0"

	// ProgramURL is the repository for the repgraph source code
	ProgramURL = "http://github.com/rgtools/repgraph"
)
