// Package programs embeds the built-in program catalogue.
//
// Each .cue file declares one or more programs under `program: <slug>:`.
// The files form one CUE package and are compiled together, so a program
// may be split across files.
package programs

import "embed"

// FS holds the catalogue's CUE files.
//
//go:embed *.cue
var FS embed.FS
