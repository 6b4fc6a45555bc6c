// Package registry holds the compiled program catalogue.
//
// A Registry is created once at startup and passed to whatever evaluates
// checklists. Programs are compiled from CUE (a directory or an embedded
// file system) and every activation graph is built and validated before the
// catalogue is served. Watch recompiles the catalogue when its directory
// changes.
//
// Lookups never observe a half-loaded catalogue: a reload compiles and
// validates the new catalogue completely before swapping it in, and a reload
// with any broken program keeps serving the previous one.
package registry
