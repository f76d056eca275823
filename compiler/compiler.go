// Package compiler defines the compiler collaborator contract: an ordered
// list of entry paths plus flattened flag tokens in, artifacts streamed out
// through a write sink, one optional error on completion.
package compiler

import (
	"context"
	"strings"
)

// ArtifactKind classifies an emitted artifact by its requested name.
type ArtifactKind int

const (
	// KindBinary is the wasm binary module; captured in memory, never
	// written to disk by the pipeline.
	KindBinary ArtifactKind = iota
	// KindSourceMap is a source map; captured in memory keyed by name.
	KindSourceMap
	// KindOther covers everything else; written to disk as soon as the
	// compiler streams it.
	KindOther
)

// ClassifyArtifact determines the artifact kind from its emitted name.
func ClassifyArtifact(name string) ArtifactKind {
	switch {
	case strings.HasSuffix(name, ".wasm"):
		return KindBinary
	case strings.HasSuffix(name, ".map"):
		return KindSourceMap
	default:
		return KindOther
	}
}

// WriteSink intercepts every artifact the compiler wants to persist.
type WriteSink func(name string, data []byte) error

// Compiler compiles an ordered list of entry files. Implementations must
// route every produced artifact through sink and return a diagnostic error
// on compilation failure.
type Compiler interface {
	Compile(ctx context.Context, entries []string, flags []string, sink WriteSink) error
}
