// Package ident maps `?service-worker` import specifiers to the virtual
// identifiers routed through the worker loader, and back.
//
// A worker identifier is a tagged value rather than a sniffed string: the
// esbuild namespace carries the tag, and String renders the private-prefix
// form used in diagnostics and by hosts that only pass strings around.
package ident

import (
	"strings"

	"github.com/conneroisu/swimport/internal/errors"
)

const (
	// Suffix marks an import specifier as a worker import.
	Suffix = "?service-worker"

	// Prefix is the private prefix of the string form of a worker ID. The
	// leading NUL keeps it from colliding with any real file path.
	Prefix = "\x00service-worker"

	// Namespace is the esbuild namespace worker IDs are resolved into.
	Namespace = "service-worker"
)

// Kind tags an ID.
type Kind int

const (
	// KindReal is an ordinary file path owned by the host resolver.
	KindReal Kind = iota
	// KindWorker is a worker entry file resolved through the worker loader.
	KindWorker
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindReal:
		return "real"
	case KindWorker:
		return "worker"
	default:
		return "unknown"
	}
}

// ID is a module identifier tagged with the loader that owns it.
type ID struct {
	Kind Kind
	Path string
}

// Real wraps a path the host resolver owns.
func Real(path string) ID {
	return ID{Kind: KindReal, Path: path}
}

// Worker wraps an absolute worker entry path.
func Worker(path string) ID {
	return ID{Kind: KindWorker, Path: path}
}

// IsWorker reports whether the ID belongs to the worker loader.
func (id ID) IsWorker() bool {
	return id.Kind == KindWorker
}

// String renders the virtual identifier.
func (id ID) String() string {
	if id.Kind == KindWorker {
		return Prefix + id.Path
	}
	return id.Path
}

// IsWorkerSpecifier reports whether specifier ends with the worker suffix. The
// match is exact and case-sensitive.
func IsWorkerSpecifier(specifier string) bool {
	return strings.HasSuffix(specifier, Suffix)
}

// Strip removes the worker suffix so the host can resolve the remainder.
func Strip(specifier string) string {
	return strings.TrimSuffix(specifier, Suffix)
}

// Encode builds the worker ID for specifier given the host's resolution of the
// suffix-stripped specifier.
func Encode(specifier, resolvedPath string) (ID, error) {
	if !IsWorkerSpecifier(specifier) {
		return ID{}, errors.NewValidationError(errors.ErrCodeNotWorkerImport,
			"specifier "+specifier+" does not end in "+Suffix)
	}
	if resolvedPath == "" {
		return ID{}, errors.NewResolveError(errors.ErrCodeResolveFailed,
			"empty resolution for "+specifier)
	}
	return Worker(resolvedPath), nil
}

// Decode returns the worker ID encoded in raw. The boolean is false when raw
// does not carry the private prefix, meaning the ID belongs to someone else.
func Decode(raw string) (ID, bool) {
	path, ok := strings.CutPrefix(raw, Prefix)
	if !ok {
		return Real(raw), false
	}
	return Worker(path), true
}
