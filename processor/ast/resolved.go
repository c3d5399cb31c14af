// Package ast extracts structural facts from source files: the declared
// package, the imports and the classes with their methods.
//
// Language parsers live in sub-packages and register themselves with
// DefaultRegistry by file extension. The Resolver walks source roots and
// parses matching files in parallel; the Watcher reports files as they change.
package ast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrMalformedSource is returned by parsers for files that do not parse.
var ErrMalformedSource = errors.New("malformed source file")

// FileParser extracts the structural facts of a single file.
type FileParser interface {
	ParseFile(ctx context.Context, filePath string) (*ResolvedFile, error)
}

// ResolvedFile holds the facts of one source file.
type ResolvedFile struct {
	// Path is the file path relative to the repository root, slash separated.
	Path string `json:"path"`

	// Hash is a short content hash for change detection.
	Hash string `json:"hash"`

	// Language is the name of the parser that produced the file.
	Language string `json:"language"`

	// Package is the declared package, e.g. "com.x.domain". Empty for the
	// default package.
	Package string `json:"package"`

	// Imports are the imported names as written, e.g. "com.x.rest.Foo" or
	// "com.x.rest.*".
	Imports []string `json:"imports"`

	// Classes are the top-level and nested type declarations.
	Classes []Class `json:"classes"`
}

// Class is a type declaration.
type Class struct {
	Name       string   `json:"name"`
	Implements []string `json:"implements"`
	Methods    []Method `json:"methods"`
	Start      Point    `json:"start"`
	End        Point    `json:"end"`
}

// Method is a method or constructor of a class.
type Method struct {
	Name       string `json:"name"`
	ReturnType string `json:"return_type"`
	Start      Point  `json:"start"`
	End        Point  `json:"end"`
}

// Point is a zero-based row/column source position.
type Point struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// ComputeHash returns a short hex hash of content.
func ComputeHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:8]) // First 8 bytes for brevity
}
