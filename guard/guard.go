// Package guard checks resolved source files against a layered architecture.
//
// A PackageGuarding is built once from a mir.LayeredArchitecture and is
// read-only afterwards, so one value can verify any number of files from any
// number of goroutines.
package guard

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/c360studio/archspec/mir"
	"github.com/c360studio/archspec/processor/ast"
)

var (
	// ErrNoArchitecture is returned when there is no layered architecture to check against.
	ErrNoArchitecture = errors.New("no layered architecture")

	// ErrUnknownLayer is returned when a layer relation names an undeclared layer.
	ErrUnknownLayer = errors.New("unknown layer")
)

// PackageGuarding holds the package prefix of every layer and, per prefix,
// the set of prefixes it may import.
type PackageGuarding struct {
	name           string
	layerPackage   map[string]string
	packageLayer   map[string]string
	allowedTargets map[string]sets.Set[string]
	prefixes       sets.Set[string]
	ignored        []*PackagePattern
	logger         *slog.Logger
}

// Option configures a PackageGuarding.
type Option func(*PackageGuarding)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *PackageGuarding) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithIgnoredPackages excludes files whose package matches any of the
// patterns from checking.
func WithIgnoredPackages(patterns ...*PackagePattern) Option {
	return func(g *PackageGuarding) {
		g.ignored = append(g.ignored, patterns...)
	}
}

// New builds the guard for arch.
//
// Every distinct layer package gets an allowed-target entry, possibly empty. A
// layer with no outgoing dependency may import nothing from other layers; it
// is never left unchecked. Layers without a package are skipped, and layers
// sharing a package are checked as the first of them, with the union of their
// dependencies.
func New(arch *mir.LayeredArchitecture, opts ...Option) (*PackageGuarding, error) {
	if arch == nil {
		return nil, ErrNoArchitecture
	}

	g := &PackageGuarding{
		name:           arch.Name,
		layerPackage:   make(map[string]string, len(arch.Layers)),
		packageLayer:   make(map[string]string, len(arch.Layers)),
		allowedTargets: make(map[string]sets.Set[string], len(arch.Layers)),
		prefixes:       sets.New[string](),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}

	for _, layer := range arch.Layers {
		if layer.PackageName == "" {
			g.logger.Warn("Layer has no package and is not checked",
				"layered", arch.Name, "layer", layer.Name)
			continue
		}
		g.layerPackage[layer.Name] = layer.PackageName
		if owner, ok := g.packageLayer[layer.PackageName]; ok {
			g.logger.Warn("Layers share a package and are checked as one",
				"layered", arch.Name, "layer", layer.Name, "package", layer.PackageName, "owner", owner)
			continue
		}
		g.packageLayer[layer.PackageName] = layer.Name
		g.allowedTargets[layer.PackageName] = sets.New[string]()
		g.prefixes.Insert(layer.PackageName)
	}

	for _, rel := range arch.Relations {
		src, ok := g.layerPackage[rel.Source]
		if !ok {
			return nil, fmt.Errorf("%w %q in relation %s -> %s", ErrUnknownLayer, rel.Source, rel.Source, rel.Target)
		}
		tgt, ok := g.layerPackage[rel.Target]
		if !ok {
			return nil, fmt.Errorf("%w %q in relation %s -> %s", ErrUnknownLayer, rel.Target, rel.Source, rel.Target)
		}
		g.allowedTargets[src].Insert(tgt)
	}

	g.logger.Debug("Package guard built",
		"layered", arch.Name,
		"layers", len(g.allowedTargets),
		"relations", len(arch.Relations))
	return g, nil
}

// Name returns the name of the layered architecture.
func (g *PackageGuarding) Name() string { return g.name }

// Covers reports whether f is checked at all: its package lies in a layer
// and is not ignored.
func (g *PackageGuarding) Covers(f *ast.ResolvedFile) bool {
	if f == nil || g.isIgnored(f.Package) {
		return false
	}
	_, _, ok := g.LayerOf(f.Package)
	return ok
}

// AllowedTargets returns a copy of the allowed-target sets keyed by package prefix.
func (g *PackageGuarding) AllowedTargets() map[string]sets.Set[string] {
	out := make(map[string]sets.Set[string], len(g.allowedTargets))
	for k, v := range g.allowedTargets {
		out[k] = v.Clone()
	}
	return out
}

// LayerPrefixes returns every layer package prefix, sorted.
func (g *PackageGuarding) LayerPrefixes() []string {
	return sets.List(g.prefixes)
}

// LayerOf returns the layer name and prefix that own pkg. With nested
// prefixes the longest one wins.
func (g *PackageGuarding) LayerOf(pkg string) (layer, prefix string, ok bool) {
	for p := range g.prefixes {
		if hasPackagePrefix(pkg, p) && len(p) > len(prefix) {
			prefix = p
		}
	}
	if prefix == "" {
		return "", "", false
	}
	return g.packageLayer[prefix], prefix, true
}

// hasPackagePrefix reports whether pkg is prefix or a sub-package of it.
func hasPackagePrefix(pkg, prefix string) bool {
	return pkg == prefix || strings.HasPrefix(pkg, prefix+".")
}

// EnclosingPackage drops the last dotted segment of an import, turning a type
// or wildcard import into the package it names.
func EnclosingPackage(imp string) string {
	i := strings.LastIndex(imp, ".")
	if i < 0 {
		return ""
	}
	return imp[:i]
}

// Violation is one import that crosses a layer boundary without an allowing
// dependency rule.
type Violation struct {
	File        string `json:"file"`
	Package     string `json:"package"`
	Import      string `json:"import"`
	Imported    string `json:"imported"`
	SourceLayer string `json:"source_layer"`
	TargetLayer string `json:"target_layer"`
}

func (v Violation) String() string {
	return fmt.Sprintf("package %s imported %s", v.Package, v.Imported)
}

// Verify checks files and returns one line per violation, in file order.
// An empty result means the files conform.
func (g *PackageGuarding) Verify(files []*ast.ResolvedFile) []string {
	violations := g.Violations(files)
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.String())
	}
	return out
}

// Violations is Verify with structured results.
func (g *PackageGuarding) Violations(files []*ast.ResolvedFile) []Violation {
	violations := make([]Violation, 0)
	for _, f := range files {
		violations = append(violations, g.CheckFile(f)...)
	}
	return violations
}

// CheckFile checks a single file. Files outside every layer, and files whose
// package is ignored, yield nothing.
func (g *PackageGuarding) CheckFile(f *ast.ResolvedFile) []Violation {
	if f == nil || g.isIgnored(f.Package) {
		return nil
	}
	srcLayer, srcPrefix, ok := g.LayerOf(f.Package)
	if !ok {
		return nil
	}
	allowed := g.allowedTargets[srcPrefix]

	var violations []Violation
	for _, imp := range f.Imports {
		enclosing := EnclosingPackage(imp)
		tgtLayer, tgtPrefix, ok := g.LayerOf(enclosing)
		if !ok || tgtPrefix == srcPrefix || allowed.Has(tgtPrefix) {
			continue
		}
		violations = append(violations, Violation{
			File:        f.Path,
			Package:     f.Package,
			Import:      imp,
			Imported:    enclosing,
			SourceLayer: srcLayer,
			TargetLayer: tgtLayer,
		})
	}
	if len(violations) > 0 {
		g.logger.Debug("Layer violations found", "file", f.Path, "package", f.Package, "count", len(violations))
	}
	return violations
}

func (g *PackageGuarding) isIgnored(pkg string) bool {
	for _, p := range g.ignored {
		if p.Match(pkg) {
			return true
		}
	}
	return false
}
