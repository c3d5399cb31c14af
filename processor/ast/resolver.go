package ast

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// RepoRoot is the directory reported paths are relative to.
	RepoRoot string

	// Roots are the directories to scan, relative to RepoRoot or absolute.
	// Defaults to RepoRoot itself.
	Roots []string

	// Include are doublestar patterns over root-relative slash paths. A file
	// must match at least one. Empty means every file with a registered parser.
	Include []string

	// Exclude are doublestar patterns; a matching file is skipped.
	Exclude []string

	// Parallelism bounds concurrent parses. Defaults to GOMAXPROCS.
	Parallelism int

	// Registry selects parsers by extension. Defaults to DefaultRegistry.
	Registry *ParserRegistry

	Logger *slog.Logger
}

// Resolver finds source files and extracts their facts.
type Resolver struct {
	config   ResolverConfig
	registry *ParserRegistry
	logger   *slog.Logger
}

// NewResolver validates the patterns in config and returns a Resolver.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	for _, p := range append(append([]string{}, config.Include...), config.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern: %q", p)
		}
	}

	if config.RepoRoot == "" {
		config.RepoRoot = "."
	}
	root, err := filepath.Abs(config.RepoRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve repo root: %w", err)
	}
	config.RepoRoot = root

	if len(config.Roots) == 0 {
		config.Roots = []string{"."}
	}
	if config.Parallelism <= 0 {
		config.Parallelism = runtime.GOMAXPROCS(0)
	}

	registry := config.Registry
	if registry == nil {
		registry = DefaultRegistry
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{config: config, registry: registry, logger: logger}, nil
}

// RepoRoot returns the absolute repository root.
func (r *Resolver) RepoRoot() string { return r.config.RepoRoot }

// Resolve discovers and parses every matching file. Files come back sorted
// by path. A file that fails to parse fails the whole call.
func (r *Resolver) Resolve(ctx context.Context) ([]*ResolvedFile, error) {
	paths, err := r.Discover(ctx)
	if err != nil {
		return nil, err
	}
	return r.ResolveFiles(ctx, paths)
}

// Discover returns the absolute paths of every matching file, sorted.
func (r *Resolver) Discover(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string

	for _, root := range r.config.Roots {
		absRoot := root
		if !filepath.IsAbs(absRoot) {
			absRoot = filepath.Join(r.config.RepoRoot, root)
		}
		if _, err := os.Stat(absRoot); err != nil {
			return nil, fmt.Errorf("source root %q: %w", root, err)
		}

		err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				if path != absRoot && skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if seen[path] || !r.Matches(path) {
				return nil
			}
			seen[path] = true
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	sort.Strings(paths)
	r.logger.Debug("Discovered source files", "count", len(paths), "roots", r.config.Roots)
	return paths, nil
}

// Matches reports whether the file at path would be resolved: a parser is
// registered for it and it passes the include and exclude patterns.
func (r *Resolver) Matches(path string) bool {
	if !r.registry.Supports(path) {
		return false
	}
	rel := r.relPath(path)
	for _, p := range r.config.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	if len(r.config.Include) == 0 {
		return true
	}
	for _, p := range r.config.Include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// ResolveFiles parses the given files in parallel. The result is in the
// order of paths.
func (r *Resolver) ResolveFiles(ctx context.Context, paths []string) ([]*ResolvedFile, error) {
	results := make([]*ResolvedFile, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Parallelism)
	for i, path := range paths {
		g.Go(func() error {
			// tree-sitter parsers are not safe for concurrent use, so each
			// file gets its own
			parser, err := r.registry.CreateParserForExtension(filepath.Ext(path), r.config.RepoRoot)
			if err != nil {
				return err
			}
			file, err := parser.ParseFile(gctx, path)
			if err != nil {
				return fmt.Errorf("%s: %w", r.relPath(path), err)
			}
			results[i] = file
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Debug("Resolved source files", "count", len(results))
	return results, nil
}

func (r *Resolver) relPath(path string) string {
	rel, err := filepath.Rel(r.config.RepoRoot, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}

// skipDir reports whether a directory never holds checked sources.
func skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "target", "build", "bin", "out", "classes",
		"node_modules", "vendor", "test-output":
		return true
	}
	return false
}
