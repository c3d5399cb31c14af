package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/archspec/config"
	"github.com/c360studio/archspec/guard"
	"github.com/c360studio/archspec/mir"
	"github.com/c360studio/archspec/processor/ast"
	"github.com/c360studio/archspec/report"

	// Register source parsers via init()
	_ "github.com/c360studio/archspec/processor/ast/java"
	_ "github.com/c360studio/archspec/processor/ast/python"
)

type checkOptions struct {
	dslPath     string
	roots       []string
	watch       bool
	metricsFile string
	json        bool
}

func checkCmd(opts *globalOptions) *cobra.Command {
	co := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check source packages against the layered architecture",
		Long: `Check resolves the package and imports of every source file and reports
each import that crosses into a layer the importing layer may not depend on.

Source roots come from --root, then source.roots in the config, then the
SourceSet declared in the architecture file, then the repository root.

Exits with status 1 when violations are found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return co.run(cmd.Context(), a, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&co.dslPath, "dsl", "", "Architecture file (default: dsl.path from the config)")
	cmd.Flags().StringSliceVar(&co.roots, "root", nil, "Source root to scan (repeatable)")
	cmd.Flags().BoolVarP(&co.watch, "watch", "w", false, "Re-check on every source change until interrupted")
	cmd.Flags().StringVar(&co.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after every check")
	cmd.Flags().BoolVar(&co.json, "json", false, "Write the report as JSON")

	return cmd
}

func (co *checkOptions) run(ctx context.Context, a *app, out io.Writer) error {
	path := co.dslPath
	if path == "" {
		path = a.cfg.DSLPath()
	}

	model, err := a.loadModel(path)
	if err != nil {
		return err
	}
	if model.Layered == nil {
		return fmt.Errorf("%s: %w", path, guard.ErrNoArchitecture)
	}

	ignored, err := a.cfg.IgnoredPackages()
	if err != nil {
		return err
	}
	g, err := guard.New(model.Layered,
		guard.WithLogger(a.logger),
		guard.WithIgnoredPackages(ignored...))
	if err != nil {
		return err
	}

	roots, err := co.sourceRoots(a.cfg, model)
	if err != nil {
		return err
	}
	resolver, err := ast.NewResolver(ast.ResolverConfig{
		RepoRoot:    a.cfg.Source.RepoRoot,
		Roots:       roots,
		Include:     a.cfg.Source.Include,
		Exclude:     a.cfg.Source.Exclude,
		Parallelism: a.cfg.Source.Parallelism,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}

	startedAt := time.Now()
	files, err := resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve sources: %w", err)
	}

	r := report.Check(g, files, startedAt)
	if err := co.emit(out, r); err != nil {
		return err
	}

	if co.watch {
		return co.watchSources(ctx, a, g, resolver, files, out)
	}
	if !r.Conforms() {
		return errViolations
	}
	return nil
}

// sourceRoots picks the roots to scan. Flag roots are relative to the
// working directory; the others are relative to the repository root.
func (co *checkOptions) sourceRoots(cfg *config.Config, model *mir.ContextMap) ([]string, error) {
	if len(co.roots) > 0 {
		roots := make([]string, 0, len(co.roots))
		for _, r := range co.roots {
			abs, err := filepath.Abs(r)
			if err != nil {
				return nil, fmt.Errorf("resolve root %s: %w", r, err)
			}
			roots = append(roots, abs)
		}
		return roots, nil
	}
	if len(cfg.Source.Roots) > 0 {
		return cfg.Source.Roots, nil
	}
	if model.SourceSets != nil {
		if dirs := model.SourceSets.SrcDirs(); len(dirs) > 0 {
			return dirs, nil
		}
	}
	return []string{"."}, nil
}

func (co *checkOptions) emit(out io.Writer, r *report.Report) error {
	var err error
	if co.json {
		err = r.WriteJSON(out)
	} else {
		err = r.WriteText(out)
	}
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if co.metricsFile != "" {
		if err := r.WriteMetrics(co.metricsFile); err != nil {
			return err
		}
	}
	return nil
}

// watchSources re-checks the changed file set after every debounced batch
// of source changes. It returns nil once ctx is done.
func (co *checkOptions) watchSources(ctx context.Context, a *app, g *guard.PackageGuarding, resolver *ast.Resolver, files []*ast.ResolvedFile, out io.Writer) error {
	watcher, err := ast.NewWatcher(ast.WatcherConfig{
		Resolver:      resolver,
		DebounceDelay: a.cfg.Watch.Debounce,
		Logger:        a.logger,
	})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Stop()

	watcher.Prime(files)
	current := make(map[string]*ast.ResolvedFile, len(files))
	for _, f := range files {
		current[f.Path] = f
	}

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Watch stopped")
			return nil

		case batch, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			applyBatch(a, current, batch)

			r := report.Check(g, snapshot(current), time.Now())
			if err := co.emit(out, r); err != nil {
				return err
			}
		}
	}
}

func applyBatch(a *app, current map[string]*ast.ResolvedFile, batch []ast.WatchEvent) {
	for _, ev := range batch {
		if ev.Error != nil {
			a.logger.Warn("Source file skipped", "path", ev.Path, "error", ev.Error)
			continue
		}
		switch ev.Operation {
		case ast.OpDelete:
			delete(current, ev.Path)
		case ast.OpCreate, ast.OpModify:
			current[ev.Path] = ev.File
		}
		a.logger.Debug("Source changed", "path", ev.Path, "op", string(ev.Operation))
	}
}

func snapshot(current map[string]*ast.ResolvedFile) []*ast.ResolvedFile {
	files := make([]*ast.ResolvedFile, 0, len(current))
	for _, f := range current {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}
