package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/hashicorp/hcl/v2"
	"github.com/spf13/cobra"

	"github.com/c360studio/archspec/config"
	"github.com/c360studio/archspec/dsl"
	"github.com/c360studio/archspec/mir"
	"github.com/c360studio/archspec/transform"
)

// app is the loaded configuration and logger of one command run.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stderr io.Writer
}

// load resolves the configuration, applies flag overrides and installs the
// configured logger as the slog default.
func (o *globalOptions) load(cmd *cobra.Command) (*app, error) {
	stderr := cmd.ErrOrStderr()

	bootLevel := "info"
	if o.logLevel != "" {
		bootLevel = o.logLevel
	}
	bootstrap := newLogger(stderr, bootLevel, o.logFormat)

	cfg, err := config.NewLoader(bootstrap).Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	return &app{cfg: cfg, logger: logger, stderr: stderr}, nil
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	// Configure logging
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadModel reads, parses and lowers the architecture file at path. Syntax
// and lowering errors are rendered as source diagnostics on stderr before
// being returned; lowering warnings are logged.
func (a *app) loadModel(path string) (*mir.ContextMap, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read architecture: %w", err)
	}
	text := string(src)

	files := map[string]*hcl.File{path: {Bytes: src}}
	diags := hcl.NewDiagnosticTextWriter(a.stderr, files, 0, !color.NoColor)

	decls, err := dsl.Parse(text)
	if err != nil {
		var syntaxErr *dsl.SyntaxError
		if errors.As(err, &syntaxErr) {
			_ = diags.WriteDiagnostic(syntaxErr.Diagnostic(path))
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	model, warnings, err := transform.LowerWithWarnings(decls)
	if err != nil {
		var lowerErr *transform.LoweringError
		if errors.As(err, &lowerErr) {
			_ = diags.WriteDiagnostic(lowerErr.Diagnostic(path, text))
		}
		return nil, fmt.Errorf("lower %s: %w", path, err)
	}

	for _, w := range warnings {
		a.logger.Warn("Architecture warning",
			"kind", string(w.Kind),
			"subject", w.Subject,
			"message", w.Message,
			"range", dsl.Range(path, text, w.Loc).String())
	}

	a.logger.Debug("Architecture loaded",
		"path", path,
		"contexts", len(model.Contexts),
		"implementations", len(model.Implementations),
		"warnings", len(warnings))
	return model, nil
}
