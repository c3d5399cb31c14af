// Package report summarizes a conformance check run for people and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/c360studio/archspec/guard"
	"github.com/c360studio/archspec/processor/ast"
)

// Report is the outcome of checking a set of files against one layered architecture.
type Report struct {
	RunID        string            `json:"run_id"`
	Layered      string            `json:"layered"`
	StartedAt    time.Time         `json:"started_at"`
	Duration     time.Duration     `json:"duration"`
	FilesScanned int               `json:"files_scanned"`
	FilesChecked int               `json:"files_checked"`
	Violations   []guard.Violation `json:"violations"`
}

// Check runs g over files and records the outcome.
func Check(g *guard.PackageGuarding, files []*ast.ResolvedFile, startedAt time.Time) *Report {
	r := &Report{
		RunID:        uuid.NewString(),
		Layered:      g.Name(),
		StartedAt:    startedAt,
		FilesScanned: len(files),
		Violations:   g.Violations(files),
	}
	for _, f := range files {
		if g.Covers(f) {
			r.FilesChecked++
		}
	}
	r.Duration = time.Since(startedAt)
	return r
}

// Conforms reports whether the run found no violations.
func (r *Report) Conforms() bool {
	return len(r.Violations) == 0
}

// Lines returns the violations as "package X imported Y" lines.
func (r *Report) Lines() []string {
	out := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.String())
	}
	return out
}

// LayerEdge is a source/target layer pair that has violations.
type LayerEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Count  int    `json:"count"`
}

// ByLayer counts violations per offending layer edge, sorted by source then target.
func (r *Report) ByLayer() []LayerEdge {
	counts := make(map[[2]string]int)
	for _, v := range r.Violations {
		counts[[2]string{v.SourceLayer, v.TargetLayer}]++
	}
	edges := make([]LayerEdge, 0, len(counts))
	for k, n := range counts {
		edges = append(edges, LayerEdge{Source: k[0], Target: k[1], Count: n})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges
}

// WriteText writes a human readable summary. Colors follow color.NoColor.
func (r *Report) WriteText(w io.Writer) error {
	fail := color.New(color.FgRed, color.Bold).SprintFunc()
	ok := color.New(color.FgGreen, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	for _, v := range r.Violations {
		if _, err := fmt.Fprintf(w, "%s %s %s\n", fail("✗"), v.String(), dim(fmt.Sprintf("(%s: %s, %s -> %s)", v.File, v.Import, v.SourceLayer, v.TargetLayer))); err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("%s: %d files scanned, %d checked in %s",
		r.Layered, r.FilesScanned, r.FilesChecked, r.Duration.Round(time.Millisecond))
	var err error
	if r.Conforms() {
		_, err = fmt.Fprintf(w, "%s %s\n", ok("Conforms!"), summary)
	} else {
		_, err = fmt.Fprintf(w, "%s %d violations. %s\n", fail("Violations!"), len(r.Violations), summary)
	}
	return err
}

type jsonReport struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	*Report
	DurationMS int64       `json:"duration_ms"`
	ByLayer    []LayerEdge `json:"by_layer"`
}

// WriteJSON writes the report as one JSON document.
func (r *Report) WriteJSON(w io.Writer) error {
	out := jsonReport{
		Type:       "check",
		Status:     "success",
		Report:     r,
		DurationMS: r.Duration.Milliseconds(),
		ByLayer:    r.ByLayer(),
	}
	if !r.Conforms() {
		out.Status = "violations"
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
