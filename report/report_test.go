package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/archspec/guard"
	"github.com/c360studio/archspec/mir"
	"github.com/c360studio/archspec/processor/ast"
)

func init() {
	color.NoColor = true
}

func checked(t *testing.T, files ...*ast.ResolvedFile) *Report {
	t.Helper()
	g, err := guard.New(&mir.LayeredArchitecture{
		Name: "DDD",
		Layers: []mir.Layer{
			{Name: "rest", PackageName: "com.x.rest"},
			{Name: "application", PackageName: "com.x.application"},
			{Name: "domain", PackageName: "com.x.domain"},
		},
		Relations: []mir.LayerRelation{
			{Source: "rest", Target: "application"},
			{Source: "application", Target: "domain"},
		},
	})
	require.NoError(t, err)
	return Check(g, files, time.Unix(1700000000, 0))
}

func violatingFiles() []*ast.ResolvedFile {
	return []*ast.ResolvedFile{
		{Path: "Order.java", Package: "com.x.domain", Imports: []string{"com.x.rest.Foo", "com.x.application.Svc"}},
		{Path: "Line.java", Package: "com.x.domain.model", Imports: []string{"com.x.rest.Bar"}},
		{Path: "Api.java", Package: "com.x.rest", Imports: []string{"com.x.application.Svc"}},
		{Path: "Util.java", Package: "org.other", Imports: []string{"com.x.rest.Foo"}},
	}
}

func TestCheck(t *testing.T) {
	r := checked(t, violatingFiles()...)

	_, err := uuid.Parse(r.RunID)
	assert.NoError(t, err)
	assert.Equal(t, "DDD", r.Layered)
	assert.Equal(t, 4, r.FilesScanned)
	assert.Equal(t, 3, r.FilesChecked)
	assert.False(t, r.Conforms())
	assert.Equal(t, []string{
		"package com.x.domain imported com.x.rest",
		"package com.x.domain imported com.x.application",
		"package com.x.domain.model imported com.x.rest",
	}, r.Lines())

	assert.Equal(t, []LayerEdge{
		{Source: "domain", Target: "application", Count: 1},
		{Source: "domain", Target: "rest", Count: 2},
	}, r.ByLayer())
}

func TestCheck_RunIDsDiffer(t *testing.T) {
	assert.NotEqual(t, checked(t).RunID, checked(t).RunID)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, checked(t, violatingFiles()...).WriteText(&buf))

	out := buf.String()
	assert.Contains(t, out, "✗ package com.x.domain imported com.x.rest (Order.java: com.x.rest.Foo, domain -> rest)\n")
	assert.Contains(t, out, "Violations! 3 violations. DDD: 4 files scanned, 3 checked in")

	buf.Reset()
	require.NoError(t, checked(t, violatingFiles()[2]).WriteText(&buf))
	assert.Contains(t, buf.String(), "Conforms! DDD: 1 files scanned, 1 checked in")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	r := checked(t, violatingFiles()...)
	require.NoError(t, r.WriteJSON(&buf))

	var doc struct {
		Type       string            `json:"type"`
		Status     string            `json:"status"`
		RunID      string            `json:"run_id"`
		Layered    string            `json:"layered"`
		Violations []guard.Violation `json:"violations"`
		ByLayer    []LayerEdge       `json:"by_layer"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "check", doc.Type)
	assert.Equal(t, "violations", doc.Status)
	assert.Equal(t, r.RunID, doc.RunID)
	assert.Equal(t, "DDD", doc.Layered)
	assert.Equal(t, r.Violations, doc.Violations)
	assert.Len(t, doc.ByLayer, 2)

	buf.Reset()
	require.NoError(t, checked(t).WriteJSON(&buf))
	assert.Contains(t, buf.String(), `"status": "success"`)
	assert.Contains(t, buf.String(), `"violations": []`)
}

func TestWriteMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archspec.prom")
	require.NoError(t, checked(t, violatingFiles()...).WriteMetrics(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `archspec_check_files_scanned{layered="DDD"} 4`)
	assert.Contains(t, out, `archspec_check_files_checked{layered="DDD"} 3`)
	assert.Contains(t, out, `archspec_check_violations{layered="DDD",source_layer="domain",target_layer="rest"} 2`)
	assert.Contains(t, out, `archspec_check_conforms{layered="DDD"} 0`)
	assert.Contains(t, out, `archspec_check_last_run_timestamp_seconds{layered="DDD"} 1.7e+09`)
}

func TestWriteMetrics_BadPath(t *testing.T) {
	err := checked(t).WriteMetrics(filepath.Join(t.TempDir(), "missing", "x.prom"))
	assert.Error(t, err)
}
