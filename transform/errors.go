package transform

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"

	"github.com/c360studio/archspec/dsl"
)

// ErrInvalidDataSource is wrapped by datasource lowering failures.
var ErrInvalidDataSource = errors.New("invalid datasource")

// LoweringError is the one fatal lowering failure: a layered dependency rule
// that names a layer the same layered block does not declare.
type LoweringError struct {
	Layered string
	Layer   string
	Loc     dsl.Loc
}

func (e *LoweringError) Error() string {
	return fmt.Sprintf("layered %q: dependency references unknown layer %q", e.Layered, e.Layer)
}

// Diagnostic converts the error for rendering with an hcl.DiagnosticWriter.
func (e *LoweringError) Diagnostic(filename, src string) *hcl.Diagnostic {
	rng := dsl.Range(filename, src, e.Loc)
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "Unknown layer",
		Detail:   fmt.Sprintf("The dependency rule in layered %q names layer %q, which is not declared in that block.", e.Layered, e.Layer),
		Subject:  &rng,
	}
}

// WarningKind classifies a non-fatal lowering condition.
type WarningKind string

const (
	WarnUnresolvedReference  WarningKind = "unresolved_reference"
	WarnUnusedAggregate      WarningKind = "unused_aggregate"
	WarnUnknownRelationTag   WarningKind = "unknown_relation_tag"
	WarnCustomHTTPMethod     WarningKind = "custom_http_method"
	WarnUnknownAuthorization WarningKind = "unknown_authorization"
	WarnInvalidDataSource    WarningKind = "invalid_datasource"
	WarnInvalidServer        WarningKind = "invalid_server"
	WarnDuplicateDeclaration WarningKind = "duplicate_declaration"
	WarnIgnoredInclude       WarningKind = "ignored_include"
	WarnSharedLayerPackage   WarningKind = "shared_layer_package"
)

// Warning is a condition lowering tolerated instead of failing on.
type Warning struct {
	Kind    WarningKind
	Subject string
	Message string
	Loc     dsl.Loc
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Subject, w.Message)
}

// Diagnostic converts the warning for rendering with an hcl.DiagnosticWriter.
func (w Warning) Diagnostic(filename, src string) *hcl.Diagnostic {
	rng := dsl.Range(filename, src, w.Loc)
	return &hcl.Diagnostic{
		Severity: hcl.DiagWarning,
		Summary:  string(w.Kind),
		Detail:   fmt.Sprintf("%s: %s", w.Subject, w.Message),
		Subject:  &rng,
	}
}

// Warnings is the ordered list of warnings from one lowering call.
type Warnings []Warning

// OfKind returns the warnings of the given kind.
func (ws Warnings) OfKind(kind WarningKind) Warnings {
	var out Warnings
	for _, w := range ws {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

// Diagnostics converts every warning for rendering.
func (ws Warnings) Diagnostics(filename, src string) hcl.Diagnostics {
	diags := make(hcl.Diagnostics, 0, len(ws))
	for _, w := range ws {
		diags = append(diags, w.Diagnostic(filename, src))
	}
	return diags
}
