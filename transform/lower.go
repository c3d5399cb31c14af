// Package transform lowers parsed declarations into the mir model.
//
// Lowering runs in two phases. The first walks the declarations in file order
// and fills name-keyed accumulators; nothing is resolved yet, so a name can be
// referenced before it is declared. The second reconciles every bare-name
// reference against the accumulators and freezes the result. The output does
// not depend on declaration order.
package transform

import (
	"fmt"
	"sort"

	"github.com/c360studio/archspec/dsl"
	"github.com/c360studio/archspec/mir"
)

// Lower lowers decls into a ContextMap, discarding warnings.
func Lower(decls []dsl.Declaration) (*mir.ContextMap, error) {
	m, _, err := LowerWithWarnings(decls)
	return m, err
}

// LowerWithWarnings lowers decls into a ContextMap and reports every condition
// that was tolerated along the way. The only error is a *LoweringError; on
// error no model is returned.
func LowerWithWarnings(decls []dsl.Declaration) (*mir.ContextMap, Warnings, error) {
	l := newLowerer()
	for _, d := range sourceOrder(decls) {
		if err := l.declare(d); err != nil {
			return nil, nil, err
		}
	}
	m := l.build()
	return m, l.warnings, nil
}

// sourceOrder returns decls sorted by source position. Every "first
// declaration wins" rule therefore means first in the source, whatever order
// the declarations are handed in.
func sourceOrder(decls []dsl.Declaration) []dsl.Declaration {
	out := append([]dsl.Declaration(nil), decls...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Span().Start < out[j].Span().Start })
	return out
}

type lowerer struct {
	name string

	contexts     *ordered[*contextBuilder]
	aggregates   *ordered[*aggregateBuilder]
	entities     *ordered[*dsl.EntityDecl]
	valueObjects *ordered[*dsl.ValueObjectDecl]
	structs      *ordered[*dsl.StructDecl]

	relations       []mir.Relation
	implementations []mir.Implementation
	layered         *mir.LayeredArchitecture
	sourceSets      *mir.SourceSets
	envs            []mir.Environment
	components      []mir.Component

	warnings Warnings
}

func newLowerer() *lowerer {
	return &lowerer{
		contexts:     newOrdered[*contextBuilder](),
		aggregates:   newOrdered[*aggregateBuilder](),
		entities:     newOrdered[*dsl.EntityDecl](),
		valueObjects: newOrdered[*dsl.ValueObjectDecl](),
		structs:      newOrdered[*dsl.StructDecl](),
	}
}

func (l *lowerer) warn(kind WarningKind, subject string, loc dsl.Loc, format string, args ...any) {
	l.warnings = append(l.warnings, Warning{
		Kind:    kind,
		Subject: subject,
		Message: fmt.Sprintf(format, args...),
		Loc:     loc,
	})
}

func (l *lowerer) declare(d dsl.Declaration) error {
	switch decl := d.(type) {
	case *dsl.ContextMapDecl:
		l.declareContextMap(decl)
	case *dsl.BoundedContextDecl:
		l.declareContext(decl)
	case *dsl.AggregateDecl:
		l.declareAggregate(decl)
	case *dsl.EntityDecl:
		if _, ok := l.entities.get(decl.Name); ok {
			l.warn(WarnDuplicateDeclaration, decl.Name, decl.Loc, "entity declared more than once, first declaration wins")
			return nil
		}
		l.entities.put(decl.Name, decl)
	case *dsl.ValueObjectDecl:
		if _, ok := l.valueObjects.get(decl.Name); ok {
			l.warn(WarnDuplicateDeclaration, decl.Name, decl.Loc, "value object declared more than once, first declaration wins")
			return nil
		}
		l.valueObjects.put(decl.Name, decl)
	case *dsl.StructDecl:
		if _, ok := l.structs.get(decl.Name); ok {
			l.warn(WarnDuplicateDeclaration, decl.Name, decl.Loc, "struct declared more than once, first declaration wins")
			return nil
		}
		l.structs.put(decl.Name, decl)
	case *dsl.ImplementationDecl:
		l.implementations = append(l.implementations, l.lowerImplementation(decl))
	case *dsl.LayeredDecl:
		return l.declareLayered(decl)
	case *dsl.SourceSetsDecl:
		l.declareSourceSets(decl)
	case *dsl.EnvDecl:
		l.envs = append(l.envs, l.lowerEnv(decl))
	case *dsl.IncludeDecl:
		l.warn(WarnIgnoredInclude, decl.Path, decl.Loc, "include is not resolved, the file is ignored")
	case *dsl.ComponentDecl:
		l.components = append(l.components, mir.Component{
			Name:        decl.Name,
			Description: decl.Description,
			Attrs:       lowerAttrs(decl.Attributes),
		})
	}
	return nil
}

func (l *lowerer) declareContextMap(decl *dsl.ContextMapDecl) {
	if l.name == "" {
		l.name = decl.Name
	}
	for _, ctx := range decl.Contexts {
		l.declareContext(ctx)
	}
	for _, rel := range decl.Relations {
		l.contextBuilder(rel.Source)
		l.contextBuilder(rel.Target)
		l.relations = append(l.relations, mir.Relation{
			Source:      rel.Source,
			Target:      rel.Target,
			Direction:   lowerDirection(rel.Direction),
			SourceTypes: l.lowerTags(rel.SourceTags, rel.Loc),
			TargetTypes: l.lowerTags(rel.TargetTags, rel.Loc),
		})
	}
}

func lowerDirection(d dsl.RelationDirection) mir.ConnectionDirection {
	switch d {
	case dsl.PositiveDirected:
		return mir.PositiveDirected
	case dsl.NegativeDirected:
		return mir.NegativeDirected
	case dsl.BiDirected:
		return mir.BiDirected
	default:
		return mir.Undirected
	}
}

func (l *lowerer) lowerTags(tags []string, loc dsl.Loc) []mir.ContextPattern {
	out := make([]mir.ContextPattern, 0, len(tags))
	for _, tag := range tags {
		p, ok := mir.ParseContextPattern(tag)
		if !ok {
			l.warn(WarnUnknownRelationTag, tag, loc, "unrecognized relation tag lowered to None")
		}
		out = append(out, p)
	}
	return out
}

func (l *lowerer) declareSourceSets(decl *dsl.SourceSetsDecl) {
	if l.sourceSets != nil {
		l.warn(WarnDuplicateDeclaration, decl.Name, decl.Loc,
			"only one SourceSet declaration is used, %q wins", l.sourceSets.Name)
		return
	}
	ss := &mir.SourceSets{Name: decl.Name, Sets: make([]mir.SourceSet, 0, len(decl.Sets))}
	for _, set := range decl.Sets {
		lowered := mir.SourceSet{Name: set.Name, SrcDirs: []string{}}
		var rest dsl.Attributes
		for _, attr := range set.Attributes {
			switch attr.Key {
			case "parser":
				lowered.Parser = attr.Value.Text
			case "srcDir", "srcDirs":
				lowered.SrcDirs = append(lowered.SrcDirs, attr.Value.Strings()...)
			default:
				rest = append(rest, attr)
			}
		}
		if len(rest) > 0 {
			lowered.Attrs = lowerAttrs(rest)
		}
		ss.Sets = append(ss.Sets, lowered)
	}
	l.sourceSets = ss
}

func lowerAttrs(attrs dsl.Attributes) []mir.Attr {
	out := make([]mir.Attr, 0, len(attrs))
	for _, a := range attrs {
		attr := mir.Attr{Key: a.Key, Value: a.Value.Text}
		if a.Value.Kind == dsl.ValueList {
			attr.Items = a.Value.Strings()
		}
		out = append(out, attr)
	}
	return out
}

func lowerFields(vars []dsl.VariableDefinition) []mir.Field {
	out := make([]mir.Field, 0, len(vars))
	for _, v := range vars {
		out = append(out, lowerField(v))
	}
	return out
}

func lowerField(v dsl.VariableDefinition) mir.Field {
	return mir.Field{Name: v.Name, Type: v.Type, Initializer: v.Initializer}
}

// build runs the reconciliation phase and freezes the accumulators.
func (l *lowerer) build() *mir.ContextMap {
	m := &mir.ContextMap{
		Name:            l.name,
		Contexts:        l.buildContexts(),
		Relations:       l.relations,
		Implementations: l.implementations,
		Layered:         l.layered,
		SourceSets:      l.sourceSets,
		Envs:            l.envs,
		Structs:         make(map[string]mir.Struct, l.structs.len()),
		Components:      l.components,
	}
	if m.Relations == nil {
		m.Relations = []mir.Relation{}
	}
	if m.Implementations == nil {
		m.Implementations = []mir.Implementation{}
	}
	if m.Envs == nil {
		m.Envs = []mir.Environment{}
	}
	if m.Components == nil {
		m.Components = []mir.Component{}
	}
	l.structs.each(func(name string, s *dsl.StructDecl) {
		m.Structs[name] = mir.Struct{Name: name, Fields: lowerFields(s.Fields)}
	})
	sort.Slice(m.Contexts, func(i, j int) bool { return m.Contexts[i].Name < m.Contexts[j].Name })
	return m
}
