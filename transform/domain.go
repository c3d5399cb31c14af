package transform

import (
	"sort"

	"github.com/c360studio/archspec/dsl"
	"github.com/c360studio/archspec/mir"
)

type contextBuilder struct {
	name        string
	description string
	aggregates  *ordered[*aggregateBuilder]
	events      []string
}

// aggregateBuilder accumulates an aggregate across declarations. A builder
// created from a bare `Aggregate X;` reference is a placeholder until a body
// for X is merged into it.
type aggregateBuilder struct {
	name         string
	description  string
	loc          dsl.Loc
	placeholder  bool
	entities     *ordered[*memberSlot]
	valueObjects *ordered[*memberSlot]
	events       []string
}

// memberSlot holds an entity or value object inside an aggregate. decl is nil
// while the member is only a bare-name reference.
type memberSlot struct {
	name string
	loc  dsl.Loc
	decl *dsl.EntityDecl
}

func newAggregateBuilder(name string, loc dsl.Loc, placeholder bool) *aggregateBuilder {
	return &aggregateBuilder{
		name:         name,
		loc:          loc,
		placeholder:  placeholder,
		entities:     newOrdered[*memberSlot](),
		valueObjects: newOrdered[*memberSlot](),
	}
}

func (l *lowerer) contextBuilder(name string) *contextBuilder {
	if b, ok := l.contexts.get(name); ok {
		return b
	}
	b := &contextBuilder{name: name, aggregates: newOrdered[*aggregateBuilder]()}
	l.contexts.put(name, b)
	return b
}

func (l *lowerer) declareContext(decl *dsl.BoundedContextDecl) {
	b := l.contextBuilder(decl.Name)
	if b.description == "" {
		b.description = decl.Description
	}
	for _, ref := range decl.UsedDomainObjects {
		if _, ok := b.aggregates.get(ref.Name); !ok {
			b.aggregates.put(ref.Name, newAggregateBuilder(ref.Name, ref.Loc, true))
		}
	}
	for _, agg := range decl.Aggregates {
		mergeAggregate(b.aggregates, aggregateFromDecl(agg))
	}
	b.events = appendUnique(b.events, eventNames(decl.DomainEvents)...)
}

func (l *lowerer) declareAggregate(decl *dsl.AggregateDecl) {
	mergeAggregate(l.aggregates, aggregateFromDecl(decl))
}

func aggregateFromDecl(decl *dsl.AggregateDecl) *aggregateBuilder {
	b := newAggregateBuilder(decl.Name, decl.Loc, false)
	b.description = decl.Description
	for _, ref := range decl.UsedDomainObjects {
		slots := b.entities
		if ref.Kind == dsl.ObjectValueObject {
			slots = b.valueObjects
		}
		if _, ok := slots.get(ref.Name); !ok {
			slots.put(ref.Name, &memberSlot{name: ref.Name, loc: ref.Loc})
		}
	}
	for _, e := range decl.Entities {
		putMember(b.entities, &memberSlot{name: e.Name, loc: e.Loc, decl: e})
	}
	for _, vo := range decl.ValueObjects {
		putMember(b.valueObjects, &memberSlot{name: vo.Name, loc: vo.Loc, decl: (*dsl.EntityDecl)(vo)})
	}
	b.events = appendUnique(b.events, eventNames(decl.DomainEvents)...)
	return b
}

// putMember stores s unless a full declaration of the same name is already
// present. A full declaration replaces a bare reference in place.
func putMember(slots *ordered[*memberSlot], s *memberSlot) {
	if existing, ok := slots.get(s.name); ok && (existing.decl != nil || s.decl == nil) {
		return
	}
	slots.put(s.name, s)
}

// mergeAggregate merges next into the accumulator. Members are unioned by
// name; the first description wins.
func mergeAggregate(acc *ordered[*aggregateBuilder], next *aggregateBuilder) {
	existing, ok := acc.get(next.name)
	if !ok {
		acc.put(next.name, next)
		return
	}
	if existing.placeholder && !next.placeholder {
		existing.placeholder = false
		existing.loc = next.loc
	}
	if existing.description == "" {
		existing.description = next.description
	}
	next.entities.each(func(_ string, s *memberSlot) { putMember(existing.entities, s) })
	next.valueObjects.each(func(_ string, s *memberSlot) { putMember(existing.valueObjects, s) })
	existing.events = appendUnique(existing.events, next.events...)
}

// buildContexts is the reconciliation pass. Members merged from several
// declarations come out sorted by name, so their order never depends on the
// order the declarations were lowered in. Every aggregate reference is
// looked up by name: a top-level Aggregate declaration wins over one declared
// inline under the context, and bare entity and value object references are
// replaced by their top-level declarations.
func (l *lowerer) buildContexts() []mir.BoundedContext {
	used := make(map[string]bool)
	contexts := make([]mir.BoundedContext, 0, l.contexts.len())

	l.contexts.each(func(_ string, cb *contextBuilder) {
		ctx := mir.BoundedContext{
			Name:         cb.name,
			Description:  cb.description,
			Aggregates:   make([]mir.Aggregate, 0, cb.aggregates.len()),
			DomainEvents: sortedNames(cb.events),
		}
		cb.aggregates.each(func(name string, inline *aggregateBuilder) {
			used[name] = true
			if top, ok := l.aggregates.get(name); ok {
				ctx.Aggregates = append(ctx.Aggregates, l.resolveAggregate(top))
				return
			}
			if inline.placeholder {
				l.warn(WarnUnresolvedReference, name, inline.loc,
					"aggregate referenced by context %q is never declared", cb.name)
			}
			ctx.Aggregates = append(ctx.Aggregates, l.resolveAggregate(inline))
		})
		sort.Slice(ctx.Aggregates, func(i, j int) bool { return ctx.Aggregates[i].Name < ctx.Aggregates[j].Name })
		contexts = append(contexts, ctx)
	})

	l.aggregates.each(func(name string, b *aggregateBuilder) {
		if !used[name] {
			l.warn(WarnUnusedAggregate, name, b.loc, "aggregate is not part of any context")
		}
	})
	return contexts
}

func (l *lowerer) resolveAggregate(b *aggregateBuilder) mir.Aggregate {
	agg := mir.Aggregate{
		Name:         b.name,
		Description:  b.description,
		Entities:     make([]mir.Entity, 0, b.entities.len()),
		ValueObjects: make([]mir.ValueObject, 0, b.valueObjects.len()),
		DomainEvents: sortedNames(b.events),
	}
	b.entities.each(func(name string, s *memberSlot) {
		decl := s.decl
		if decl == nil {
			decl = l.lookupEntity(name)
		}
		if decl == nil {
			l.warn(WarnUnresolvedReference, name, s.loc, "entity referenced by aggregate %q is never declared", b.name)
			decl = &dsl.EntityDecl{Name: name}
		}
		e := lowerEntity(decl)
		e.IsAggregateRoot = name == b.name
		agg.Entities = append(agg.Entities, e)
	})
	b.valueObjects.each(func(name string, s *memberSlot) {
		decl := s.decl
		if decl == nil {
			if vo, ok := l.valueObjects.get(name); ok {
				decl = (*dsl.EntityDecl)(vo)
			}
		}
		if decl == nil {
			l.warn(WarnUnresolvedReference, name, s.loc, "value object referenced by aggregate %q is never declared", b.name)
			decl = &dsl.EntityDecl{Name: name}
		}
		agg.ValueObjects = append(agg.ValueObjects, mir.ValueObject{
			Name:        decl.Name,
			Description: decl.Description,
			Fields:      lowerFields(decl.Fields),
		})
	})
	sort.Slice(agg.Entities, func(i, j int) bool { return agg.Entities[i].Name < agg.Entities[j].Name })
	sort.Slice(agg.ValueObjects, func(i, j int) bool { return agg.ValueObjects[i].Name < agg.ValueObjects[j].Name })
	return agg
}

// lookupEntity finds a top-level declaration for name. An Entity declaration
// wins over a Struct of the same name.
func (l *lowerer) lookupEntity(name string) *dsl.EntityDecl {
	if e, ok := l.entities.get(name); ok {
		return e
	}
	if s, ok := l.structs.get(name); ok {
		return &dsl.EntityDecl{Node: s.Node, Name: s.Name, Fields: s.Fields}
	}
	return nil
}

func lowerEntity(decl *dsl.EntityDecl) mir.Entity {
	e := mir.Entity{
		Name:        decl.Name,
		Description: decl.Description,
		Fields:      lowerFields(decl.Fields),
	}
	if decl.Identify != nil {
		id := lowerField(*decl.Identify)
		e.Identify = &id
	}
	return e
}

func eventNames(refs []dsl.UsedDomainObject) []string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return names
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}

// sortedNames returns a sorted copy of names, never nil.
func sortedNames(names []string) []string {
	out := append([]string{}, names...)
	sort.Strings(out)
	return out
}
