// Package mir holds the lowered architecture model.
//
// A ContextMap is produced once by package transform and is never mutated
// afterwards. Every type serializes to JSON and YAML with snake_case field
// names so downstream tools can consume the model without importing Go code.
package mir

// ContextMap is the root of the lowered model.
type ContextMap struct {
	Name            string               `json:"name" yaml:"name"`
	Contexts        []BoundedContext     `json:"contexts" yaml:"contexts"`
	Relations       []Relation           `json:"relations" yaml:"relations"`
	Implementations []Implementation     `json:"implementations" yaml:"implementations"`
	Layered         *LayeredArchitecture `json:"layered,omitempty" yaml:"layered,omitempty"`
	SourceSets      *SourceSets          `json:"source_sets,omitempty" yaml:"source_sets,omitempty"`
	Envs            []Environment        `json:"envs" yaml:"envs"`
	Structs         map[string]Struct    `json:"structs" yaml:"structs"`
	Components      []Component          `json:"components" yaml:"components"`
}

// Context returns the bounded context with the given name.
func (m *ContextMap) Context(name string) (BoundedContext, bool) {
	for _, c := range m.Contexts {
		if c.Name == name {
			return c, true
		}
	}
	return BoundedContext{}, false
}

// BoundedContext is a named model boundary grouping aggregates.
type BoundedContext struct {
	Name         string      `json:"name" yaml:"name"`
	Description  string      `json:"description,omitempty" yaml:"description,omitempty"`
	Aggregates   []Aggregate `json:"aggregates" yaml:"aggregates"`
	DomainEvents []string    `json:"domain_events" yaml:"domain_events"`
}

// Aggregate is a consistency boundary of entities and value objects.
type Aggregate struct {
	Name         string        `json:"name" yaml:"name"`
	Description  string        `json:"description,omitempty" yaml:"description,omitempty"`
	Entities     []Entity      `json:"entities" yaml:"entities"`
	ValueObjects []ValueObject `json:"value_objects" yaml:"value_objects"`
	DomainEvents []string      `json:"domain_events" yaml:"domain_events"`
}

// Root returns the aggregate root entity, if one is marked.
func (a Aggregate) Root() (Entity, bool) {
	for _, e := range a.Entities {
		if e.IsAggregateRoot {
			return e, true
		}
	}
	return Entity{}, false
}

// Field is a typed member of an entity, value object or struct.
type Field struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Initializer string `json:"initializer,omitempty" yaml:"initializer,omitempty"`
}

// Entity is a domain object with identity.
type Entity struct {
	Name            string  `json:"name" yaml:"name"`
	Description     string  `json:"description,omitempty" yaml:"description,omitempty"`
	IsAggregateRoot bool    `json:"is_aggregate_root" yaml:"is_aggregate_root"`
	Identify        *Field  `json:"identify,omitempty" yaml:"identify,omitempty"`
	Fields          []Field `json:"fields" yaml:"fields"`
}

// ValueObject is a domain object without identity.
type ValueObject struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []Field `json:"fields" yaml:"fields"`
}

// Struct is a named field set declared at the top level.
type Struct struct {
	Name   string  `json:"name" yaml:"name"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Component is a free-form named block such as a deployable application.
type Component struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Attrs       []Attr `json:"attrs" yaml:"attrs"`
}

// Attr is one ordered key/value pair of an open-ended block.
type Attr struct {
	Key   string   `json:"key" yaml:"key"`
	Value string   `json:"value" yaml:"value"`
	Items []string `json:"items,omitempty" yaml:"items,omitempty"`
}
