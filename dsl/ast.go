// Package dsl parses architecture description source text into an ordered
// list of typed declarations.
//
// The parser has no semantic knowledge: it recognizes one declaration kind per
// top-level block and records where every node came from. Name resolution and
// merging happen later, in package transform.
package dsl

// Loc is a half-open byte range [Start, End) into the parsed source.
type Loc struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Node carries the source location shared by every AST node.
type Node struct {
	Loc Loc `json:"loc"`
}

// Span returns the node's source location.
func (n Node) Span() Loc { return n.Loc }

// Declaration is one top-level block of a source file.
type Declaration interface {
	Span() Loc
	declaration()
}

// VariableDefinition is a `name: Type = initializer` binding. Type and
// Initializer are kept as written and never checked or evaluated.
type VariableDefinition struct {
	Node
	Name        string `json:"name"`
	Type        string `json:"type"`
	Initializer string `json:"initializer,omitempty"`
}

// ValueKind classifies an attribute value.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueNumber
	ValueIdent
	ValueList
)

// Value is the right hand side of an attribute.
type Value struct {
	Node
	Kind  ValueKind `json:"kind"`
	Text  string    `json:"text,omitempty"`
	Items []Value   `json:"items,omitempty"`
}

// Strings flattens the value into its textual items. Scalars yield one item.
func (v Value) Strings() []string {
	if v.Kind != ValueList {
		return []string{v.Text}
	}
	out := make([]string, 0, len(v.Items))
	for _, item := range v.Items {
		out = append(out, item.Strings()...)
	}
	return out
}

// Attribute is a `key: value;` or `key = value;` entry.
type Attribute struct {
	Node
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// Attributes is an ordered attribute list.
type Attributes []Attribute

// Get returns the first attribute with the given key.
func (a Attributes) Get(key string) (Attribute, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr, true
		}
	}
	return Attribute{}, false
}

// Text returns the text of the first attribute with the given key, or "".
func (a Attributes) Text(key string) string {
	if attr, ok := a.Get(key); ok {
		return attr.Value.Text
	}
	return ""
}

// ObjectKind tells what a bare domain-object reference points at.
type ObjectKind string

const (
	ObjectAggregate   ObjectKind = "Aggregate"
	ObjectEntity      ObjectKind = "Entity"
	ObjectValueObject ObjectKind = "ValueObject"
	ObjectDomainEvent ObjectKind = "DomainEvent"
)

// UsedDomainObject is a bare name referencing a domain object declared elsewhere.
type UsedDomainObject struct {
	Node
	Kind ObjectKind `json:"kind"`
	Name string     `json:"name"`
}

// RelationDirection is the operator between the two sides of a relation.
type RelationDirection int

const (
	Undirected       RelationDirection = iota // "-" or "--"
	PositiveDirected                          // "->"
	NegativeDirected                          // "<-"
	BiDirected                                // "<->"
)

func (d RelationDirection) String() string {
	switch d {
	case PositiveDirected:
		return "->"
	case NegativeDirected:
		return "<-"
	case BiDirected:
		return "<->"
	default:
		return "--"
	}
}

// ContextRelation connects two bounded contexts inside a ContextMap.
type ContextRelation struct {
	Node
	Source     string            `json:"source"`
	Target     string            `json:"target"`
	Direction  RelationDirection `json:"direction"`
	SourceTags []string          `json:"source_tags"`
	TargetTags []string          `json:"target_tags"`
}

// ContextMapDecl is `ContextMap [Name] { ... }`.
type ContextMapDecl struct {
	Node
	Name      string                `json:"name,omitempty"`
	Contexts  []*BoundedContextDecl `json:"contexts"`
	Relations []*ContextRelation    `json:"relations"`
}

// BoundedContextDecl is `Context Name { ... }`, either top-level or inline in a
// ContextMap. A reference-only inline context (`Context Name;`) has no body.
type BoundedContextDecl struct {
	Node
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	Aggregates        []*AggregateDecl   `json:"aggregates"`
	UsedDomainObjects []UsedDomainObject `json:"used_domain_objects"`
	DomainEvents      []UsedDomainObject `json:"domain_events"`
	Attributes        Attributes         `json:"attributes,omitempty"`
}

// AggregateDecl is `Aggregate Name { ... }`.
type AggregateDecl struct {
	Node
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	Entities          []*EntityDecl      `json:"entities"`
	UsedDomainObjects []UsedDomainObject `json:"used_domain_objects"`
	ValueObjects      []*ValueObjectDecl `json:"value_objects"`
	DomainEvents      []UsedDomainObject `json:"domain_events"`
	Attributes        Attributes         `json:"attributes,omitempty"`
}

// EntityDecl is `Entity Name { ... }`.
type EntityDecl struct {
	Node
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Identify    *VariableDefinition  `json:"identify,omitempty"`
	Fields      []VariableDefinition `json:"fields"`
}

// ValueObjectDecl is `ValueObject Name { ... }`.
type ValueObjectDecl struct {
	Node
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Identify    *VariableDefinition  `json:"identify,omitempty"`
	Fields      []VariableDefinition `json:"fields"`
}

// StructDecl is a top-level `Struct Name { ... }`.
type StructDecl struct {
	Node
	Name   string               `json:"name"`
	Fields []VariableDefinition `json:"fields"`
}

// TargetKind is the kind of domain object an implementation serves.
type TargetKind string

const (
	TargetAggregate TargetKind = "Aggregate"
	TargetEntity    TargetKind = "Entity"
)

// ImplementationTarget is the `aggregate: X;` or `entity: X;` line of an impl block.
type ImplementationTarget struct {
	Node
	Kind TargetKind `json:"kind"`
	Name string     `json:"name"`
}

// AuthorizationDecl keeps the authorization line as written:
// `authorization: Basic user pass;` has Type "Basic" and Args [user pass].
type AuthorizationDecl struct {
	Node
	Type string   `json:"type"`
	Args []string `json:"args,omitempty"`
}

// EndpointDecl is the `endpoint { ... }` block of an impl.
type EndpointDecl struct {
	Node
	Method        string             `json:"method"`
	URI           string             `json:"uri"`
	Authorization *AuthorizationDecl `json:"authorization,omitempty"`
	Request       string             `json:"request,omitempty"`
	Response      string             `json:"response,omitempty"`
	Description   string             `json:"description,omitempty"`
}

// StepDecl is one line of a flow block.
type StepDecl interface {
	Span() Loc
	step()
}

// MethodCallDecl is `via Object::method(args) receive binding: Type;`.
type MethodCallDecl struct {
	Node
	Object string               `json:"object"`
	Method string               `json:"method"`
	Args   []VariableDefinition `json:"args"`
	Return *VariableDefinition  `json:"return,omitempty"`
}

// MessageDecl is `via From send Payload to "topic";`.
type MessageDecl struct {
	Node
	From    string `json:"from"`
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}

func (*MethodCallDecl) step() {}
func (*MessageDecl) step()    {}

// FlowDecl is the ordered `flow { ... }` narrative of an impl.
type FlowDecl struct {
	Node
	Steps []StepDecl `json:"steps"`
}

// ImplementationDecl is `impl Name { ... }`.
type ImplementationDecl struct {
	Node
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Target      *ImplementationTarget `json:"target,omitempty"`
	Endpoint    *EndpointDecl         `json:"endpoint,omitempty"`
	Flow        *FlowDecl             `json:"flow,omitempty"`
	Attributes  Attributes            `json:"attributes,omitempty"`
}

// LayerDecl is `layer name { package: "..."; }`.
type LayerDecl struct {
	Node
	Name        string `json:"name"`
	Package     string `json:"package"`
	Description string `json:"description,omitempty"`
}

// LayerDependency says Source is allowed to depend on Target.
type LayerDependency struct {
	Node
	Source string `json:"source"`
	Target string `json:"target"`
}

// LayeredDecl is `layered Name { dependency { ... } layer ... }`.
type LayeredDecl struct {
	Node
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	Layers       []*LayerDecl       `json:"layers"`
	Dependencies []*LayerDependency `json:"dependencies"`
}

// SourceSetDecl is one named block inside a SourceSet declaration.
type SourceSetDecl struct {
	Node
	Name       string     `json:"name"`
	Attributes Attributes `json:"attributes"`
}

// SourceSetsDecl is `SourceSet Name { name { ... } ... }`.
type SourceSetsDecl struct {
	Node
	Name string           `json:"name"`
	Sets []*SourceSetDecl `json:"sets"`
}

// DatasourceDecl is the `datasource { ... }` block of an env. Known keys are
// lifted into fields; anything else stays in Extra.
type DatasourceDecl struct {
	Node
	URL      string     `json:"url,omitempty"`
	Driver   string     `json:"driver,omitempty"`
	Host     string     `json:"host,omitempty"`
	Port     string     `json:"port,omitempty"`
	Username string     `json:"username,omitempty"`
	Password string     `json:"password,omitempty"`
	Database string     `json:"database,omitempty"`
	Extra    Attributes `json:"extra,omitempty"`
}

// ServerDecl is the `server { port: 8080; }` block of an env.
type ServerDecl struct {
	Node
	Port       string     `json:"port,omitempty"`
	Attributes Attributes `json:"attributes,omitempty"`
}

// CustomDecl is any other named block inside an env, e.g. `kafka { ... }`.
type CustomDecl struct {
	Node
	Name       string     `json:"name"`
	Attributes Attributes `json:"attributes"`
}

// EnvDecl is `env Name { ... }`.
type EnvDecl struct {
	Node
	Name       string          `json:"name"`
	Datasource *DatasourceDecl `json:"datasource,omitempty"`
	Server     *ServerDecl     `json:"server,omitempty"`
	Customs    []*CustomDecl   `json:"customs"`
}

// IncludeDecl is `include "path"`.
type IncludeDecl struct {
	Node
	Path string `json:"path"`
}

// ComponentDecl is `Component Name { ... }`.
type ComponentDecl struct {
	Node
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Attributes  Attributes `json:"attributes"`
}

func (*ContextMapDecl) declaration()     {}
func (*BoundedContextDecl) declaration() {}
func (*AggregateDecl) declaration()      {}
func (*EntityDecl) declaration()         {}
func (*ValueObjectDecl) declaration()    {}
func (*StructDecl) declaration()         {}
func (*ImplementationDecl) declaration() {}
func (*LayeredDecl) declaration()        {}
func (*SourceSetsDecl) declaration()     {}
func (*EnvDecl) declaration()            {}
func (*IncludeDecl) declaration()        {}
func (*ComponentDecl) declaration()      {}
