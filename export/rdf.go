package export

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/c360studio/archspec/mir"
)

const (
	// Namespace is the vocabulary of archspec classes and predicates.
	Namespace = "https://archspec.dev/ns#"

	// ModelNamespace prefixes the IRIs of model elements.
	ModelNamespace = "https://archspec.dev/model/"

	rdfType   = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	xsdPrefix = "http://www.w3.org/2001/XMLSchema#"
)

// IRI is an RDF resource reference. Strings are always written as literals.
type IRI string

// Classes.
const (
	ClassContextMap     IRI = Namespace + "ContextMap"
	ClassBoundedContext IRI = Namespace + "BoundedContext"
	ClassAggregate      IRI = Namespace + "Aggregate"
	ClassEntity         IRI = Namespace + "Entity"
	ClassValueObject    IRI = Namespace + "ValueObject"
	ClassRelation       IRI = Namespace + "ContextRelation"
	ClassImplementation IRI = Namespace + "Implementation"
	ClassLayered        IRI = Namespace + "LayeredArchitecture"
	ClassLayer          IRI = Namespace + "Layer"
)

// Predicates.
const (
	PredName          IRI = Namespace + "name"
	PredDescription   IRI = "http://purl.org/dc/terms/description"
	PredPartOf        IRI = Namespace + "partOf"
	PredAggregateRoot IRI = Namespace + "aggregateRoot"
	PredField         IRI = Namespace + "field"
	PredDomainEvent   IRI = Namespace + "domainEvent"
	PredSource        IRI = Namespace + "source"
	PredTarget        IRI = Namespace + "target"
	PredDirection     IRI = Namespace + "direction"
	PredSourcePattern IRI = Namespace + "sourcePattern"
	PredTargetPattern IRI = Namespace + "targetPattern"
	PredHTTPMethod    IRI = Namespace + "httpMethod"
	PredHTTPPath      IRI = Namespace + "httpPath"
	PredServes        IRI = Namespace + "serves"
	PredPackage       IRI = Namespace + "package"
	PredDependsOn     IRI = Namespace + "dependsOn"
)

// Triple is a predicate-object pair of a node. Object is an IRI, string,
// int or bool.
type Triple struct {
	Predicate IRI
	Object    any
}

// Node is one subject of the exported graph.
type Node struct {
	IRI     IRI
	Type    IRI
	Triples []Triple
}

func (n *Node) add(pred IRI, obj any) {
	if s, ok := obj.(string); ok && s == "" {
		return
	}
	n.Triples = append(n.Triples, Triple{Predicate: pred, Object: obj})
}

// RDFExporter describes a ContextMap as RDF.
type RDFExporter struct {
	nodes    []*Node
	prefixes map[string]string
}

// NewRDFExporter builds the graph for model.
func NewRDFExporter(model *mir.ContextMap) *RDFExporter {
	e := &RDFExporter{prefixes: defaultPrefixes()}
	e.build(model)
	return e
}

// defaultPrefixes returns the namespace prefixes for RDF export.
func defaultPrefixes() map[string]string {
	return map[string]string{
		"rdf":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
		"xsd":  xsdPrefix,
		"dc":   "http://purl.org/dc/terms/",
		"arch": Namespace,
	}
}

// Nodes returns the graph nodes in model order.
func (e *RDFExporter) Nodes() []*Node {
	return e.nodes
}

func (e *RDFExporter) node(iri, typ IRI) *Node {
	n := &Node{IRI: iri, Type: typ}
	e.nodes = append(e.nodes, n)
	return n
}

// modelIRI joins escaped path segments under ModelNamespace.
func modelIRI(segments ...string) IRI {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return IRI(ModelNamespace + strings.Join(escaped, "/"))
}

func (e *RDFExporter) build(model *mir.ContextMap) {
	mapIRI := modelIRI("map", model.Name)
	m := e.node(mapIRI, ClassContextMap)
	m.add(PredName, model.Name)

	for _, c := range model.Contexts {
		ctxIRI := modelIRI("context", c.Name)
		cn := e.node(ctxIRI, ClassBoundedContext)
		cn.add(PredName, c.Name)
		cn.add(PredDescription, c.Description)
		cn.add(PredPartOf, mapIRI)
		for _, ev := range c.DomainEvents {
			cn.add(PredDomainEvent, ev)
		}

		for _, a := range c.Aggregates {
			aggIRI := modelIRI("context", c.Name, "aggregate", a.Name)
			an := e.node(aggIRI, ClassAggregate)
			an.add(PredName, a.Name)
			an.add(PredDescription, a.Description)
			an.add(PredPartOf, ctxIRI)
			for _, ev := range a.DomainEvents {
				an.add(PredDomainEvent, ev)
			}

			for _, ent := range a.Entities {
				entIRI := modelIRI("context", c.Name, "aggregate", a.Name, "entity", ent.Name)
				if ent.IsAggregateRoot {
					an.add(PredAggregateRoot, entIRI)
				}
				en := e.node(entIRI, ClassEntity)
				en.add(PredName, ent.Name)
				en.add(PredDescription, ent.Description)
				en.add(PredPartOf, aggIRI)
				if ent.Identify != nil {
					en.add(PredField, fieldText(*ent.Identify))
				}
				for _, f := range ent.Fields {
					en.add(PredField, fieldText(f))
				}
			}

			for _, vo := range a.ValueObjects {
				vn := e.node(modelIRI("context", c.Name, "aggregate", a.Name, "value_object", vo.Name), ClassValueObject)
				vn.add(PredName, vo.Name)
				vn.add(PredDescription, vo.Description)
				vn.add(PredPartOf, aggIRI)
				for _, f := range vo.Fields {
					vn.add(PredField, fieldText(f))
				}
			}
		}
	}

	for i, r := range model.Relations {
		rn := e.node(modelIRI("relation", fmt.Sprint(i)), ClassRelation)
		rn.add(PredPartOf, mapIRI)
		rn.add(PredSource, modelIRI("context", r.Source))
		rn.add(PredTarget, modelIRI("context", r.Target))
		rn.add(PredDirection, string(r.Direction))
		for _, p := range r.SourceTypes {
			rn.add(PredSourcePattern, string(p))
		}
		for _, p := range r.TargetTypes {
			rn.add(PredTargetPattern, string(p))
		}
	}

	for _, impl := range model.Implementations {
		in := e.node(modelIRI("implementation", impl.Name), ClassImplementation)
		in.add(PredName, impl.Name)
		in.add(PredDescription, impl.Description)
		if impl.Target != nil {
			in.add(PredServes, fmt.Sprintf("%s %s", impl.Target.Kind, impl.Target.Name))
		}
		in.add(PredHTTPMethod, string(impl.Endpoint.Method))
		in.add(PredHTTPPath, impl.Endpoint.Path)
	}

	if l := model.Layered; l != nil {
		layeredIRI := modelIRI("layered", l.Name)
		ln := e.node(layeredIRI, ClassLayered)
		ln.add(PredName, l.Name)
		ln.add(PredDescription, l.Description)

		layerNodes := make(map[string]*Node, len(l.Layers))
		for _, layer := range l.Layers {
			n := e.node(modelIRI("layered", l.Name, "layer", layer.Name), ClassLayer)
			n.add(PredName, layer.Name)
			n.add(PredPackage, layer.PackageName)
			n.add(PredDescription, layer.Description)
			n.add(PredPartOf, layeredIRI)
			layerNodes[layer.Name] = n
		}
		for _, rel := range l.Relations {
			if n, ok := layerNodes[rel.Source]; ok {
				n.add(PredDependsOn, modelIRI("layered", l.Name, "layer", rel.Target))
			}
		}
	}
}

func fieldText(f mir.Field) string {
	if f.Initializer != "" {
		return fmt.Sprintf("%s: %s = %s", f.Name, f.Type, f.Initializer)
	}
	return fmt.Sprintf("%s: %s", f.Name, f.Type)
}

// Export serializes the graph to the specified RDF format.
func (e *RDFExporter) Export(format Format) (string, error) {
	switch format {
	case FormatTurtle:
		return e.toTurtle(), nil
	case FormatNTriples:
		return e.toNTriples(), nil
	default:
		return "", fmt.Errorf("unsupported RDF format: %s", format)
	}
}

// toTurtle serializes to Turtle format.
func (e *RDFExporter) toTurtle() string {
	w := NewTurtleWriter()
	for prefix, iri := range e.prefixes {
		w.SetPrefix(prefix, iri)
	}
	w.WritePrefixes()

	for _, n := range e.nodes {
		w.WriteSubject(n.IRI)
		w.WriteType(n.Type, len(n.Triples) == 0)
		for i, t := range n.Triples {
			w.WritePredicate(t.Predicate, t.Object, i == len(n.Triples)-1)
		}
		w.WriteBlank()
	}

	return w.String()
}

// toNTriples serializes to N-Triples format.
func (e *RDFExporter) toNTriples() string {
	w := NewNTriplesWriter()
	for _, n := range e.nodes {
		w.WriteTypeTriple(n.IRI, n.Type)
		for _, t := range n.Triples {
			w.WriteTriple(n.IRI, t.Predicate, t.Object)
		}
	}
	return w.String()
}

// formatObject formats an object value for Turtle output.
func formatObject(obj any) string {
	switch v := obj.(type) {
	case IRI:
		return fmt.Sprintf("<%s>", v)
	case string:
		return fmt.Sprintf("\"%s\"", escapeString(v))
	case int:
		return fmt.Sprintf("\"%d\"^^xsd:integer", v)
	case bool:
		return fmt.Sprintf("\"%t\"^^xsd:boolean", v)
	default:
		return fmt.Sprintf("\"%v\"", v)
	}
}

// formatObjectNTriples formats an object value for N-Triples output.
func formatObjectNTriples(obj any) string {
	switch v := obj.(type) {
	case IRI:
		return fmt.Sprintf("<%s>", v)
	case string:
		return fmt.Sprintf("\"%s\"", escapeString(v))
	case int:
		return fmt.Sprintf("\"%d\"^^<%sinteger>", v, xsdPrefix)
	case bool:
		return fmt.Sprintf("\"%t\"^^<%sboolean>", v, xsdPrefix)
	default:
		return fmt.Sprintf("\"%v\"", v)
	}
}

// escapeString escapes special characters in strings for RDF serialization.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}
