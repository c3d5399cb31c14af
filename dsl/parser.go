package dsl

import (
	"strings"
)

// Parse parses src into its top-level declarations, in source order.
//
// Parsing stops at the first grammar violation and returns a *SyntaxError;
// there is no error recovery and no partial result.
func Parse(src string) ([]Declaration, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	return p.parseFile()
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) at(kind tokenKind) bool { return p.peek().kind == kind }

func (p *parser) atKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == kw
}

// atAttribute reports whether the next tokens start a `key: value` or `key = value` entry.
func (p *parser) atAttribute() bool {
	if !p.at(tokIdent) {
		return false
	}
	k := p.peekAt(1).kind
	return k == tokColon || k == tokAssign
}

// atBlock reports whether the next tokens are `name {`.
func (p *parser) atBlock() bool {
	return p.at(tokIdent) && p.peekAt(1).kind == tokLBrace
}

func (p *parser) lastEnd() int {
	if p.pos == 0 {
		return 0
	}
	return p.toks[p.pos-1].end
}

func (p *parser) node(start int) Node {
	return Node{Loc: Loc{Start: start, End: p.lastEnd()}}
}

func (p *parser) fail(rule, expected string) error {
	t := p.peek()
	return newSyntaxError(p.src, rule, t.start, t.end-t.start, t.describe(), expected)
}

func (p *parser) expect(rule string, kind tokenKind) (token, error) {
	if !p.at(kind) {
		return token{}, p.fail(rule, kind.String())
	}
	return p.next(), nil
}

func (p *parser) expectKeyword(rule, kw string) (token, error) {
	if !p.atKeyword(kw) {
		return token{}, p.fail(rule, "'"+kw+"'")
	}
	return p.next(), nil
}

// expectName accepts an identifier or a string literal.
func (p *parser) expectName(rule string) (token, error) {
	if p.at(tokIdent) || p.at(tokString) {
		return p.next(), nil
	}
	return token{}, p.fail(rule, "a name")
}

func (p *parser) optSemicolon() {
	if p.at(tokSemicolon) {
		p.next()
	}
}

// skipSeparators consumes stray ';' and ',' between block members.
func (p *parser) skipSeparators() bool {
	if p.at(tokSemicolon) || p.at(tokComma) {
		p.next()
		return true
	}
	return false
}

func toDecl[T Declaration](d T, err error) (Declaration, error) {
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (p *parser) parseFile() ([]Declaration, error) {
	decls := make([]Declaration, 0)
	for {
		p.skipSeparators()
		if p.at(tokEOF) {
			return decls, nil
		}
		d, err := p.parseDeclaration()
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
}

func (p *parser) parseDeclaration() (Declaration, error) {
	t := p.peek()
	if t.kind == tokIdent {
		switch t.text {
		case "ContextMap":
			return toDecl(p.parseContextMap())
		case "Context":
			return toDecl(p.parseContext())
		case "Aggregate":
			return toDecl(p.parseAggregate())
		case "Entity":
			return toDecl(p.parseEntity())
		case "ValueObject":
			return toDecl(p.parseValueObject())
		case "Struct":
			return toDecl(p.parseStruct())
		case "impl":
			return toDecl(p.parseImplementation())
		case "layered":
			return toDecl(p.parseLayered())
		case "SourceSet":
			return toDecl(p.parseSourceSets())
		case "env":
			return toDecl(p.parseEnv())
		case "include":
			return toDecl(p.parseInclude())
		case "Component":
			return toDecl(p.parseComponent())
		}
	}
	return nil, p.fail("declaration", "one of ContextMap, Context, Aggregate, Entity, ValueObject, "+
		"Struct, impl, layered, SourceSet, env, include, Component")
}

func (p *parser) parseContextMap() (*ContextMapDecl, error) {
	start := p.next().start
	cm := &ContextMapDecl{
		Contexts:  []*BoundedContextDecl{},
		Relations: []*ContextRelation{},
	}
	if p.at(tokIdent) {
		cm.Name = p.next().text
	}
	if _, err := p.expect("context_map", tokLBrace); err != nil {
		return nil, err
	}
	for !p.at(tokRBrace) {
		switch {
		case p.skipSeparators():
		case p.atKeyword("Context") && p.peekAt(1).kind == tokIdent:
			ctx, err := p.parseContext()
			if err != nil {
				return nil, err
			}
			cm.Contexts = append(cm.Contexts, ctx)
		case p.at(tokIdent) || p.at(tokLBracket):
			rel, err := p.parseRelation()
			if err != nil {
				return nil, err
			}
			cm.Relations = append(cm.Relations, rel)
		default:
			return nil, p.fail("context_map", "a context, a relation or '}'")
		}
	}
	p.next()
	cm.Node = p.node(start)
	return cm, nil
}

// parseRelation parses `[tags] A [tags] op [tags] B [tags]`. A tag list belongs
// to the identifier it is adjacent to, whichever side of it the list is on.
func (p *parser) parseRelation() (*ContextRelation, error) {
	start := p.peek().start
	rel := &ContextRelation{SourceTags: []string{}, TargetTags: []string{}}

	var err error
	rel.Source, rel.SourceTags, err = p.parseRelationSide()
	if err != nil {
		return nil, err
	}

	switch p.peek().kind {
	case tokArrowRight:
		rel.Direction = PositiveDirected
	case tokArrowLeft:
		rel.Direction = NegativeDirected
	case tokArrowBoth:
		rel.Direction = BiDirected
	case tokDash, tokDoubleDash:
		rel.Direction = Undirected
	default:
		return nil, p.fail("relation", "one of '->', '<-', '<->', '-', '--'")
	}
	p.next()

	rel.Target, rel.TargetTags, err = p.parseRelationSide()
	if err != nil {
		return nil, err
	}
	p.optSemicolon()
	rel.Node = p.node(start)
	return rel, nil
}

func (p *parser) parseRelationSide() (string, []string, error) {
	tags := []string{}
	leading, err := p.parseTags()
	if err != nil {
		return "", nil, err
	}
	name, err := p.expect("relation", tokIdent)
	if err != nil {
		return "", nil, err
	}
	trailing, err := p.parseTags()
	if err != nil {
		return "", nil, err
	}
	tags = append(tags, leading...)
	tags = append(tags, trailing...)
	return name.text, tags, nil
}

// parseTags parses an optional `[a, b]` list. Commas are optional.
func (p *parser) parseTags() ([]string, error) {
	if !p.at(tokLBracket) {
		return nil, nil
	}
	p.next()
	var tags []string
	for !p.at(tokRBracket) {
		switch {
		case p.at(tokComma):
			p.next()
		case p.at(tokIdent) || p.at(tokString):
			tags = append(tags, p.next().text)
		default:
			return nil, p.fail("relation", "a relation tag or ']'")
		}
	}
	p.next()
	return tags, nil
}

func (p *parser) parseContext() (*BoundedContextDecl, error) {
	start := p.next().start
	name, err := p.expect("context", tokIdent)
	if err != nil {
		return nil, err
	}
	ctx := &BoundedContextDecl{
		Name:              name.text,
		Aggregates:        []*AggregateDecl{},
		UsedDomainObjects: []UsedDomainObject{},
		DomainEvents:      []UsedDomainObject{},
	}
	if !p.at(tokLBrace) {
		p.optSemicolon()
		ctx.Node = p.node(start)
		return ctx, nil
	}
	p.next()

	for !p.at(tokRBrace) {
		switch {
		case p.skipSeparators():
		case p.at(tokDocString):
			ctx.Description = p.next().text
		case p.atKeyword("Aggregate") && p.peekAt(1).kind == tokIdent:
			aggStart := p.next().start
			first := p.next()
			if p.at(tokLBrace) {
				agg, err := p.parseAggregateBody(aggStart, first)
				if err != nil {
					return nil, err
				}
				ctx.Aggregates = append(ctx.Aggregates, agg)
				continue
			}
			refs, err := p.parseRefs("context", ObjectAggregate, first)
			if err != nil {
				return nil, err
			}
			ctx.UsedDomainObjects = append(ctx.UsedDomainObjects, refs...)
		case p.atKeyword("DomainEvent") && p.peekAt(1).kind == tokIdent:
			p.next()
			refs, err := p.parseRefs("context", ObjectDomainEvent, p.next())
			if err != nil {
				return nil, err
			}
			ctx.DomainEvents = append(ctx.DomainEvents, refs...)
		case p.atAttribute():
			attr, err := p.parseAttribute("context")
			if err != nil {
				return nil, err
			}
			ctx.Attributes = append(ctx.Attributes, attr)
		default:
			return nil, p.fail("context", "Aggregate, DomainEvent, an attribute or '}'")
		}
	}
	p.next()
	ctx.Node = p.node(start)
	return ctx, nil
}

// parseRefs parses the rest of `first, second, third;` after the first name
// has been consumed.
func (p *parser) parseRefs(rule string, kind ObjectKind, first token) ([]UsedDomainObject, error) {
	refs := []UsedDomainObject{{
		Node: Node{Loc: Loc{Start: first.start, End: first.end}},
		Kind: kind,
		Name: first.text,
	}}
	for p.at(tokComma) {
		p.next()
		t, err := p.expect(rule, tokIdent)
		if err != nil {
			return nil, err
		}
		refs = append(refs, UsedDomainObject{
			Node: Node{Loc: Loc{Start: t.start, End: t.end}},
			Kind: kind,
			Name: t.text,
		})
	}
	p.optSemicolon()
	return refs, nil
}

func (p *parser) parseAggregate() (*AggregateDecl, error) {
	start := p.next().start
	name, err := p.expect("aggregate", tokIdent)
	if err != nil {
		return nil, err
	}
	if !p.at(tokLBrace) {
		p.optSemicolon()
		return &AggregateDecl{
			Node:              p.node(start),
			Name:              name.text,
			Entities:          []*EntityDecl{},
			UsedDomainObjects: []UsedDomainObject{},
			ValueObjects:      []*ValueObjectDecl{},
			DomainEvents:      []UsedDomainObject{},
		}, nil
	}
	return p.parseAggregateBody(start, name)
}

func (p *parser) parseAggregateBody(start int, name token) (*AggregateDecl, error) {
	if _, err := p.expect("aggregate", tokLBrace); err != nil {
		return nil, err
	}
	agg := &AggregateDecl{
		Name:              name.text,
		Entities:          []*EntityDecl{},
		UsedDomainObjects: []UsedDomainObject{},
		ValueObjects:      []*ValueObjectDecl{},
		DomainEvents:      []UsedDomainObject{},
	}

	for !p.at(tokRBrace) {
		switch {
		case p.skipSeparators():
		case p.at(tokDocString):
			agg.Description = p.next().text
		case p.atKeyword("Entity") && p.peekAt(1).kind == tokIdent:
			memberStart := p.next().start
			first := p.next()
			if p.at(tokLBrace) {
				entity, err := p.parseEntityBody(memberStart, first)
				if err != nil {
					return nil, err
				}
				agg.Entities = append(agg.Entities, entity)
				continue
			}
			refs, err := p.parseRefs("aggregate", ObjectEntity, first)
			if err != nil {
				return nil, err
			}
			agg.UsedDomainObjects = append(agg.UsedDomainObjects, refs...)
		case p.atKeyword("ValueObject") && p.peekAt(1).kind == tokIdent:
			memberStart := p.next().start
			first := p.next()
			if p.at(tokLBrace) {
				entity, err := p.parseEntityBody(memberStart, first)
				if err != nil {
					return nil, err
				}
				agg.ValueObjects = append(agg.ValueObjects, (*ValueObjectDecl)(entity))
				continue
			}
			refs, err := p.parseRefs("aggregate", ObjectValueObject, first)
			if err != nil {
				return nil, err
			}
			agg.UsedDomainObjects = append(agg.UsedDomainObjects, refs...)
		case p.atKeyword("DomainEvent") && p.peekAt(1).kind == tokIdent:
			p.next()
			refs, err := p.parseRefs("aggregate", ObjectDomainEvent, p.next())
			if err != nil {
				return nil, err
			}
			agg.DomainEvents = append(agg.DomainEvents, refs...)
		case p.atAttribute():
			attr, err := p.parseAttribute("aggregate")
			if err != nil {
				return nil, err
			}
			agg.Attributes = append(agg.Attributes, attr)
		default:
			return nil, p.fail("aggregate", "Entity, ValueObject, DomainEvent, an attribute or '}'")
		}
	}
	p.next()
	agg.Node = p.node(start)
	return agg, nil
}

func (p *parser) parseEntity() (*EntityDecl, error) {
	start := p.next().start
	name, err := p.expect("entity", tokIdent)
	if err != nil {
		return nil, err
	}
	return p.parseEntityBody(start, name)
}

func (p *parser) parseValueObject() (*ValueObjectDecl, error) {
	start := p.next().start
	name, err := p.expect("value_object", tokIdent)
	if err != nil {
		return nil, err
	}
	entity, err := p.parseEntityBody(start, name)
	if err != nil {
		return nil, err
	}
	return (*ValueObjectDecl)(entity), nil
}

// parseEntityBody parses the `{ ... }` of an entity or value object: a doc
// string, an `identify` binding, `Struct { ... }` blocks and bare fields.
func (p *parser) parseEntityBody(start int, name token) (*EntityDecl, error) {
	if _, err := p.expect("entity", tokLBrace); err != nil {
		return nil, err
	}
	entity := &EntityDecl{Name: name.text, Fields: []VariableDefinition{}}

	for !p.at(tokRBrace) {
		switch {
		case p.skipSeparators():
		case p.at(tokDocString):
			entity.Description = p.next().text
		case p.atKeyword("identify") && p.peekAt(1).kind == tokIdent:
			p.next()
			v, err := p.parseVariable("entity")
			if err != nil {
				return nil, err
			}
			entity.Identify = &v
		case p.atKeyword("Struct") && p.peekAt(1).kind == tokLBrace:
			p.next()
			fields, err := p.parseFields("struct")
			if err != nil {
				return nil, err
			}
			entity.Fields = append(entity.Fields, fields...)
		case p.at(tokIdent) && p.peekAt(1).kind == tokColon:
			v, err := p.parseVariable("entity")
			if err != nil {
				return nil, err
			}
			entity.Fields = append(entity.Fields, v)
		default:
			return nil, p.fail("entity", "identify, Struct, a field or '}'")
		}
	}
	p.next()
	entity.Node = p.node(start)
	return entity, nil
}

func (p *parser) parseStruct() (*StructDecl, error) {
	start := p.next().start
	name, err := p.expect("struct", tokIdent)
	if err != nil {
		return nil, err
	}
	fields, err := p.parseFields("struct")
	if err != nil {
		return nil, err
	}
	return &StructDecl{Node: p.node(start), Name: name.text, Fields: fields}, nil
}

// parseFields parses `{ name: Type; other: Type = init, ... }`.
func (p *parser) parseFields(rule string) ([]VariableDefinition, error) {
	if _, err := p.expect(rule, tokLBrace); err != nil {
		return nil, err
	}
	fields := []VariableDefinition{}
	for !p.at(tokRBrace) {
		switch {
		case p.skipSeparators():
		case p.at(tokIdent) && p.peekAt(1).kind == tokColon:
			v, err := p.parseVariable(rule)
			if err != nil {
				return nil, err
			}
			fields = append(fields, v)
		default:
			return nil, p.fail(rule, "a field or '}'")
		}
	}
	p.next()
	return fields, nil
}

// parseVariable parses `name [: Type] [= initializer]`.
func (p *parser) parseVariable(rule string) (VariableDefinition, error) {
	name, err := p.expect(rule, tokIdent)
	if err != nil {
		return VariableDefinition{}, err
	}
	v := VariableDefinition{Name: name.text}
	if p.at(tokColon) {
		p.next()
		if v.Type, err = p.parseTypeText(rule); err != nil {
			return VariableDefinition{}, err
		}
	}
	if p.at(tokAssign) {
		p.next()
		if v.Initializer, err = p.parseInitializer(rule); err != nil {
			return VariableDefinition{}, err
		}
	}
	v.Node = p.node(name.start)
	return v, nil
}

// parseTypeText consumes a type expression such as `com.x.Id`,
// `Map<String, List<Int>>`, `Int[]` or `String?` and returns it as written.
func (p *parser) parseTypeText(rule string) (string, error) {
	first := p.peek()
	if first.kind != tokIdent {
		return "", p.fail(rule, "a type")
	}
	p.next()
	for p.at(tokDot) && p.peekAt(1).kind == tokIdent {
		p.next()
		p.next()
	}
	if p.at(tokLess) {
		depth := 0
	generics:
		for {
			switch p.peek().kind {
			case tokLess:
				depth++
			case tokGreater:
				depth--
			case tokEOF, tokSemicolon, tokLBrace, tokRBrace:
				return "", p.fail(rule, "'>'")
			}
			p.next()
			if depth == 0 {
				break generics
			}
		}
	}
	for p.at(tokLBracket) && p.peekAt(1).kind == tokRBracket {
		p.next()
		p.next()
	}
	if p.at(tokQuestion) {
		p.next()
	}
	return strings.TrimSpace(p.src[first.start:p.lastEnd()]), nil
}

// parseInitializer consumes a free-form expression up to the end of the
// binding. The expression is returned as written and never evaluated.
func (p *parser) parseInitializer(rule string) (string, error) {
	start := p.peek().start
	depth := 0
	consumed := 0
	for {
		t := p.peek()
		if t.kind == tokEOF {
			break
		}
		if depth == 0 {
			if t.kind == tokSemicolon || t.kind == tokComma || t.kind == tokRParen || t.kind == tokRBrace {
				break
			}
			// the next `name:` starts a new binding when ';' was omitted
			if consumed > 0 && t.kind == tokIdent && p.peekAt(1).kind == tokColon {
				break
			}
		}
		switch t.kind {
		case tokLParen, tokLBracket, tokLBrace:
			depth++
		case tokRParen, tokRBracket, tokRBrace:
			depth--
		}
		p.next()
		consumed++
	}
	if consumed == 0 {
		return "", p.fail(rule, "an initializer expression")
	}
	return strings.TrimSpace(p.src[start:p.lastEnd()]), nil
}

func (p *parser) parseImplementation() (*ImplementationDecl, error) {
	start := p.next().start
	name, err := p.expect("implementation", tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("implementation", tokLBrace); err != nil {
		return nil, err
	}
	impl := &ImplementationDecl{Name: name.text}

	for !p.at(tokRBrace) {
		switch {
		case p.skipSeparators():
		case p.at(tokDocString):
			impl.Description = p.next().text
		case p.atKeyword("endpoint") && p.peekAt(1).kind == tokLBrace:
			ep, err := p.parseEndpoint()
			if err != nil {
				return nil, err
			}
			impl.Endpoint = ep
		case p.atKeyword("flow") && p.peekAt(1).kind == tokLBrace:
			flow, err := p.parseFlow()
			if err != nil {
				return nil, err
			}
			impl.Flow = flow
		case (p.atKeyword("aggregate") || p.atKeyword("entity")) && p.peekAt(1).kind == tokColon:
			kw := p.next()
			p.next()
			target, err := p.expect("implementation", tokIdent)
			if err != nil {
				return nil, err
			}
			p.optSemicolon()
			kind := TargetAggregate
			if kw.text == "entity" {
				kind = TargetEntity
			}
			impl.Target = &ImplementationTarget{Node: p.node(kw.start), Kind: kind, Name: target.text}
		case p.atAttribute():
			attr, err := p.parseAttribute("implementation")
			if err != nil {
				return nil, err
			}
			impl.Attributes = append(impl.Attributes, attr)
		default:
			return nil, p.fail("implementation", "endpoint, flow, aggregate, entity, an attribute or '}'")
		}
	}
	p.next()
	impl.Node = p.node(start)
	return impl, nil
}

func (p *parser) parseEndpoint() (*EndpointDecl, error) {
	start := p.next().start
	p.next() // {
	ep := &EndpointDecl{}

	for !p.at(tokRBrace) {
		switch {
		case p.skipSeparators():
		case p.at(tokDocString):
			ep.Description = p.next().text
		case p.at(tokIdent) && p.peekAt(1).kind == tokString:
			ep.Method = p.next().text
			ep.URI = p.next().text
			p.optSemicolon()
		case p.atKeyword("authorization") && p.peekAt(1).kind == tokColon:
			authStart := p.next().start
			p.next()
			kind, err := p.expect("authorization", tokIdent)
			if err != nil {
				return nil, err
			}
			auth := &AuthorizationDecl{Type: kind.text}
			for (p.at(tokIdent) || p.at(tokString) || p.at(tokNumber)) && !p.atAttribute() {
				auth.Args = append(auth.Args, p.next().text)
			}
			p.optSemicolon()
			auth.Node = p.node(authStart)
			ep.Authorization = auth
		case (p.atKeyword("request") || p.atKeyword("response")) && p.peekAt(1).kind == tokColon:
			kw := p.next().text
			p.next()
			typ, err := p.parseTypeText("endpoint")
			if err != nil {
				return nil, err
			}
			p.optSemicolon()
			if kw == "request" {
				ep.Request = typ
			} else {
				ep.Response = typ
			}
		case p.atKeyword("description") && p.peekAt(1).kind == tokColon:
			attr, err := p.parseAttribute("endpoint")
			if err != nil {
				return nil, err
			}
			ep.Description = attr.Value.Text
		default:
			return nil, p.fail("endpoint", `a method line such as GET "/path", authorization, request, response or '}'`)
		}
	}
	p.next()
	ep.Node = p.node(start)
	return ep, nil
}

func (p *parser) parseFlow() (*FlowDecl, error) {
	start := p.next().start
	p.next() // {
	flow := &FlowDecl{Steps: []StepDecl{}}

	for !p.at(tokRBrace) {
		switch {
		case p.skipSeparators():
		case p.atKeyword("via"):
			step, err := p.parseStep()
			if err != nil {
				return nil, err
			}
			flow.Steps = append(flow.Steps, step)
		default:
			return nil, p.fail("flow", "'via' or '}'")
		}
	}
	p.next()
	flow.Node = p.node(start)
	return flow, nil
}

func (p *parser) parseStep() (StepDecl, error) {
	start := p.next().start // via
	object, err := p.expect("flow", tokIdent)
	if err != nil {
		return nil, err
	}

	switch {
	case p.at(tokDoubleColon):
		p.next()
		method, err := p.expect("flow", tokIdent)
		if err != nil {
			return nil, err
		}
		call := &MethodCallDecl{Object: object.text, Method: method.text, Args: []VariableDefinition{}}
		if p.at(tokLParen) {
			p.next()
			for !p.at(tokRParen) {
				if p.at(tokComma) {
					p.next()
					continue
				}
				arg, err := p.parseVariable("flow")
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, arg)
			}
			p.next()
		}
		if p.atKeyword("receive") {
			p.next()
			ret, err := p.parseVariable("flow")
			if err != nil {
				return nil, err
			}
			call.Return = &ret
		}
		p.optSemicolon()
		call.Node = p.node(start)
		return call, nil

	case p.atKeyword("send"):
		p.next()
		payload, err := p.expect("flow", tokIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKeyword("flow", "to"); err != nil {
			return nil, err
		}
		topic, err := p.expectName("flow")
		if err != nil {
			return nil, err
		}
		p.optSemicolon()
		return &MessageDecl{
			Node:    p.node(start),
			From:    object.text,
			Topic:   topic.text,
			Payload: payload.text,
		}, nil
	}
	return nil, p.fail("flow", "'::' or 'send'")
}

func (p *parser) parseLayered() (*LayeredDecl, error) {
	start := p.next().start
	name, err := p.expectName("layered")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("layered", tokLBrace); err != nil {
		return nil, err
	}
	layered := &LayeredDecl{
		Name:         name.text,
		Layers:       []*LayerDecl{},
		Dependencies: []*LayerDependency{},
	}

	for !p.at(tokRBrace) {
		switch {
		case p.skipSeparators():
		case p.at(tokDocString):
			layered.Description = p.next().text
		case p.atKeyword("dependency") && p.peekAt(1).kind == tokLBrace:
			deps, err := p.parseDependencies()
			if err != nil {
				return nil, err
			}
			layered.Dependencies = append(layered.Dependencies, deps...)
		case p.atKeyword("layer") && (p.peekAt(1).kind == tokIdent || p.peekAt(1).kind == tokString):
			layer, err := p.parseLayer()
			if err != nil {
				return nil, err
			}
			layered.Layers = append(layered.Layers, layer)
		default:
			return nil, p.fail("layered", "dependency, layer or '}'")
		}
	}
	p.next()
	layered.Node = p.node(start)
	return layered, nil
}

// parseDependencies parses `dependency { a -> b; c <- d; }`. A `<-` rule is
// stored flipped so Source is always the depending layer.
func (p *parser) parseDependencies() ([]*LayerDependency, error) {
	p.next()
	p.next() // {
	var deps []*LayerDependency
	for !p.at(tokRBrace) {
		if p.skipSeparators() {
			continue
		}
		src, err := p.expectName("dependency")
		if err != nil {
			return nil, err
		}
		var flipped bool
		switch p.peek().kind {
		case tokArrowRight:
		case tokArrowLeft:
			flipped = true
		default:
			return nil, p.fail("dependency", "'->' or '<-'")
		}
		p.next()
		tgt, err := p.expectName("dependency")
		if err != nil {
			return nil, err
		}
		p.optSemicolon()
		dep := &LayerDependency{Node: p.node(src.start), Source: src.text, Target: tgt.text}
		if flipped {
			dep.Source, dep.Target = dep.Target, dep.Source
		}
		deps = append(deps, dep)
	}
	p.next()
	return deps, nil
}

func (p *parser) parseLayer() (*LayerDecl, error) {
	start := p.next().start
	name := p.next()
	layer := &LayerDecl{Name: name.text}
	if p.at(tokLBrace) {
		attrs, err := p.parseAttrBlock("layer")
		if err != nil {
			return nil, err
		}
		layer.Package = attrs.Text("package")
		layer.Description = attrs.Text("description")
	} else {
		p.optSemicolon()
	}
	layer.Node = p.node(start)
	return layer, nil
}

func (p *parser) parseSourceSets() (*SourceSetsDecl, error) {
	start := p.next().start
	name, err := p.expect("source_set", tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("source_set", tokLBrace); err != nil {
		return nil, err
	}
	decl := &SourceSetsDecl{Name: name.text, Sets: []*SourceSetDecl{}}
	for !p.at(tokRBrace) {
		switch {
		case p.skipSeparators():
		case p.atBlock():
			setStart := p.peek().start
			setName := p.next().text
			attrs, err := p.parseAttrBlock("source_set")
			if err != nil {
				return nil, err
			}
			decl.Sets = append(decl.Sets, &SourceSetDecl{Node: p.node(setStart), Name: setName, Attributes: attrs})
		default:
			return nil, p.fail("source_set", "a named block or '}'")
		}
	}
	p.next()
	decl.Node = p.node(start)
	return decl, nil
}

func (p *parser) parseEnv() (*EnvDecl, error) {
	start := p.next().start
	name, err := p.expect("env", tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("env", tokLBrace); err != nil {
		return nil, err
	}
	env := &EnvDecl{Name: name.text, Customs: []*CustomDecl{}}

	for !p.at(tokRBrace) {
		switch {
		case p.skipSeparators():
		case p.atBlock():
			blockStart := p.peek().start
			blockName := p.next().text
			attrs, err := p.parseAttrBlock("env")
			if err != nil {
				return nil, err
			}
			node := p.node(blockStart)
			switch blockName {
			case "datasource":
				env.Datasource = newDatasource(node, attrs)
			case "server":
				env.Server = &ServerDecl{Node: node, Port: attrs.Text("port"), Attributes: attrs}
			default:
				env.Customs = append(env.Customs, &CustomDecl{Node: node, Name: blockName, Attributes: attrs})
			}
		default:
			return nil, p.fail("env", "datasource, server, a custom block or '}'")
		}
	}
	p.next()
	env.Node = p.node(start)
	return env, nil
}

func newDatasource(node Node, attrs Attributes) *DatasourceDecl {
	ds := &DatasourceDecl{Node: node}
	for _, attr := range attrs {
		text := attr.Value.Text
		switch attr.Key {
		case "url":
			ds.URL = text
		case "driver":
			ds.Driver = text
		case "host":
			ds.Host = text
		case "port":
			ds.Port = text
		case "username", "user":
			ds.Username = text
		case "password":
			ds.Password = text
		case "database":
			ds.Database = text
		default:
			ds.Extra = append(ds.Extra, attr)
		}
	}
	return ds
}

func (p *parser) parseInclude() (*IncludeDecl, error) {
	start := p.next().start
	path, err := p.expect("include", tokString)
	if err != nil {
		return nil, err
	}
	p.optSemicolon()
	return &IncludeDecl{Node: p.node(start), Path: path.text}, nil
}

func (p *parser) parseComponent() (*ComponentDecl, error) {
	start := p.next().start
	name, err := p.expect("component", tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("component", tokLBrace); err != nil {
		return nil, err
	}
	comp := &ComponentDecl{Name: name.text, Attributes: Attributes{}}
	for !p.at(tokRBrace) {
		switch {
		case p.skipSeparators():
		case p.at(tokDocString):
			comp.Description = p.next().text
		case p.atAttribute():
			attr, err := p.parseAttribute("component")
			if err != nil {
				return nil, err
			}
			comp.Attributes = append(comp.Attributes, attr)
		default:
			return nil, p.fail("component", "an attribute or '}'")
		}
	}
	p.next()
	comp.Node = p.node(start)
	return comp, nil
}

// parseAttrBlock parses `{ key: value; key = value; ... }`. A doc string in
// the block is kept as a "description" attribute.
func (p *parser) parseAttrBlock(rule string) (Attributes, error) {
	if _, err := p.expect(rule, tokLBrace); err != nil {
		return nil, err
	}
	attrs := Attributes{}
	for !p.at(tokRBrace) {
		switch {
		case p.skipSeparators():
		case p.at(tokDocString):
			t := p.next()
			attrs = append(attrs, Attribute{
				Node:  Node{Loc: Loc{Start: t.start, End: t.end}},
				Key:   "description",
				Value: Value{Node: Node{Loc: Loc{Start: t.start, End: t.end}}, Kind: ValueString, Text: t.text},
			})
		case p.atAttribute():
			attr, err := p.parseAttribute(rule)
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, attr)
		default:
			return nil, p.fail(rule, "an attribute or '}'")
		}
	}
	p.next()
	return attrs, nil
}

func (p *parser) parseAttribute(rule string) (Attribute, error) {
	key := p.next()
	p.next() // ':' or '='
	value, err := p.parseValue(rule)
	if err != nil {
		return Attribute{}, err
	}
	p.optSemicolon()
	return Attribute{Node: p.node(key.start), Key: key.text, Value: value}, nil
}

func (p *parser) parseValue(rule string) (Value, error) {
	t := p.peek()
	switch t.kind {
	case tokString, tokDocString:
		p.next()
		return Value{Node: p.node(t.start), Kind: ValueString, Text: t.text}, nil
	case tokNumber:
		p.next()
		return Value{Node: p.node(t.start), Kind: ValueNumber, Text: t.text}, nil
	case tokIdent:
		p.next()
		for p.at(tokDot) && p.peekAt(1).kind == tokIdent {
			p.next()
			p.next()
		}
		return Value{Node: p.node(t.start), Kind: ValueIdent, Text: p.src[t.start:p.lastEnd()]}, nil
	case tokLBracket:
		p.next()
		list := Value{Kind: ValueList, Items: []Value{}}
		for !p.at(tokRBracket) {
			if p.at(tokComma) {
				p.next()
				continue
			}
			item, err := p.parseValue(rule)
			if err != nil {
				return Value{}, err
			}
			list.Items = append(list.Items, item)
		}
		p.next()
		list.Node = p.node(t.start)
		texts := make([]string, 0, len(list.Items))
		for _, item := range list.Items {
			texts = append(texts, item.Text)
		}
		list.Text = strings.Join(texts, ", ")
		return list, nil
	}
	return Value{}, p.fail(rule, "a value")
}
