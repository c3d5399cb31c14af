package transform

import (
	"strings"

	"github.com/c360studio/archspec/dsl"
	"github.com/c360studio/archspec/mir"
)

func (l *lowerer) lowerImplementation(decl *dsl.ImplementationDecl) mir.Implementation {
	impl := mir.Implementation{
		Name:        decl.Name,
		Description: decl.Description,
		Endpoint:    mir.HTTPEndpoint{Auth: mir.Authorization{Kind: mir.AuthNone}},
		Flow:        mir.Flow{},
	}
	if decl.Target != nil {
		kind := mir.TargetAggregate
		if decl.Target.Kind == dsl.TargetEntity {
			kind = mir.TargetEntity
		}
		impl.Target = &mir.ImplementationTarget{Kind: kind, Name: decl.Target.Name}
	}
	if ep := decl.Endpoint; ep != nil {
		method, ok := mir.ParseHTTPMethod(ep.Method)
		if !ok {
			l.warn(WarnCustomHTTPMethod, decl.Name, ep.Loc, "non-standard HTTP method %q kept as a custom verb", ep.Method)
		}
		impl.Endpoint = mir.HTTPEndpoint{
			Method:      method,
			Path:        ep.URI,
			Auth:        l.lowerAuthorization(decl.Name, ep.Authorization),
			Request:     ep.Request,
			Response:    ep.Response,
			Description: ep.Description,
		}
	}
	if decl.Flow != nil {
		impl.Flow = lowerFlow(decl.Flow)
	}
	return impl
}

func (l *lowerer) lowerAuthorization(subject string, decl *dsl.AuthorizationDecl) mir.Authorization {
	if decl == nil {
		return mir.Authorization{Kind: mir.AuthNone}
	}
	arg := func(i int) string {
		if i < len(decl.Args) {
			return decl.Args[i]
		}
		return ""
	}
	switch strings.ToLower(decl.Type) {
	case "basic":
		return mir.Authorization{Kind: mir.AuthBasic, Username: arg(0), Password: arg(1)}
	case "digest":
		return mir.Authorization{Kind: mir.AuthDigest, Username: arg(0), Password: arg(1)}
	case "bearer":
		return mir.Authorization{Kind: mir.AuthBearer, Token: arg(0)}
	case "none", "":
		return mir.Authorization{Kind: mir.AuthNone}
	}
	l.warn(WarnUnknownAuthorization, subject, decl.Loc, "unknown authorization type %q lowered to None", decl.Type)
	return mir.Authorization{Kind: mir.AuthNone}
}

// lowerFlow keeps steps in source order. Steps are never merged or reordered.
func lowerFlow(decl *dsl.FlowDecl) mir.Flow {
	flow := make(mir.Flow, 0, len(decl.Steps))
	for _, s := range decl.Steps {
		switch step := s.(type) {
		case *dsl.MethodCallDecl:
			call := &mir.MethodCall{
				Object: step.Object,
				Method: step.Method,
				Args:   lowerFields(step.Args),
			}
			if step.Return != nil {
				ret := lowerField(*step.Return)
				call.Return = &ret
			}
			flow = append(flow, call)
		case *dsl.MessageDecl:
			flow = append(flow, &mir.Message{From: step.From, Topic: step.Topic, Payload: step.Payload})
		}
	}
	return flow
}
