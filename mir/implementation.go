package mir

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// HTTPMethod is an endpoint verb. Verbs outside the standard set are kept
// verbatim and reported by IsCustom.
type HTTPMethod string

const (
	MethodGet     HTTPMethod = "GET"
	MethodPost    HTTPMethod = "POST"
	MethodPut     HTTPMethod = "PUT"
	MethodPatch   HTTPMethod = "PATCH"
	MethodDelete  HTTPMethod = "DELETE"
	MethodHead    HTTPMethod = "HEAD"
	MethodOptions HTTPMethod = "OPTIONS"
	MethodTrace   HTTPMethod = "TRACE"
	MethodConnect HTTPMethod = "CONNECT"
)

var standardMethods = map[HTTPMethod]bool{
	MethodGet: true, MethodPost: true, MethodPut: true, MethodPatch: true, MethodDelete: true,
	MethodHead: true, MethodOptions: true, MethodTrace: true, MethodConnect: true,
}

// ParseHTTPMethod normalizes a verb. The boolean is false for a custom verb,
// which is returned unchanged.
func ParseHTTPMethod(s string) (HTTPMethod, bool) {
	m := HTTPMethod(strings.ToUpper(s))
	if standardMethods[m] {
		return m, true
	}
	return HTTPMethod(s), false
}

// IsCustom reports whether m is outside the standard verb set.
func (m HTTPMethod) IsCustom() bool { return !standardMethods[m] }

// AuthKind selects the authorization scheme of an endpoint.
type AuthKind string

const (
	AuthNone   AuthKind = "None"
	AuthBasic  AuthKind = "Basic"
	AuthDigest AuthKind = "Digest"
	AuthBearer AuthKind = "Bearer"
)

// Authorization is an endpoint's auth scheme. Username and Password are set
// for Basic and Digest, Token for Bearer.
type Authorization struct {
	Kind     AuthKind `json:"kind" yaml:"kind"`
	Username string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password string   `json:"password,omitempty" yaml:"password,omitempty"`
	Token    string   `json:"token,omitempty" yaml:"token,omitempty"`
}

// HTTPEndpoint describes the HTTP surface of an implementation.
type HTTPEndpoint struct {
	Method      HTTPMethod    `json:"method" yaml:"method"`
	Path        string        `json:"path" yaml:"path"`
	Auth        Authorization `json:"auth" yaml:"auth"`
	Request     string        `json:"request,omitempty" yaml:"request,omitempty"`
	Response    string        `json:"response,omitempty" yaml:"response,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
}

// TargetKind is the kind of domain object an implementation serves.
type TargetKind string

const (
	TargetAggregate TargetKind = "Aggregate"
	TargetEntity    TargetKind = "Entity"
)

// ImplementationTarget names the aggregate or entity an implementation serves.
type ImplementationTarget struct {
	Kind TargetKind `json:"kind" yaml:"kind"`
	Name string     `json:"name" yaml:"name"`
}

// Implementation is a lowered `impl` block.
type Implementation struct {
	Name        string                `json:"name" yaml:"name"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Target      *ImplementationTarget `json:"target,omitempty" yaml:"target,omitempty"`
	Endpoint    HTTPEndpoint          `json:"endpoint" yaml:"endpoint"`
	Flow        Flow                  `json:"flow" yaml:"flow"`
}

// Step is one line of an implementation flow: a *MethodCall or a *Message.
type Step interface {
	stepKind() string
}

// MethodCall is `via Object::Method(args) receive Return`.
type MethodCall struct {
	Object string  `json:"object" yaml:"object"`
	Method string  `json:"method" yaml:"method"`
	Args   []Field `json:"args" yaml:"args"`
	Return *Field  `json:"return,omitempty" yaml:"return,omitempty"`
}

// Message is `via From send Payload to Topic`.
type Message struct {
	From    string `json:"from" yaml:"from"`
	Topic   string `json:"topic" yaml:"topic"`
	Payload string `json:"payload" yaml:"payload"`
}

const (
	stepMethodCall = "method_call"
	stepMessage    = "message"
)

func (*MethodCall) stepKind() string { return stepMethodCall }
func (*Message) stepKind() string    { return stepMessage }

// Flow is the ordered step list of an implementation. Steps are serialized
// as kind-tagged objects so the list round-trips through JSON and YAML.
type Flow []Step

type stepEnvelope struct {
	Kind       string      `json:"kind" yaml:"kind"`
	MethodCall *MethodCall `json:"method_call,omitempty" yaml:"method_call,omitempty"`
	Message    *Message    `json:"message,omitempty" yaml:"message,omitempty"`
}

func (f Flow) envelopes() []stepEnvelope {
	out := make([]stepEnvelope, 0, len(f))
	for _, s := range f {
		switch step := s.(type) {
		case *MethodCall:
			out = append(out, stepEnvelope{Kind: stepMethodCall, MethodCall: step})
		case *Message:
			out = append(out, stepEnvelope{Kind: stepMessage, Message: step})
		}
	}
	return out
}

func flowFromEnvelopes(envs []stepEnvelope) (Flow, error) {
	flow := make(Flow, 0, len(envs))
	for i, env := range envs {
		switch {
		case env.Kind == stepMethodCall && env.MethodCall != nil:
			flow = append(flow, env.MethodCall)
		case env.Kind == stepMessage && env.Message != nil:
			flow = append(flow, env.Message)
		default:
			return nil, fmt.Errorf("flow step %d: unknown or empty kind %q", i, env.Kind)
		}
	}
	return flow, nil
}

// MarshalJSON implements json.Marshaler.
func (f Flow) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.envelopes())
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flow) UnmarshalJSON(data []byte) error {
	var envs []stepEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return err
	}
	flow, err := flowFromEnvelopes(envs)
	if err != nil {
		return err
	}
	*f = flow
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (f Flow) MarshalYAML() (interface{}, error) {
	return f.envelopes(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *Flow) UnmarshalYAML(node *yaml.Node) error {
	var envs []stepEnvelope
	if err := node.Decode(&envs); err != nil {
		return err
	}
	flow, err := flowFromEnvelopes(envs)
	if err != nil {
		return err
	}
	*f = flow
	return nil
}
