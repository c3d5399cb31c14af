package mir

import "strings"

// ConnectionDirection is the direction of a context relation.
type ConnectionDirection string

const (
	Undirected       ConnectionDirection = "Undirected"
	PositiveDirected ConnectionDirection = "PositiveDirected"
	NegativeDirected ConnectionDirection = "NegativeDirected"
	BiDirected       ConnectionDirection = "BiDirected"
)

// ContextPattern is a DDD context-relationship pattern attached to one side of
// a relation.
type ContextPattern string

const (
	SharedKernel        ContextPattern = "SharedKernel"
	Partnership         ContextPattern = "Partnership"
	CustomerSupplier    ContextPattern = "CustomerSupplier"
	Conformist          ContextPattern = "Conformist"
	AntiCorruptionLayer ContextPattern = "AntiCorruptionLayer"
	OpenHostService     ContextPattern = "OpenHostService"
	PublishedLanguage   ContextPattern = "PublishedLanguage"
	SeparateWay         ContextPattern = "SeparateWay"
	BigBallOfMud        ContextPattern = "BigBallOfMud"
	NoPattern           ContextPattern = "None"
)

var contextPatterns = map[string]ContextPattern{
	"sk":                  SharedKernel,
	"sharedkernel":        SharedKernel,
	"p":                   Partnership,
	"ps":                  Partnership,
	"partnership":         Partnership,
	"cs":                  CustomerSupplier,
	"customersupplier":    CustomerSupplier,
	"cf":                  Conformist,
	"conformist":          Conformist,
	"acl":                 AntiCorruptionLayer,
	"anticorruptionlayer": AntiCorruptionLayer,
	"ohs":                 OpenHostService,
	"openhostservice":     OpenHostService,
	"pl":                  PublishedLanguage,
	"publishedlanguage":   PublishedLanguage,
	"sw":                  SeparateWay,
	"separateway":         SeparateWay,
	"separateways":        SeparateWay,
	"bb":                  BigBallOfMud,
	"bbm":                 BigBallOfMud,
	"bigballofmud":        BigBallOfMud,
}

// ParseContextPattern maps a relation tag onto a ContextPattern. Matching is
// case-insensitive and accepts the full name or its abbreviation. Unknown tags
// yield NoPattern and false.
func ParseContextPattern(tag string) (ContextPattern, bool) {
	p, ok := contextPatterns[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return NoPattern, false
	}
	return p, true
}

// Relation connects two bounded contexts.
type Relation struct {
	Source      string              `json:"source" yaml:"source"`
	Target      string              `json:"target" yaml:"target"`
	Direction   ConnectionDirection `json:"direction" yaml:"direction"`
	SourceTypes []ContextPattern    `json:"source_types" yaml:"source_types"`
	TargetTypes []ContextPattern    `json:"target_types" yaml:"target_types"`
}
