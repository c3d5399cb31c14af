// Package python extracts package, import and class facts from Python sources using tree-sitter.
//
// Python has no package declaration. A module's package is the dotted chain
// of enclosing directories that hold an __init__.py, so src/shop/domain/order.py
// with src/shop/__init__.py and src/shop/domain/__init__.py is in package
// shop.domain. Imports are normalized to dotted names: `import shop.rest` is
// recorded as shop.rest.* and `from shop.rest import api` as shop.rest.api.
// Relative imports are resolved against the module's package.
package python

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/c360studio/archspec/processor/ast"
)

// Language is the name the parser registers under.
const Language = "python"

const initFile = "__init__.py"

func init() {
	ast.DefaultRegistry.Register(Language, []string{".py"},
		func(repoRoot string) ast.FileParser {
			return NewParser(repoRoot)
		})
}

// Parser extracts facts from Python source files. A Parser is not safe for
// concurrent use.
type Parser struct {
	repoRoot string
	parser   *sitter.Parser
}

// NewParser creates a new Python parser.
func NewParser(repoRoot string) *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{
		repoRoot: repoRoot,
		parser:   p,
	}
}

// ParseFile parses a single Python file.
func (p *Parser) ParseFile(ctx context.Context, filePath string) (*ast.ResolvedFile, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return p.Parse(ctx, filePath, content)
}

// Parse extracts facts from content read from filePath. The package is
// derived from the __init__.py files next to and above filePath.
func (p *Parser) Parse(ctx context.Context, filePath string, content []byte) (*ast.ResolvedFile, error) {
	relPath, err := filepath.Rel(p.repoRoot, filePath)
	if err != nil {
		relPath = filePath
	}

	tree, err := p.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse file: %w", err)
	}
	defer tree.Close()

	rootNode := tree.RootNode()
	if rootNode.HasError() {
		return nil, fmt.Errorf("%w: %s", ast.ErrMalformedSource, firstErrorPosition(rootNode))
	}

	pkg := p.packageOf(filepath.Dir(filePath))
	result := &ast.ResolvedFile{
		Path:     filepath.ToSlash(relPath),
		Hash:     ast.ComputeHash(content),
		Language: Language,
		Package:  pkg,
		Imports:  make([]string, 0),
		Classes:  make([]ast.Class, 0),
	}

	for i := 0; i < int(rootNode.NamedChildCount()); i++ {
		child := rootNode.NamedChild(i)
		switch child.Type() {
		case "import_statement":
			result.Imports = append(result.Imports, p.extractImport(child, content)...)
		case "import_from_statement":
			result.Imports = append(result.Imports, p.extractFromImport(child, content, pkg)...)
		default:
			result.Classes = append(result.Classes, p.extractClasses(child, content)...)
		}
	}

	return result, nil
}

// packageOf walks up from dir while each directory holds an __init__.py and
// returns the dotted package name. It never climbs above the repo root.
func (p *Parser) packageOf(dir string) string {
	root := filepath.Clean(p.repoRoot)

	var segments []string
	for {
		if _, err := os.Stat(filepath.Join(dir, initFile)); err != nil {
			break
		}
		segments = append([]string{filepath.Base(dir)}, segments...)

		parent := filepath.Dir(dir)
		if dir == root || parent == dir {
			break
		}
		dir = parent
	}
	return strings.Join(segments, ".")
}

// firstErrorPosition locates the first ERROR or missing node for the error message.
func firstErrorPosition(node *sitter.Node) string {
	if node.IsError() || node.IsMissing() {
		pt := node.StartPoint()
		return fmt.Sprintf("syntax error at %d:%d", pt.Row+1, pt.Column+1)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsMissing() {
			return firstErrorPosition(child)
		}
	}
	return "syntax error"
}

// extractImport handles `import a.b, c as d`. Each module is recorded as a
// wildcard over its members.
func (p *Parser) extractImport(node *sitter.Node, content []byte) []string {
	var imports []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if name := importedName(node.NamedChild(i), content); name != "" {
			imports = append(imports, name+".*")
		}
	}
	return imports
}

// extractFromImport handles `from m import a, b as c` and `from m import *`,
// resolving leading dots in m against pkg.
func (p *Parser) extractFromImport(node *sitter.Node, content []byte, pkg string) []string {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return nil
	}
	module, ok := resolveModule(moduleNode, content, pkg)
	if !ok {
		return nil
	}

	var imports []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.StartByte() == moduleNode.StartByte() {
			continue
		}
		if child.Type() == "wildcard_import" {
			imports = append(imports, qualify(module, "*"))
			continue
		}
		if name := importedName(child, content); name != "" {
			imports = append(imports, qualify(module, name))
		}
	}
	return imports
}

// importedName returns the dotted name of a dotted_name or aliased_import node.
func importedName(node *sitter.Node, content []byte) string {
	switch node.Type() {
	case "dotted_name":
		return node.Content(content)
	case "aliased_import":
		if name := node.ChildByFieldName("name"); name != nil {
			return name.Content(content)
		}
	}
	return ""
}

// resolveModule returns the absolute module a from-import names. One leading
// dot is pkg itself, each further dot its parent. It fails when the dots climb
// above the top-level package.
func resolveModule(node *sitter.Node, content []byte, pkg string) (string, bool) {
	if node.Type() != "relative_import" {
		return node.Content(content), true
	}

	var level int
	var rest string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "import_prefix":
			level = strings.Count(child.Content(content), ".")
		case "dotted_name":
			rest = child.Content(content)
		}
	}

	var base []string
	if pkg != "" {
		base = strings.Split(pkg, ".")
	}
	up := level - 1
	if up > len(base) {
		return "", false
	}
	base = base[:len(base)-up]
	if rest != "" {
		base = append(base, rest)
	}
	if len(base) == 0 {
		return "", false
	}
	return strings.Join(base, "."), true
}

func qualify(module, name string) string {
	return module + "." + name
}

// extractClasses returns the class defined by node, if any, followed by its
// nested classes. Decorated classes are unwrapped.
func (p *Parser) extractClasses(node *sitter.Node, content []byte) []ast.Class {
	if node.Type() == "decorated_definition" {
		def := node.ChildByFieldName("definition")
		if def == nil {
			return nil
		}
		node = def
	}
	if node.Type() != "class_definition" {
		return nil
	}

	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	class := ast.Class{
		Name:       nameNode.Content(content),
		Implements: make([]string, 0),
		Methods:    make([]ast.Method, 0),
		Start:      point(node.StartPoint()),
		End:        point(node.EndPoint()),
	}

	// Base classes, without metaclass= and other keyword arguments.
	if bases := node.ChildByFieldName("superclasses"); bases != nil {
		for i := 0; i < int(bases.NamedChildCount()); i++ {
			base := bases.NamedChild(i)
			switch base.Type() {
			case "identifier", "attribute":
				class.Implements = append(class.Implements, base.Content(content))
			case "subscript":
				// Generic[T] and friends
				if value := base.ChildByFieldName("value"); value != nil {
					class.Implements = append(class.Implements, value.Content(content))
				}
			}
		}
	}

	var nested []ast.Class
	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			child := body.NamedChild(i)
			def := child
			if child.Type() == "decorated_definition" {
				if def = child.ChildByFieldName("definition"); def == nil {
					continue
				}
			}
			switch def.Type() {
			case "function_definition":
				if method, ok := p.extractMethod(def, content); ok {
					class.Methods = append(class.Methods, method)
				}
			case "class_definition":
				nested = append(nested, p.extractClasses(def, content)...)
			}
		}
	}

	return append([]ast.Class{class}, nested...)
}

// extractMethod extracts a method. ReturnType is the annotation as written,
// or empty when there is none.
func (p *Parser) extractMethod(node *sitter.Node, content []byte) (ast.Method, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ast.Method{}, false
	}

	method := ast.Method{
		Name:  nameNode.Content(content),
		Start: point(node.StartPoint()),
		End:   point(node.EndPoint()),
	}
	if returnType := node.ChildByFieldName("return_type"); returnType != nil {
		method.ReturnType = strings.TrimSpace(returnType.Content(content))
	}
	return method, true
}

func point(pt sitter.Point) ast.Point {
	return ast.Point{Row: int(pt.Row), Column: int(pt.Column)}
}
