// Package java extracts package, import and class facts from Java sources using tree-sitter.
package java

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/c360studio/archspec/processor/ast"
)

// Language is the name the parser registers under.
const Language = "java"

func init() {
	ast.DefaultRegistry.Register(Language, []string{".java"},
		func(repoRoot string) ast.FileParser {
			return NewParser(repoRoot)
		})
}

// Parser extracts facts from Java source files. A Parser is not safe for
// concurrent use.
type Parser struct {
	repoRoot string
	parser   *sitter.Parser
}

// NewParser creates a new Java parser.
func NewParser(repoRoot string) *Parser {
	p := sitter.NewParser()
	p.SetLanguage(java.GetLanguage())
	return &Parser{
		repoRoot: repoRoot,
		parser:   p,
	}
}

// ParseFile parses a single Java file.
func (p *Parser) ParseFile(ctx context.Context, filePath string) (*ast.ResolvedFile, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return p.Parse(ctx, filePath, content)
}

// Parse extracts facts from content read from filePath.
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

	result := &ast.ResolvedFile{
		Path:     filepath.ToSlash(relPath),
		Hash:     ast.ComputeHash(content),
		Language: Language,
		Imports:  make([]string, 0),
		Classes:  make([]ast.Class, 0),
	}

	for i := 0; i < int(rootNode.NamedChildCount()); i++ {
		child := rootNode.NamedChild(i)
		switch child.Type() {
		case "package_declaration":
			result.Package = p.extractPackageName(child, content)
		case "import_declaration":
			if imp := p.extractImport(child, content); imp != "" {
				result.Imports = append(result.Imports, imp)
			}
		default:
			result.Classes = append(result.Classes, p.extractTypes(child, content)...)
		}
	}

	return result, nil
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

// extractPackageName extracts the name of a package declaration.
func (p *Parser) extractPackageName(node *sitter.Node, content []byte) string {
	for j := 0; j < int(node.NamedChildCount()); j++ {
		pkgNode := node.NamedChild(j)
		if pkgNode.Type() == "scoped_identifier" || pkgNode.Type() == "identifier" {
			return pkgNode.Content(content)
		}
	}
	return ""
}

// extractImport returns the imported name. On-demand imports keep their
// trailing ".*".
func (p *Parser) extractImport(node *sitter.Node, content []byte) string {
	var name string
	wildcard := false
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "scoped_identifier", "identifier":
			name = child.Content(content)
		case "asterisk":
			wildcard = true
		}
	}
	if name != "" && wildcard {
		name += ".*"
	}
	return name
}

// extractTypes returns the type declared by node followed by its nested types.
func (p *Parser) extractTypes(node *sitter.Node, content []byte) []ast.Class {
	switch node.Type() {
	case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
	default:
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

	if node.Type() == "interface_declaration" {
		// Interfaces list their supertypes under extends_interfaces.
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if child := node.NamedChild(i); child.Type() == "extends_interfaces" {
				class.Implements = append(class.Implements, p.typeList(child, content)...)
			}
		}
	} else if interfaces := node.ChildByFieldName("interfaces"); interfaces != nil {
		class.Implements = append(class.Implements, p.typeList(interfaces, content)...)
	}

	var nested []ast.Class
	if body := node.ChildByFieldName("body"); body != nil {
		nested = p.extractBody(body, content, &class)
	}

	return append([]ast.Class{class}, nested...)
}

// extractBody collects the methods of a type body into class and returns
// the nested types.
func (p *Parser) extractBody(body *sitter.Node, content []byte, class *ast.Class) []ast.Class {
	var nested []ast.Class

	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)

		switch child.Type() {
		case "method_declaration":
			if method, ok := p.extractMethod(child, content); ok {
				class.Methods = append(class.Methods, method)
			}

		case "constructor_declaration", "compact_constructor_declaration":
			if method, ok := p.extractMethod(child, content); ok {
				method.ReturnType = ""
				class.Methods = append(class.Methods, method)
			}

		case "enum_body_declarations":
			nested = append(nested, p.extractBody(child, content, class)...)

		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			nested = append(nested, p.extractTypes(child, content)...)
		}
	}

	return nested
}

// extractMethod extracts a method or constructor.
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
	if returnType := node.ChildByFieldName("type"); returnType != nil {
		method.ReturnType = p.extractTypeReference(returnType, content)
	}
	return method, true
}

// typeList flattens super_interfaces, extends_interfaces and type_list nodes.
func (p *Parser) typeList(node *sitter.Node, content []byte) []string {
	var names []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "type_list" {
			names = append(names, p.typeList(child, content)...)
			continue
		}
		if name := p.extractTypeReference(child, content); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// extractTypeReference extracts a type name from a type node, stripping generics.
func (p *Parser) extractTypeReference(typeNode *sitter.Node, content []byte) string {
	if typeNode == nil {
		return ""
	}

	switch typeNode.Type() {
	case "type_identifier", "scoped_type_identifier":
		return typeNode.Content(content)

	case "generic_type":
		if typeNode.NamedChildCount() > 0 {
			return p.extractTypeReference(typeNode.NamedChild(0), content)
		}

	case "array_type":
		if elemType := typeNode.ChildByFieldName("element"); elemType != nil {
			return p.extractTypeReference(elemType, content) + "[]"
		}

	case "void_type":
		return "void"

	default:
		return strings.TrimSpace(typeNode.Content(content))
	}

	return ""
}

func point(pt sitter.Point) ast.Point {
	return ast.Point{Row: int(pt.Row), Column: int(pt.Column)}
}
