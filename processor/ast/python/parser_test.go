package python

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/c360studio/archspec/processor/ast"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

// newPackageTree lays out src/shop/{rest,domain} as regular packages.
func newPackageTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "src/shop/__init__.py", "")
	writeFile(t, root, "src/shop/rest/__init__.py", "")
	writeFile(t, root, "src/shop/domain/__init__.py", "")
	return root
}

func TestParseFile_PackageFromInitFiles(t *testing.T) {
	root := newPackageTree(t)
	path := writeFile(t, root, "src/shop/domain/order.py", "class Order:\n    pass\n")

	result, err := NewParser(root).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	if result.Path != "src/shop/domain/order.py" {
		t.Errorf("Path = %q", result.Path)
	}
	if result.Package != "shop.domain" {
		t.Errorf("Package = %q, want shop.domain", result.Package)
	}
	if result.Language != Language {
		t.Errorf("Language = %q, want %q", result.Language, Language)
	}
	if len(result.Hash) != 16 {
		t.Errorf("Hash = %q, want 16 hex chars", result.Hash)
	}
}

func TestParseFile_TopLevelModule(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "scripts/run.py", "import os\n")

	result, err := NewParser(root).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if result.Package != "" {
		t.Errorf("Package = %q, want empty", result.Package)
	}
}

func TestParseFile_Imports(t *testing.T) {
	root := newPackageTree(t)
	code := `import os
import shop.rest.api as api, json
from shop.rest import controller, views as v
from shop.rest.schemas import *
from . import repository
from ..rest import serializers
from .events import OrderPlaced
from .... import nowhere
`
	path := writeFile(t, root, "src/shop/domain/order.py", code)

	result, err := NewParser(root).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	want := []string{
		"os.*",
		"shop.rest.api.*",
		"json.*",
		"shop.rest.controller",
		"shop.rest.views",
		"shop.rest.schemas.*",
		"shop.domain.repository",
		"shop.rest.serializers",
		"shop.domain.events.OrderPlaced",
	}
	if !reflect.DeepEqual(result.Imports, want) {
		t.Errorf("Imports = %v, want %v", result.Imports, want)
	}
}

func TestParseFile_Classes(t *testing.T) {
	root := t.TempDir()
	code := `from dataclasses import dataclass
import abc

@dataclass
class Point:
    x: float
    y: float

class Shape(abc.ABC, Generic[T], metaclass=abc.ABCMeta):
    def __init__(self, origin: Point):
        self.origin = origin

    @property
    def area(self) -> float:
        return 0.0

    class Kind:
        def label(self) -> str:
            return "shape"

def helper():
    pass
`
	path := writeFile(t, root, "shapes.py", code)

	result, err := NewParser(root).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	var names []string
	for _, c := range result.Classes {
		names = append(names, c.Name)
	}
	if !reflect.DeepEqual(names, []string{"Point", "Shape", "Kind"}) {
		t.Fatalf("classes = %v, want [Point Shape Kind]", names)
	}

	shape := result.Classes[1]
	if !reflect.DeepEqual(shape.Implements, []string{"abc.ABC", "Generic"}) {
		t.Errorf("Implements = %v, want [abc.ABC Generic]", shape.Implements)
	}
	if len(shape.Methods) != 2 {
		t.Fatalf("Methods = %d, want 2", len(shape.Methods))
	}
	if shape.Methods[0].Name != "__init__" || shape.Methods[0].ReturnType != "" {
		t.Errorf("Methods[0] = %+v", shape.Methods[0])
	}
	if shape.Methods[1].Name != "area" || shape.Methods[1].ReturnType != "float" {
		t.Errorf("Methods[1] = %+v", shape.Methods[1])
	}
	if shape.Start.Row != 8 {
		t.Errorf("Shape starts at row %d, want 8", shape.Start.Row)
	}

	if got := result.Classes[2].Methods; len(got) != 1 || got[0].ReturnType != "str" {
		t.Errorf("Kind methods = %+v", got)
	}
}

func TestParseFile_Malformed(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "broken.py", "def broken(:\n    pass\n")

	_, err := NewParser(root).ParseFile(context.Background(), path)
	if !errors.Is(err, ast.ErrMalformedSource) {
		t.Errorf("err = %v, want ErrMalformedSource", err)
	}
}

func TestParseFile_NonExistent(t *testing.T) {
	_, err := NewParser("/tmp").ParseFile(context.Background(), "/nonexistent/file.py")
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestRegistered(t *testing.T) {
	name, ok := ast.DefaultRegistry.GetParserName(".py")
	if !ok || name != Language {
		t.Fatalf("GetParserName(.py) = %q, %v", name, ok)
	}
	if !ast.DefaultRegistry.Supports("pkg/module.py") {
		t.Error("Supports(module.py) = false")
	}
}
