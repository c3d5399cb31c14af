package transform

import (
	"github.com/c360studio/archspec/dsl"
	"github.com/c360studio/archspec/mir"
)

// declareLayered validates every layered block, including ones that lose to
// an earlier declaration.
func (l *lowerer) declareLayered(decl *dsl.LayeredDecl) error {
	if err := validateLayered(decl); err != nil {
		return err
	}
	if l.layered != nil {
		l.warn(WarnDuplicateDeclaration, decl.Name, decl.Loc,
			"only one layered declaration is used, %q wins", l.layered.Name)
		return nil
	}

	arch := &mir.LayeredArchitecture{
		Name:        decl.Name,
		Description: decl.Description,
		Layers:      make([]mir.Layer, 0, len(decl.Layers)),
		Relations:   make([]mir.LayerRelation, 0, len(decl.Dependencies)),
	}
	seen := make(map[string]bool, len(decl.Layers))
	packages := make(map[string]string, len(decl.Layers))
	for _, layer := range decl.Layers {
		if seen[layer.Name] {
			l.warn(WarnDuplicateDeclaration, layer.Name, layer.Loc,
				"layer declared more than once in %q, first declaration wins", decl.Name)
			continue
		}
		seen[layer.Name] = true
		if owner, ok := packages[layer.Package]; ok && layer.Package != "" {
			l.warn(WarnSharedLayerPackage, layer.Name, layer.Loc,
				"package %q is also used by layer %q, both are checked as one layer", layer.Package, owner)
		} else {
			packages[layer.Package] = layer.Name
		}
		arch.Layers = append(arch.Layers, mir.Layer{
			Name:        layer.Name,
			PackageName: layer.Package,
			Description: layer.Description,
		})
	}
	for _, dep := range decl.Dependencies {
		arch.Relations = append(arch.Relations, mir.LayerRelation{Source: dep.Source, Target: dep.Target})
	}

	l.layered = arch
	return nil
}

// validateLayered checks that every dependency rule names layers declared in
// the same block. It is the only check whose failure aborts lowering.
func validateLayered(decl *dsl.LayeredDecl) error {
	layers := make(map[string]bool, len(decl.Layers))
	for _, layer := range decl.Layers {
		layers[layer.Name] = true
	}
	for _, dep := range decl.Dependencies {
		for _, name := range []string{dep.Source, dep.Target} {
			if !layers[name] {
				return &LoweringError{Layered: decl.Name, Layer: name, Loc: dep.Loc}
			}
		}
	}
	return nil
}
