package mir

// LayeredArchitecture is a named set of layers and the dependencies allowed
// between them.
type LayeredArchitecture struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Layers      []Layer         `json:"layers" yaml:"layers"`
	Relations   []LayerRelation `json:"relations" yaml:"relations"`
}

// Layer maps a layer name onto a package prefix.
type Layer struct {
	Name        string `json:"name" yaml:"name"`
	PackageName string `json:"package_name" yaml:"package_name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// LayerRelation says Source may depend on Target.
type LayerRelation struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Layer returns the layer with the given name.
func (l *LayeredArchitecture) Layer(name string) (Layer, bool) {
	for _, layer := range l.Layers {
		if layer.Name == name {
			return layer, true
		}
	}
	return Layer{}, false
}

// SourceSets groups the source trees an architecture is checked against.
type SourceSets struct {
	Name string      `json:"name" yaml:"name"`
	Sets []SourceSet `json:"sets" yaml:"sets"`
}

// SourceSet is one named source tree with the parser that reads it.
type SourceSet struct {
	Name    string   `json:"name" yaml:"name"`
	Parser  string   `json:"parser,omitempty" yaml:"parser,omitempty"`
	SrcDirs []string `json:"src_dirs" yaml:"src_dirs"`
	Attrs   []Attr   `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// SrcDirs returns every source directory across all sets, in declaration order.
func (s *SourceSets) SrcDirs() []string {
	var dirs []string
	for _, set := range s.Sets {
		dirs = append(dirs, set.SrcDirs...)
	}
	return dirs
}
