package guard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidPattern is wrapped by every pattern compilation failure.
var ErrInvalidPattern = errors.New("invalid package pattern")

// PackagePattern is a compiled dotted package pattern.
//
// A `*` segment matches exactly one package segment. `..` matches zero or
// more segments and may appear between two segments or at either end:
// `com..dao` matches `com.dao` and `com.app.user.dao`, `..dao` matches `dao`
// but not `userdao`.
type PackagePattern struct {
	raw  string
	glob string
}

// CompilePattern validates pattern and translates it to a path glob where
// each package segment is one path element and `..` becomes `**`.
func CompilePattern(pattern string) (*PackagePattern, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}

	parts := strings.Split(pattern, "..")
	var elems []string
	for i, part := range parts {
		if i > 0 {
			elems = append(elems, "**")
		}
		if part == "" {
			if i != 0 && i != len(parts)-1 {
				return nil, fmt.Errorf("%w: %q: consecutive '..'", ErrInvalidPattern, pattern)
			}
			continue
		}
		if strings.HasPrefix(part, ".") || strings.HasSuffix(part, ".") {
			return nil, fmt.Errorf("%w: %q: '..' must separate whole segments", ErrInvalidPattern, pattern)
		}
		for _, seg := range strings.Split(part, ".") {
			if err := checkSegment(seg); err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
			}
			elems = append(elems, seg)
		}
	}

	glob := strings.Join(elems, "/")
	if !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}
	return &PackagePattern{raw: pattern, glob: glob}, nil
}

func checkSegment(seg string) error {
	if seg == "" {
		return errors.New("empty segment")
	}
	if strings.Contains(seg, "**") {
		return errors.New("'**' is not a segment wildcard, use '..'")
	}
	if strings.ContainsAny(seg, `?[]{}\/`) {
		return fmt.Errorf("segment %q contains a reserved character", seg)
	}
	return nil
}

// MustCompilePattern is CompilePattern for patterns known to be valid.
func MustCompilePattern(pattern string) *PackagePattern {
	p, err := CompilePattern(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *PackagePattern) String() string { return p.raw }

// Match reports whether the whole package name matches the pattern.
func (p *PackagePattern) Match(pkg string) bool {
	if !validPackage(pkg) {
		return false
	}
	ok, err := doublestar.Match(p.glob, strings.ReplaceAll(pkg, ".", "/"))
	return err == nil && ok
}

// IsMatch compiles pattern and matches pkg against it. An invalid pattern
// never matches.
func IsMatch(pattern, pkg string) bool {
	p, err := CompilePattern(pattern)
	if err != nil {
		return false
	}
	return p.Match(pkg)
}

func validPackage(pkg string) bool {
	if pkg == "" || strings.ContainsAny(pkg, "/") {
		return false
	}
	for _, seg := range strings.Split(pkg, ".") {
		if seg == "" {
			return false
		}
	}
	return true
}
