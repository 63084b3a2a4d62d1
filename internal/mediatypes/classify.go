package mediatypes

import (
	"path/filepath"
	"strings"
)

// RenamedOriginalPrefix marks an original video that was moved aside after a
// successful transcode. Files carrying it are never imported again.
const RenamedOriginalPrefix = "$_"

// Excluder holds the compiled exclusion globs. The zero value and nil both
// exclude nothing.
type Excluder struct {
	patterns []string
	invalid  []string
}

// NewExcluder compiles a list of glob patterns (filepath.Match syntax).
// Leading "**/" and trailing "/**" are stripped so "**/thumbs/**" behaves
// like "thumbs". Malformed patterns are kept aside and never match.
func NewExcluder(patterns []string) *Excluder {
	e := &Excluder{}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(filepath.ToSlash(p)))
		for strings.HasPrefix(p, "**/") {
			p = strings.TrimPrefix(p, "**/")
		}
		for strings.HasSuffix(p, "/**") {
			p = strings.TrimSuffix(p, "/**")
		}
		if p == "" {
			continue
		}
		if _, err := filepath.Match(p, ""); err != nil {
			e.invalid = append(e.invalid, p)
			continue
		}
		e.patterns = append(e.patterns, p)
	}
	return e
}

// Invalid returns the patterns that failed to compile.
func (e *Excluder) Invalid() []string {
	if e == nil {
		return nil
	}
	return e.invalid
}

// Len returns the number of usable patterns.
func (e *Excluder) Len() int {
	if e == nil {
		return 0
	}
	return len(e.patterns)
}

// Match reports whether path is excluded. A pattern matches when it matches
// the whole path, the base name, or any single path segment.
func (e *Excluder) Match(path string) bool {
	if e == nil || len(e.patterns) == 0 {
		return false
	}
	p := strings.ToLower(filepath.ToSlash(path))
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for _, pattern := range e.patterns {
		if ok, _ := filepath.Match(pattern, p); ok {
			return true
		}
		if strings.Contains(pattern, "/") {
			continue
		}
		for _, seg := range segments {
			if ok, _ := filepath.Match(pattern, seg); ok {
				return true
			}
		}
	}
	return false
}

// IsHidden reports whether the base name of path starts with a dot.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// IsRenamedOriginal reports whether path is an original moved aside by the
// transcode gate.
func IsRenamedOriginal(path string) bool {
	return strings.HasPrefix(filepath.Base(path), RenamedOriginalPrefix)
}

// RenamedOriginalPath returns where the transcode gate parks the original.
func RenamedOriginalPath(path string) string {
	return filepath.Join(filepath.Dir(path), RenamedOriginalPrefix+filepath.Base(path))
}

// OriginalFromRenamed reverses RenamedOriginalPath.
func OriginalFromRenamed(path string) string {
	base := strings.TrimPrefix(filepath.Base(path), RenamedOriginalPrefix)
	return filepath.Join(filepath.Dir(path), base)
}

// Classify decides which pipeline, if any, accepts path. Rules are applied
// in order: hidden or renamed-original base name, exclusion globs, video
// extensions, image extensions. It performs no I/O and accepts any string.
func Classify(path string, excluder *Excluder) LibraryType {
	base := filepath.Base(path)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return None
	}
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, RenamedOriginalPrefix) {
		return None
	}
	if excluder.Match(path) {
		return None
	}
	return TypeForExtension(strings.ToLower(filepath.Ext(base)))
}
