package recording

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// URLFilter decides which page URLs are captured. Patterns are doublestar
// globs matched against the full URL, with "**" crossing path segments.
// An empty filter admits everything.
type URLFilter struct {
	patterns []string
}

// NewURLFilter validates and compiles the configured globs
func NewURLFilter(patterns []string) (*URLFilter, error) {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid url filter pattern: %q", pattern)
		}
	}
	return &URLFilter{patterns: patterns}, nil
}

// Allowed reports whether a URL passes the filter.
// URLs that fail to match any pattern are dropped; actions without a URL
// are always allowed.
func (f *URLFilter) Allowed(url string) bool {
	if len(f.patterns) == 0 || url == "" {
		return true
	}
	for _, pattern := range f.patterns {
		if ok, err := doublestar.Match(pattern, url); err == nil && ok {
			return true
		}
	}
	return false
}
