package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns drop listing and navigation pages that never hold a
// single article.
var defaultExcludePatterns = []string{
	"/tag/",
	"/tags/",
	"/category/",
	"/categories/",
	"/author/",
	"/archive",
	"/feed",
	"/wp-admin",
	"/admin/",
	"/page/",
}

// PathMatcher filters URLs. A pattern containing '*' is a glob against the
// URL path ("/blog/*" also matches "/blog/a/b"); any other pattern is a
// case-insensitive substring of the whole URL.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher, falling back to the default patterns
// if none are provided.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}
	return &PathMatcher{patterns: lowered}
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded checks whether a URL matches any pattern. Unparseable URLs are
// excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return true
	}
	lowerURL := strings.ToLower(rawURL)
	urlPath := strings.ToLower(u.Path)
	for _, pattern := range m.patterns {
		if strings.Contains(pattern, "*") {
			if matchSegmented(pattern, urlPath) {
				return true
			}
			continue
		}
		if strings.Contains(lowerURL, pattern) {
			return true
		}
	}
	return false
}

// matchSegmented tries path.Match first, then treats a trailing "/*" as a
// prefix match over any depth.
func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	return false
}
