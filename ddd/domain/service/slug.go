package service

import (
	"regexp"
	"strings"
)

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

const maxSlugLen = 40

// Slug turns a prompt into a short file-name-safe fragment. It returns
// "job" when nothing usable is left.
func Slug(s string) string {
	slug := strings.Trim(nonSlugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return "job"
	}
	return slug
}
