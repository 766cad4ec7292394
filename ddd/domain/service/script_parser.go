package service

import (
	"regexp"
	"strings"
)

var (
	// a block is closed by either </nar> or a second <nar>
	narBlockRe = regexp.MustCompile(`(?s)<nar>(.*?)(?:</nar>|<nar>)`)
	vizBlockRe = regexp.MustCompile(`(?s)<viz>(.*?)(?:</viz>|<viz>)`)
	markupRe   = regexp.MustCompile(`<.*?>`)
)

// Script is the parsed narration/visualization script. Segment i of
// Narrations belongs to segment i of Visualizations.
type Script struct {
	Narrations     []string
	Visualizations []string
}

// ParseScript extracts the <nar> and <viz> blocks of raw in document order.
// Nested markup and surrounding whitespace are stripped and empty blocks dropped.
func ParseScript(raw string) Script {
	return Script{
		Narrations:     extractBlocks(narBlockRe, raw),
		Visualizations: extractBlocks(vizBlockRe, raw),
	}
}

func extractBlocks(re *regexp.Regexp, raw string) []string {
	out := make([]string, 0, 6)
	for _, m := range re.FindAllStringSubmatch(raw, -1) {
		text := strings.TrimSpace(markupRe.ReplaceAllString(strings.TrimSpace(m[1]), ""))
		if text != "" {
			out = append(out, text)
		}
	}
	return out
}

// Empty reports whether either sequence has no segments.
func (s Script) Empty() bool {
	return len(s.Narrations) == 0 || len(s.Visualizations) == 0
}

// Pairs is the number of usable segment pairs.
func (s Script) Pairs() int {
	return min(len(s.Narrations), len(s.Visualizations))
}

// Truncate keeps the first n pairs of both sequences.
func (s Script) Truncate(n int) Script {
	if n > len(s.Narrations) {
		n = len(s.Narrations)
	}
	if n > len(s.Visualizations) {
		n = len(s.Visualizations)
	}
	return Script{
		Narrations:     append([]string(nil), s.Narrations[:n]...),
		Visualizations: append([]string(nil), s.Visualizations[:n]...),
	}
}
