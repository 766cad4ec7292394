package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const sceneHeader = "from manim import *\nfrom math import *\n\n"

var (
	pythonFenceRe  = regexp.MustCompile("(?s)```python(.*?)```")
	genericFenceRe = regexp.MustCompile("(?s)```(.*?)```")
	fenceLangRe    = regexp.MustCompile(`^[A-Za-z0-9_+.\-]*[ \t]*\r?\n`)
	classDeclRe    = regexp.MustCompile(`(?m)^([ \t]*class[ \t]+)([A-Za-z_][A-Za-z0-9_]*)`)
	lineSplitRe    = regexp.MustCompile(`\r?\n`)
	runTimeArgRe   = regexp.MustCompile(`run_time\s*=\s*[^,)]+`)
	leadingSpaceRe = regexp.MustCompile(`^\s*`)
)

// SceneClassName is the class name forced onto scene i (zero based).
func SceneClassName(i int) string {
	return fmt.Sprintf("Script%d", i+1)
}

// ExtractCode pulls the scene source out of a model answer. The last
// ```python fence wins, then the last generic fence, then the whole answer.
func ExtractCode(raw string) string {
	if m := pythonFenceRe.FindAllStringSubmatch(raw, -1); len(m) > 0 {
		return strings.TrimSpace(m[len(m)-1][1])
	}
	if m := genericFenceRe.FindAllStringSubmatch(raw, -1); len(m) > 0 {
		body := m[len(m)-1][1]
		// ```py\n ... ``` and friends
		body = fenceLangRe.ReplaceAllString(body, "")
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(raw)
}

// ForceClassName renames the first class declaration in code to name.
// Code without a class declaration is returned unchanged.
func ForceClassName(code, name string) string {
	loc := classDeclRe.FindStringSubmatchIndex(code)
	if loc == nil {
		return code
	}
	return code[:loc[4]] + name + code[loc[5]:]
}

// WrapSceneCode prepends the fixed import header.
func WrapSceneCode(code string) string {
	return sceneHeader + code + "\n"
}

// TimingPatch describes what PatchSceneTiming did.
type TimingPatch struct {
	PlayCount int
	PerAction float64
	Applied   bool
}

// PatchSceneTiming stretches the scene's animations so they add up to
// seconds. A header computing the per-action duration is injected after
// every construct method declaration and each self.play call gets
// run_time=dur, overriding any run_time it already had. Calls spanning
// several lines are patched where they close. Scenes with no play calls,
// or with no construct method, come back unchanged.
func PatchSceneTiming(code string, seconds float64) (string, TimingPatch) {
	lines := lineSplitRe.Split(code, -1)

	plays := 0
	hasConstruct := false
	for _, line := range lines {
		if strings.Contains(line, "self.play") {
			plays++
		}
		if strings.Contains(line, "def construct") {
			hasConstruct = true
		}
	}
	if plays == 0 || !hasConstruct {
		return code, TimingPatch{PlayCount: plays}
	}

	runtime := strconv.FormatFloat(seconds, 'f', -1, 64)
	out := make([]string, 0, len(lines)+3)
	var open *playCall
	for _, line := range lines {
		switch {
		case open != nil:
			out = open.feed(out, line)
			if open.closed {
				open = nil
			}
		case strings.Contains(line, "def construct"):
			indent := leadingSpaceRe.FindString(line) + "    "
			out = append(out,
				line,
				fmt.Sprintf("%sruntime = %s", indent, runtime),
				fmt.Sprintf("%splay = %d", indent, plays),
				fmt.Sprintf("%sdur = runtime / play", indent),
			)
		case strings.Contains(line, "self.play("):
			call := &playCall{}
			start := strings.Index(line, "self.play(") + len("self.play(")
			out = call.scan(out, line, start, 1)
			if !call.closed {
				open = call
			}
		default:
			out = append(out, line)
		}
	}

	return strings.Join(out, "\n"), TimingPatch{
		PlayCount: plays,
		PerAction: seconds / float64(plays),
		Applied:   true,
	}
}

// playCall tracks one self.play( call until its closing parenthesis.
type playCall struct {
	depth      int
	hasRunTime bool
	closed     bool
}

func (p *playCall) feed(out []string, line string) []string {
	return p.scan(out, line, 0, p.depth)
}

// scan walks line from start with the given paren depth and appends the
// (possibly patched) line to out.
func (p *playCall) scan(out []string, line string, start, depth int) []string {
	if runTimeArgRe.MatchString(line) {
		line = runTimeArgRe.ReplaceAllString(line, "run_time=dur")
		p.hasRunTime = true
	}

	var quote byte
	for i := start; i < len(line); i++ {
		ch := line[i]
		switch {
		case quote != 0:
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '#':
			p.depth = depth
			return append(out, line)
		case ch == '(':
			depth++
		case ch == ')':
			depth--
			if depth == 0 {
				p.closed = true
				p.depth = 0
				if p.hasRunTime {
					return append(out, line)
				}
				return insertRunTime(out, line, i)
			}
		}
	}
	p.depth = depth
	return append(out, line)
}

// insertRunTime adds run_time=dur before the closing parenthesis at idx.
func insertRunTime(out []string, line string, idx int) []string {
	head := strings.TrimRight(line[:idx], " \t")
	if strings.TrimSpace(head) != "" {
		sep := ", "
		switch {
		case strings.HasSuffix(head, "("):
			sep = ""
		case strings.HasSuffix(head, ","):
			sep = " "
		}
		return append(out, head+sep+"run_time=dur"+line[idx:])
	}

	// closing parenthesis on its own line
	if n := len(out); n > 0 {
		prev := strings.TrimRight(out[n-1], " \t")
		if !strings.HasSuffix(prev, ",") && !strings.HasSuffix(prev, "(") {
			out[n-1] = prev + ","
		}
	}
	return append(out, line[:idx]+"    run_time=dur", line)
}
