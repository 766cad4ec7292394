package service

import (
	"reflect"
	"testing"
)

func TestParseScript(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		nar  []string
		viz  []string
	}{
		{
			name: "repeated opening delimiter",
			raw:  "<nar> First idea <nar>\n<viz>Draw a circle<viz>\n<nar>Second<nar><viz> Grow it </viz>",
			nar:  []string{"First idea", "Second"},
			viz:  []string{"Draw a circle", "Grow it"},
		},
		{
			name: "closing tags",
			raw:  "<nar>Hello</nar><viz>Show text</viz>",
			nar:  []string{"Hello"},
			viz:  []string{"Show text"},
		},
		{
			name: "nested markup stripped",
			raw:  "<nar>The <b>area</b> is <i>pi r^2</i><nar><viz>Shade <em>disk</em><viz>",
			nar:  []string{"The area is pi r^2"},
			viz:  []string{"Shade disk"},
		},
		{
			name: "multi-line block",
			raw:  "<nar>\n  line one\n  line two\n<nar><viz>x<viz>",
			nar:  []string{"line one\n  line two"},
			viz:  []string{"x"},
		},
		{
			name: "empty blocks dropped",
			raw:  "<nar>   <nar><nar>real<nar><viz><br><viz>",
			nar:  []string{"real"},
			viz:  []string{},
		},
		{
			name: "no blocks",
			raw:  "Sure! Here is a video about triangles.",
			nar:  []string{},
			viz:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseScript(tt.raw)
			if !reflect.DeepEqual(got.Narrations, tt.nar) {
				t.Errorf("narrations = %q, want %q", got.Narrations, tt.nar)
			}
			if !reflect.DeepEqual(got.Visualizations, tt.viz) {
				t.Errorf("visualizations = %q, want %q", got.Visualizations, tt.viz)
			}
		})
	}
}

func TestScriptPairsAndTruncate(t *testing.T) {
	s := Script{
		Narrations:     []string{"a", "b", "c"},
		Visualizations: []string{"x", "y"},
	}
	if s.Empty() {
		t.Fatal("script is not empty")
	}
	if s.Pairs() != 2 {
		t.Fatalf("Pairs() = %d", s.Pairs())
	}
	tr := s.Truncate(s.Pairs())
	if len(tr.Narrations) != 2 || tr.Narrations[1] != "b" || len(tr.Visualizations) != 2 {
		t.Errorf("unexpected truncation %+v", tr)
	}
	if !(Script{Narrations: []string{"a"}}).Empty() {
		t.Error("missing visualizations must count as empty")
	}
}
