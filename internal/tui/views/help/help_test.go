package help

import (
	"strings"
	"testing"
)

func sample() Model {
	return New("notty",
		Section{Title: "Control", Keys: [][2]string{{"c", "connect"}, {"space", "stop"}}},
		Section{Title: "Navigation", Keys: [][2]string{{"s", "show route"}}},
	)
}

func TestMarkdownListsEveryBinding(t *testing.T) {
	md := sample().Markdown()
	for _, want := range []string{"## Control", "## Navigation", "| `c` | connect |", "| `s` | show route |"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestViewRendersPlainStyle(t *testing.T) {
	m := sample()
	m.SetWidth(80)
	v := m.View()
	for _, want := range []string{"Control", "connect", "show route", "esc:close"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}

func TestSetWidthCaches(t *testing.T) {
	m := sample()
	m.SetWidth(80)
	first := m.rendered
	m.rendered = "cached"
	m.SetWidth(80)
	if m.rendered != "cached" {
		t.Error("same width should not re-render")
	}
	m.SetWidth(100)
	if m.rendered == "cached" || m.rendered == "" {
		t.Errorf("new width should re-render, got %q (first %d bytes)", m.rendered, len(first))
	}
}
