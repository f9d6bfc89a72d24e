package color

import (
	"regexp"
	"testing"
)

var hexColor = regexp.MustCompile(`^#[0-9A-F]{6}$`)

func TestForLabelDeterministic(t *testing.T) {
	a := ForLabel("golang")
	b := ForLabel("golang")
	if a != b {
		t.Errorf("same name produced different colors: %s vs %s", a, b)
	}
}

func TestForLabelFormat(t *testing.T) {
	for _, name := range []string{"golang", "databases", "a", "", "наука"} {
		c := ForLabel(name)
		if !hexColor.MatchString(c) {
			t.Errorf("ForLabel(%q) = %q, not a hex color", name, c)
		}
	}
}

func TestForLabelSpread(t *testing.T) {
	seen := map[string]bool{}
	for _, name := range []string{"golang", "databases", "writing", "history", "design"} {
		seen[ForLabel(name)] = true
	}
	if len(seen) < 3 {
		t.Errorf("expected varied colors across names, got %d distinct", len(seen))
	}
}
