package tags

import (
	"testing"

	messages "github.com/cucumber/messages/go/v21"
)

func pickleWithTags(names ...string) *messages.Pickle {
	p := &messages.Pickle{Id: "p"}
	for i, n := range names {
		p.Tags = append(p.Tags, &messages.PickleTag{Name: n, AstNodeId: string(rune('0' + i))})
	}
	return p
}

func TestMatches(t *testing.T) {
	tests := []struct {
		expr string
		tags []string
		want bool
	}{
		{"", nil, true},
		{"   ", []string{"@x"}, true},
		{"@stuff", []string{"@stuff"}, true},
		{"@stuff", []string{"@things"}, false},
		{"@stuff", nil, false},
		{"not @wip", []string{"@smoke"}, true},
		{"not @wip", []string{"@wip"}, false},
		{"@a and @b", []string{"@a"}, false},
		{"@a and @b", []string{"@b", "@a"}, true},
		{"@a or @b", []string{"@b"}, true},
		{"@smoke and not (@slow or @wip)", []string{"@smoke", "@slow"}, false},
		{"@smoke and not (@slow or @wip)", []string{"@smoke"}, true},
	}

	for _, tt := range tests {
		e, err := Compile(tt.expr)
		if err != nil {
			t.Fatalf("Compile(%q): %v", tt.expr, err)
		}
		if got := e.Matches(pickleWithTags(tt.tags...)); got != tt.want {
			t.Errorf("%q matches %v = %v, want %v", tt.expr, tt.tags, got, tt.want)
		}
	}
}

func TestCompileMalformed(t *testing.T) {
	for _, expr := range []string{"@a and", "(@a", "@a or or @b"} {
		if _, err := Compile(expr); err == nil {
			t.Errorf("Compile(%q) succeeded, want error", expr)
		}
	}
}

func TestZeroExpression(t *testing.T) {
	var e *Expression
	if !e.Empty() || !e.Matches(nil) || e.String() != "" {
		t.Error("nil expression should be empty and match everything")
	}
	e, err := Compile("@a")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got := e.String(); got != "@a" {
		t.Errorf("String() = %q, want @a", got)
	}
}
