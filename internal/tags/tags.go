// Package tags matches pickles against cucumber tag expressions such as
// "@smoke and not (@slow or @wip)".
package tags

import (
	"fmt"
	"strings"

	messages "github.com/cucumber/messages/go/v21"
	tagexpressions "github.com/cucumber/tag-expressions/go/v6"

	"github.com/seantiz/cadence/internal/model"
)

// Expression is a compiled tag expression. The zero value and an expression
// compiled from an empty string match every pickle, including untagged ones.
type Expression struct {
	source string
	eval   tagexpressions.Evaluatable
}

// Compile parses expr. Surrounding whitespace is ignored.
func Compile(expr string) (*Expression, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Expression{}, nil
	}
	eval, err := tagexpressions.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse tag expression %q: %w", expr, err)
	}
	return &Expression{source: expr, eval: eval}, nil
}

// Empty reports whether the expression matches unconditionally.
func (e *Expression) Empty() bool {
	return e == nil || e.eval == nil
}

// Matches reports whether the tags of p satisfy the expression.
func (e *Expression) Matches(p *messages.Pickle) bool {
	return e.MatchesTags(model.PickleTagNames(p))
}

// MatchesTags reports whether the given tag names satisfy the expression.
func (e *Expression) MatchesTags(names []string) bool {
	if e.Empty() {
		return true
	}
	return e.eval.Evaluate(names)
}

// String returns the expression source.
func (e *Expression) String() string {
	if e == nil {
		return ""
	}
	return e.source
}
