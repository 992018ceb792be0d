// Package filter is the built-in pickles:filter plugin. It narrows a run to
// pickles matching a tag expression and, optionally, name patterns.
package filter

import (
	"context"
	"fmt"
	"regexp"

	messages "github.com/cucumber/messages/go/v21"

	"github.com/seantiz/cadence/internal/model"
	"github.com/seantiz/cadence/internal/plugin"
	"github.com/seantiz/cadence/internal/tags"
)

// PluginName is the name the filter plugin is initialized under.
const PluginName = "filter"

// Options configures pickle selection.
type Options struct {
	// TagExpression selects pickles by tags. Empty selects everything.
	TagExpression string

	// Names are regular expressions; a pickle is kept when its name matches
	// any of them. Empty keeps every name.
	Names []string
}

// Selector is a compiled Options.
type Selector struct {
	tags  *tags.Expression
	names []*regexp.Regexp
}

// NewSelector compiles opts.
func NewSelector(opts Options) (*Selector, error) {
	expr, err := tags.Compile(opts.TagExpression)
	if err != nil {
		return nil, err
	}
	s := &Selector{tags: expr}
	for _, n := range opts.Names {
		re, err := regexp.Compile(n)
		if err != nil {
			return nil, fmt.Errorf("compile name pattern %q: %w", n, err)
		}
		s.names = append(s.names, re)
	}
	return s, nil
}

// Empty reports whether the selector keeps every pickle.
func (s *Selector) Empty() bool {
	return s.tags.Empty() && len(s.names) == 0
}

// Keep reports whether p is selected.
func (s *Selector) Keep(p *messages.Pickle) bool {
	if p == nil {
		return false
	}
	if !s.tags.Matches(p) {
		return false
	}
	if len(s.names) == 0 {
		return true
	}
	for _, re := range s.names {
		if re.MatchString(p.Name) {
			return true
		}
	}
	return false
}

// Apply returns the pickles in ps selected by s, preserving order.
func (s *Selector) Apply(ps []model.FilterablePickle) []model.FilterablePickle {
	out := make([]model.FilterablePickle, 0, len(ps))
	for _, fp := range ps {
		if s.Keep(fp.Pickle) {
			out = append(out, fp)
		}
	}
	return out
}

// Plugin returns the built-in filter plugin. Empty options register nothing.
func Plugin() plugin.Plugin[Options] {
	return plugin.New(PluginName, func(_ context.Context, pc plugin.Context[Options]) (plugin.Cleanup, error) {
		sel, err := NewSelector(pc.Options)
		if err != nil {
			return nil, err
		}
		if sel.Empty() {
			return nil, nil
		}

		logger := pc.Logger
		return nil, plugin.OnTransform(pc, plugin.PicklesFilter, func(_ context.Context, ps []model.FilterablePickle) (plugin.Result[[]model.FilterablePickle], error) {
			kept := sel.Apply(ps)
			if len(kept) == len(ps) {
				return plugin.Unchanged[[]model.FilterablePickle](), nil
			}
			logger.Info("pickles filtered", "before", len(ps), "after", len(kept))
			return plugin.Replace(kept), nil
		})
	})
}
