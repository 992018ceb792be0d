// Package source reads and writes streams of newline-delimited message
// envelopes and assembles the pickles they describe.
package source

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	messages "github.com/cucumber/messages/go/v21"

	"github.com/seantiz/cadence/internal/model"
)

// Read decodes envelopes from r and returns every pickle in stream order,
// each paired with its gherkin document and the location of the scenario
// or example row it came from. Envelopes other than gherkinDocument and
// pickle are ignored.
func Read(r io.Reader) ([]model.FilterablePickle, error) {
	docs := make(map[string]*messages.GherkinDocument)
	var pickles []*messages.Pickle

	dec := json.NewDecoder(bufio.NewReader(r))
	for n := 1; ; n++ {
		var env messages.Envelope
		err := dec.Decode(&env)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode envelope %d: %w", n, err)
		}
		switch {
		case env.GherkinDocument != nil:
			docs[env.GherkinDocument.Uri] = env.GherkinDocument
		case env.Pickle != nil:
			pickles = append(pickles, env.Pickle)
		}
	}

	out := make([]model.FilterablePickle, 0, len(pickles))
	for _, p := range pickles {
		doc := docs[p.Uri]
		out = append(out, model.FilterablePickle{
			Pickle:          p,
			GherkinDocument: doc,
			Location:        Locate(doc, p),
		})
	}
	return out, nil
}

// Write encodes each pickle of ps as a pickle envelope on its own line.
func Write(w io.Writer, ps []model.FilterablePickle) error {
	enc := json.NewEncoder(w)
	for _, fp := range ps {
		if err := enc.Encode(&messages.Envelope{Pickle: fp.Pickle}); err != nil {
			return fmt.Errorf("encode pickle: %w", err)
		}
	}
	return nil
}

// Locate returns the source location of p within doc: the examples row for
// a pickle generated from a scenario outline, the scenario otherwise. It
// returns nil when doc does not contain p's AST nodes.
func Locate(doc *messages.GherkinDocument, p *messages.Pickle) *messages.Location {
	if doc == nil || doc.Feature == nil || p == nil || len(p.AstNodeIds) == 0 {
		return nil
	}
	scenario := findScenario(doc.Feature.Children, p.AstNodeIds[0])
	if scenario == nil {
		return nil
	}
	if len(p.AstNodeIds) > 1 {
		for _, ex := range scenario.Examples {
			for _, row := range ex.TableBody {
				if row.Id == p.AstNodeIds[1] {
					return row.Location
				}
			}
		}
	}
	return scenario.Location
}

func findScenario(children []*messages.FeatureChild, id string) *messages.Scenario {
	for _, child := range children {
		switch {
		case child.Scenario != nil && child.Scenario.Id == id:
			return child.Scenario
		case child.Rule != nil:
			for _, rc := range child.Rule.Children {
				if rc.Scenario != nil && rc.Scenario.Id == id {
					return rc.Scenario
				}
			}
		}
	}
	return nil
}
