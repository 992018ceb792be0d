// Package order is the built-in pickles:order plugin. It runs pickles in
// defined order, reversed, or shuffled with a reproducible seed.
package order

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/seantiz/cadence/internal/model"
	"github.com/seantiz/cadence/internal/plugin"
)

// PluginName is the name the order plugin is initialized under.
const PluginName = "order"

// Order kinds.
const (
	Defined = "defined"
	Reverse = "reverse"
	Random  = "random"
)

// ErrInvalidOrder is returned for an unrecognized order string.
var ErrInvalidOrder = errors.New("invalid order")

// Options configures pickle ordering. Order is "defined", "reverse",
// "random" or "random:<seed>".
type Options struct {
	Order string
}

// Ordering is a parsed order.
type Ordering struct {
	Kind string
	Seed string
}

// Parse parses an order string. An empty string means defined order.
func Parse(s string) (Ordering, error) {
	s = strings.TrimSpace(s)
	kind, seed, hasSeed := strings.Cut(s, ":")
	switch kind {
	case "", Defined:
		if hasSeed {
			break
		}
		return Ordering{Kind: Defined}, nil
	case Reverse:
		if hasSeed {
			break
		}
		return Ordering{Kind: Reverse}, nil
	case Random:
		if hasSeed && seed == "" {
			break
		}
		return Ordering{Kind: Random, Seed: seed}, nil
	}
	return Ordering{}, fmt.Errorf("%w: %q (want defined, reverse or random[:seed])", ErrInvalidOrder, s)
}

// String renders the ordering back into its option form.
func (s Ordering) String() string {
	if s.Kind == Random && s.Seed != "" {
		return Random + ":" + s.Seed
	}
	return s.Kind
}

// Shuffle returns a copy of ps shuffled deterministically by seed.
func Shuffle(ps []model.FilterablePickle, seed string) []model.FilterablePickle {
	out := make([]model.FilterablePickle, len(ps))
	copy(out, ps)
	s1, s2 := seedState(seed)
	r := rand.New(rand.NewPCG(s1, s2))
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// seedState turns a seed string into PCG state. Numeric seeds are used as-is
// so that they are easy to reason about; anything else is hashed.
func seedState(seed string) (uint64, uint64) {
	if n, err := strconv.ParseUint(seed, 10, 64); err == nil {
		return n, n ^ 0x9e3779b97f4a7c15
	}
	h := fnv.New64a()
	h.Write([]byte(seed))
	sum := h.Sum64()
	return sum, sum ^ 0x9e3779b97f4a7c15
}

// reverse returns a reversed copy of ps.
func reverse(ps []model.FilterablePickle) []model.FilterablePickle {
	out := make([]model.FilterablePickle, len(ps))
	for i, p := range ps {
		out[len(ps)-1-i] = p
	}
	return out
}

// Plugin returns the built-in order plugin. Defined order registers nothing.
func Plugin() plugin.Plugin[Options] {
	return plugin.New(PluginName, func(_ context.Context, pc plugin.Context[Options]) (plugin.Cleanup, error) {
		ord, err := Parse(pc.Options.Order)
		if err != nil {
			return nil, err
		}

		switch ord.Kind {
		case Defined:
			return nil, nil
		case Reverse:
			return nil, plugin.OnTransform(pc, plugin.PicklesOrder, func(_ context.Context, ps []model.FilterablePickle) (plugin.Result[[]model.FilterablePickle], error) {
				return plugin.Replace(reverse(ps)), nil
			})
		}

		seed := ord.Seed
		if seed == "" {
			seed = strconv.FormatUint(rand.Uint64()%1_000_000, 10)
			pc.Logger.Info("random order seed generated; rerun with this seed to reproduce", "order", Random+":"+seed)
		}
		return nil, plugin.OnTransform(pc, plugin.PicklesOrder, func(_ context.Context, ps []model.FilterablePickle) (plugin.Result[[]model.FilterablePickle], error) {
			return plugin.Replace(Shuffle(ps, seed)), nil
		})
	})
}
