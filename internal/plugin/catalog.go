package plugin

import (
	messages "github.com/cucumber/messages/go/v21"

	"github.com/seantiz/cadence/internal/model"
)

// Kind is the dispatch semantics of an event key.
type Kind int

// Semantics kinds.
const (
	KindVoid Kind = iota + 1
	KindTransform
	KindPredicate
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindTransform:
		return "transform"
	case KindPredicate:
		return "predicate"
	default:
		return "unknown"
	}
}

// EventKey identifies one extension point in the catalog. Only the key types
// in this package implement it.
type EventKey interface {
	Name() string
	Kind() Kind
	eventKey()
}

// VoidKey is a notification point carrying a V. Handler results are discarded.
type VoidKey[V any] struct{ name string }

// Name implements EventKey.
func (k VoidKey[V]) Name() string { return k.name }

// Kind implements EventKey.
func (VoidKey[V]) Kind() Kind { return KindVoid }

func (VoidKey[V]) eventKey() {}

// TransformKey is a pipeline point threading a V through every handler.
type TransformKey[V any] struct{ name string }

// Name implements EventKey.
func (k TransformKey[V]) Name() string { return k.name }

// Kind implements EventKey.
func (TransformKey[V]) Kind() Kind { return KindTransform }

func (TransformKey[V]) eventKey() {}

// PredicateKey is a decision point resolving a V to a boolean.
type PredicateKey[V any] struct{ name string }

// Name implements EventKey.
func (k PredicateKey[V]) Name() string { return k.name }

// Kind implements EventKey.
func (PredicateKey[V]) Kind() Kind { return KindPredicate }

func (PredicateKey[V]) eventKey() {}

// The event catalog. Adding an extension point means adding a var here with
// its kind and value type, and appending it to catalog.
var (
	// Message carries every structured run-progress envelope.
	Message = VoidKey[*messages.Envelope]{name: "message"}

	// PathsResolve announces the feature and support paths of the run.
	PathsResolve = VoidKey[model.ResolvedPaths]{name: "paths:resolve"}

	// PicklesFilter may drop pickles from the run.
	PicklesFilter = TransformKey[[]model.FilterablePickle]{name: "pickles:filter"}

	// PicklesOrder may reorder or drop pickles.
	PicklesOrder = TransformKey[[]model.FilterablePickle]{name: "pickles:order"}

	// TestCaseRetry decides whether a failed attempt is executed again.
	TestCaseRetry = PredicateKey[model.RetryableFailure]{name: "testcase:retry"}
)

var catalog = []EventKey{
	Message,
	PathsResolve,
	PicklesFilter,
	PicklesOrder,
	TestCaseRetry,
}

// Keys returns every catalog key in definition order.
func Keys() []EventKey {
	keys := make([]EventKey, len(catalog))
	copy(keys, catalog)
	return keys
}

// Lookup returns the catalog key with the given wire name.
func Lookup(name string) (EventKey, bool) {
	for _, k := range catalog {
		if k.Name() == name {
			return k, true
		}
	}
	return nil, false
}

func inCatalog(key EventKey) bool {
	k, ok := Lookup(key.Name())
	return ok && k.Kind() == key.Kind()
}
