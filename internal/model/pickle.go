package model

import messages "github.com/cucumber/messages/go/v21"

// FilterablePickle is a pickle together with the source context that filter
// and order plugins may need to make a decision.
type FilterablePickle struct {
	Pickle          *messages.Pickle          `json:"pickle"`
	GherkinDocument *messages.GherkinDocument `json:"gherkinDocument,omitempty"`
	Location        *messages.Location        `json:"location,omitempty"`
}

// RetryableFailure describes one failed attempt at a test case.
// Attempt is zero-indexed: the first execution is attempt 0.
type RetryableFailure struct {
	Pickle  *messages.Pickle
	Attempt int
	Result  *messages.TestStepResult
}

// ResolvedPaths holds the feature and support paths resolved for a run.
type ResolvedPaths struct {
	UnexpandedFeaturePaths []string `json:"unexpandedFeaturePaths"`
	FeaturePaths           []string `json:"featurePaths"`
	RequirePaths           []string `json:"requirePaths"`
	ImportPaths            []string `json:"importPaths"`
}

// PickleTagNames returns the tag names of p, e.g. "@smoke". A nil pickle has no tags.
func PickleTagNames(p *messages.Pickle) []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		if t == nil {
			continue
		}
		names = append(names, t.Name)
	}
	return names
}

// PickleIDs returns the pickle ids of ps in order.
func PickleIDs(ps []FilterablePickle) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		if p.Pickle == nil {
			ids = append(ids, "")
			continue
		}
		ids = append(ids, p.Pickle.Id)
	}
	return ids
}
