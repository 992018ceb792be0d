// Package engine drives test runs through the plugin coordinator. It creates
// the run record, initializes the built-in and user plugins, resolves the
// pickle list through the filter and order pipelines, executes each pickle
// with retries, and journals every message envelope of the run.
package engine
