// Package embedding implements the content-addressed vector cache backing
// the semantic ranker of the smart-discovery engine (spec.md §4.5
// "Embedding Index"): a flat in-memory cosine-similarity store, built once
// per reload and published via an atomic pointer swap, whose vectors are
// persisted to a binary side file so restarts avoid re-embedding unchanged
// tools.
package embedding
