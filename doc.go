// Package mllab bundles two small machine learning exercises: low-rank
// image compression built on the thin singular value decomposition, and
// spam classification with tiny embedding networks trained from scratch.
//
// The public APIs live in the svdimage and spamfilter packages. The
// mllab command under cmd/mllab drives both, records every sweep and
// training run in SQLite and renders the results as HTML charts.
package mllab
