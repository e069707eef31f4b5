// Package integration holds end-to-end tests that wire the real stores,
// the static embedder and the query engine together.
package integration
