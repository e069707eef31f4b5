// Package preflight validates the environment before reports are indexed or
// served.
//
// The package validates:
//   - The documents directory exists and holds report files
//   - Write permissions and free disk space in the data directory
//   - File descriptor limits (minimum 1024)
//   - Index presence and cross-store consistency
//   - Embedding and completion endpoint reachability (skipped offline)
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(preflight.WithIndex(builder))
//	results := checker.RunAll(ctx, cfg)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
