// Package model provides the data structures and contracts for the pipeline package.
// It defines the stage specifications, the accumulated execution context, the
// per-stage results, and the final run report.
package model
