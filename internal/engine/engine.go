// Package engine abstracts the external numerical toolkit the pipeline
// delegates its heavy lifting to (calibration solves, flagging, apply steps).
// Stages build Job descriptions and block on their completion; this package
// owns how a job actually reaches the toolkit.
package engine

import "context"

// Engine runs toolkit jobs. The real implementation shells out to the
// toolkit's batch interface; tests use the scripted mock.
type Engine interface {
	// Invoke runs one toolkit task to completion and returns its result.
	Invoke(ctx context.Context, job Job) (*JobResult, error)

	// Summary runs the toolkit's metadata listing over a dataset and
	// returns the raw JSON document.
	Summary(ctx context.Context, visPath string) ([]byte, error)
}
