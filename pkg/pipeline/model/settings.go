package model

import "time"

// Settings is the run configuration handed to the pipeline constructor.
// It is copied at construction and never read from the environment.
type Settings struct {
	// StageRetries is how many times a RetryThenSkip stage re-invokes its
	// worker after the first failure.
	StageRetries int
	// Timeout bounds the whole run. Zero means no overall deadline.
	Timeout time.Duration
}
