// Package pipeline sequences analysis stages over a shared execution context.
//
// A pipeline owns an ordered list of stage specifications and runs them
// strictly one after the other. Each stage reads every prior output from the
// accumulated context and contributes exactly one named result back; the
// pipeline alone writes to the context, precisely when a stage reaches a
// terminal state. Stage failures are isolated: a declared failure policy
// decides whether the run aborts, skips ahead, or retries the stage, and a
// panicking worker is downgraded to an ordinary failed result instead of
// taking the process down.
//
// The run always ends with a report listing every declared stage and its
// terminal outcome, in declaration order, whatever happened along the way.
package pipeline
