package model

// StageState is the runtime state of one stage.
type StageState string

const (
	StagePending   StageState = "pending"
	StageRunning   StageState = "running"
	StageSucceeded StageState = "succeeded"
	StageFailed    StageState = "failed"
	StageSkipped   StageState = "skipped"
)

// Terminal reports whether the state is final.
func (s StageState) Terminal() bool {
	switch s {
	case StageSucceeded, StageFailed, StageSkipped:
		return true
	default:
		return false
	}
}

// ErrorKind classifies a stage failure. Tool-level kinds surface here
// unchanged when a worker fails because of an exhausted tool call.
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindTimeout         ErrorKind = "timeout"
	KindRateLimited     ErrorKind = "rate-limited"
	KindUnauthorized    ErrorKind = "unauthorized"
	KindNotFound        ErrorKind = "not-found"
	KindTransient       ErrorKind = "transient"
	KindUnexpected      ErrorKind = "unexpected"
	KindDependencyUnmet ErrorKind = "dependency-unmet"
	KindWorkerFailure   ErrorKind = "worker-failure"
	KindCancelled       ErrorKind = "cancelled"
)

// StageResult is the tagged outcome of one stage.
//
// A succeeded stage carries a payload and optional warnings. A failed stage
// carries a kind and a message, and may still carry a partial payload so a
// degraded stage can contribute usable data downstream.
type StageResult struct {
	State    StageState
	Payload  any
	Partial  any
	Warnings []string
	Kind     ErrorKind
	Message  string
}

// Success builds a succeeded result.
func Success(payload any, warnings ...string) StageResult {
	return StageResult{
		State:    StageSucceeded,
		Payload:  payload,
		Warnings: warnings,
	}
}

// Fail builds a failed result without any usable output.
func Fail(kind ErrorKind, message string) StageResult {
	return StageResult{
		State:   StageFailed,
		Kind:    kind,
		Message: message,
	}
}

// FailPartial builds a failed result that still carries usable output.
func FailPartial(kind ErrorKind, message string, partial any) StageResult {
	return StageResult{
		State:   StageFailed,
		Kind:    kind,
		Message: message,
		Partial: partial,
	}
}

// Skip builds a skipped result, for workers that decide they have
// nothing to do with the context at hand.
func Skip(message string) StageResult {
	return StageResult{
		State:   StageSkipped,
		Message: message,
	}
}

// Succeeded reports whether the stage finished with a full payload.
func (r StageResult) Succeeded() bool { return r.State == StageSucceeded }

// Usable reports whether the result carries output a dependent stage can
// consume: a full payload, or a partial payload from a degraded stage.
func (r StageResult) Usable() bool {
	return r.State == StageSucceeded || r.Partial != nil
}

// Value returns the usable output of the stage, preferring the full payload.
func (r StageResult) Value() any {
	if r.State == StageSucceeded {
		return r.Payload
	}
	return r.Partial
}
