// Package tool wraps single external calls with the retry, rate-limit and
// cache envelope the pipeline stages rely on.
//
// An Invoker never panics and never aborts its caller: exhausted calls come
// back as an ordinary *Error value that the stage worker turns into its own
// result. The call functions themselves are opaque to this package.
package tool
