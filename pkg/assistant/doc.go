// Package assistant assembles the repository publication review pipeline:
// five analysis stages over a shared execution context, each limited to a
// fixed set of external tools.
//
// The stages only aggregate and route tool output; the call functions that
// actually read repositories, search the web, extract keywords or retrieve
// reference documentation are injected and treated as opaque.
package assistant
