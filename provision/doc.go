// Package provision resolves catalog services and pushes them to the fleet
// control plane.
//
// A request names a service and supplies variables. The orchestrator looks the
// service up, resolves the baseline it extends (at most one hop), and merges
// the caller's variables over the target's and then the baseline's defaults.
// The baseline is pushed first unless its presence probe, named by the
// presence_check label, reports it already configured. The target is pushed
// next, and the control plane's per-step answer becomes an Outcome.
//
// Failures never surface as Go errors from ResolveAndProvision. They are
// folded into the Outcome with a FailureKind so HTTP and CLI front ends can
// tell caller mistakes from remote failures.
package provision
