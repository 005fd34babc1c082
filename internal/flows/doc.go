// Package flows contains pure-function orchestrators for every Gate operation.
//
// Each flow function (RunAuthenticate, RunRefreshSession, RunCompleteLogin,
// RunLogout) accepts a typed dependency struct and returns a result describing
// what happened, so the Gate can translate it into metrics, audit events and log
// lines without the flow knowing about any of them.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the session store and the refresh client.
// They do NOT own either resource; ownership stays with the Gate. Single-flight
// coalescing is applied by the Gate around RunRefreshSession.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goGate (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
package flows
