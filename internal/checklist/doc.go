// Package checklist runs checklists against the answer store.
//
// A Service is the write path around the activation engine: it records
// subject documents and answers on one logical clock, evaluates a subject's
// checklist from the latest stored answers, and optionally logs the result
// as an evaluation snapshot.
//
// # Eligibility
//
// An answer is accepted only for an instrument that is active given the
// answers recorded before it. Imports (Import) skip this check so that a
// complete answer file can be loaded in any order.
//
// # Verification
//
// Every stored evaluation carries the seq it was taken at. Verify rebuilds
// the answer state as of that seq, re-runs activation and compares the
// result, so a changed program or engine shows up as a mismatch rather than
// silently different checklists.
package checklist
