// Package engine decides which checklist instruments are active for a subject.
//
// A program's conditions gate target instruments on source fields: prior
// answers (instrument:<measure_id>) or attribute paths into the subject's
// REM and simulation data. The engine evaluates them to a fixed point.
//
// EVALUATION:
//
//  1. Instruments with no conditions are active from the start.
//  2. Each sweep re-evaluates every inactive, gated instrument against the
//     active set as it stood when the sweep began, so the result does not
//     depend on declaration order.
//  3. A target activates when its conditions pass (all of them by default,
//     any one of them for one-pass targets) and every instrument it reads
//     is itself active and answered.
//  4. Sweeps repeat until one changes nothing. Activation only adds, so the
//     loop terminates; a sweep bound (WithMaxSweeps) guards against
//     pathological programs.
//
// Field resolution never fails: a missing relation, attribute or answer is
// "unavailable" and every predicate over it is false.
//
// Graphs are built once per program (BuildGraph) and are safe to share
// between goroutines. An Engine holds no per-subject state.
package engine
