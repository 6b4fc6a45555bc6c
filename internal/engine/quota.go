package engine

// sweepBudget counts changing sweeps and enforces the sweep bound.
//
// Activation is monotone over a finite instrument set, so it always reaches
// a fixed point within len(instruments) changing sweeps. The bound is a
// budget below that: a program that needs more sweeps than the budget is
// treated as misconfigured and reported instead of silently accepted.
type sweepBudget struct {
	max  int
	used int
}

func newSweepBudget(max int) *sweepBudget {
	return &sweepBudget{max: max}
}

// spend records one changing sweep. It reports false, without recording,
// once the budget is exhausted.
func (b *sweepBudget) spend() bool {
	if b.used >= b.max {
		return false
	}
	b.used++
	return true
}

// Used returns the number of changing sweeps recorded.
func (b *sweepBudget) Used() int {
	return b.used
}
