package engine

// checkAdmission is the WIP limiter: a pure predicate over the column's
// limit and its live card count. Limit 0 means unlimited. It is evaluated
// against the live count at commit time, never a running counter, so it
// cannot drift from actual state.
func checkAdmission(limit, currentCount int) bool {
	if limit == 0 {
		return true
	}
	return currentCount < limit
}
