package gating

import "errors"

// ErrBudgetExceeded is returned by Provision when the candidate pool is
// non-empty but not a single candidate fits under the requested token/count
// budget.
var ErrBudgetExceeded = errors.New("gating: no tool fits the requested budget")
