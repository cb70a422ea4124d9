package billing

import (
	"strconv"
	"strings"
)

// Credit ledger arithmetic. Balances and allowances are discrete non-negative
// usage units; all mutating paths go through these bounds checks.

// ComputeAllowance parses the credit allowance from product metadata. While
// trialing the optional trial_period_credits key takes precedence over
// credits_allowance. Missing or unparseable metadata yields allowance 0 so a
// misconfigured product can never block reconciliation.
func ComputeAllowance(meta map[string]string, trialing bool) int {
	raw, ok := "", false
	if trialing {
		raw, ok = meta[MetaTrialCredits]
	}
	if !ok {
		raw, ok = meta[MetaCreditsAllowance]
	}
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// CheckAvailable reports whether delta credits fit under the allowance.
// This is a pure pre-flight predicate; it never mutates anything. Callers
// needing check-and-mutate semantics must use the store's conditional
// updates instead of pairing this with a later write.
func CheckAvailable(balance, allowance, delta int) bool {
	if delta < 0 {
		return false
	}
	return balance+delta <= allowance
}

// Add returns the balance raised by delta, rejecting non-positive deltas and
// anything that would push the balance past the allowance.
func Add(balance, allowance, delta int) (int, error) {
	if delta <= 0 {
		return balance, ErrInvalidAdjustment
	}
	if balance+delta > allowance {
		return balance, ErrAllowanceExceeded
	}
	return balance + delta, nil
}

// Deduct returns the balance lowered by delta, rejecting non-positive deltas
// and deltas larger than the balance.
func Deduct(balance, delta int) (int, error) {
	if delta <= 0 {
		return balance, ErrInvalidAdjustment
	}
	if delta > balance {
		return balance, ErrInsufficientCredits
	}
	return balance - delta, nil
}

// ResetToAllowance returns the balance after a renewal grant: exactly the
// plan allowance, independent of the prior balance. Applying it twice yields
// the same result as once.
func ResetToAllowance(meta map[string]string, trialing bool) int {
	return ComputeAllowance(meta, trialing)
}
