package billing

import (
	"errors"
	"testing"
)

func TestComputeAllowance(t *testing.T) {
	tests := []struct {
		name     string
		meta     map[string]string
		trialing bool
		want     int
	}{
		{name: "plain allowance", meta: map[string]string{"credits_allowance": "25"}, want: 25},
		{name: "zero allowance", meta: map[string]string{"credits_allowance": "0"}, want: 0},
		{name: "whitespace tolerated", meta: map[string]string{"credits_allowance": " 10 "}, want: 10},
		{name: "missing metadata", meta: map[string]string{}, want: 0},
		{name: "nil metadata", meta: nil, want: 0},
		{name: "unparseable", meta: map[string]string{"credits_allowance": "lots"}, want: 0},
		{name: "negative rejected", meta: map[string]string{"credits_allowance": "-5"}, want: 0},
		{name: "trial key wins while trialing", meta: map[string]string{"credits_allowance": "25", "trial_period_credits": "5"}, trialing: true, want: 5},
		{name: "trial key ignored when not trialing", meta: map[string]string{"credits_allowance": "25", "trial_period_credits": "5"}, want: 25},
		{name: "trialing falls back without trial key", meta: map[string]string{"credits_allowance": "25"}, trialing: true, want: 25},
	}

	for _, tt := range tests {
		if got := ComputeAllowance(tt.meta, tt.trialing); got != tt.want {
			t.Fatalf("%s: ComputeAllowance() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestCheckAvailable(t *testing.T) {
	tests := []struct {
		balance, allowance, delta int
		want                      bool
	}{
		{balance: 0, allowance: 10, delta: 10, want: true},
		{balance: 0, allowance: 10, delta: 11, want: false},
		{balance: 5, allowance: 10, delta: 5, want: true},
		{balance: 5, allowance: 10, delta: 6, want: false},
		{balance: 10, allowance: 10, delta: 0, want: true},
		{balance: 0, allowance: 0, delta: 0, want: true},
		{balance: 0, allowance: 0, delta: 1, want: false},
		{balance: 5, allowance: 10, delta: -1, want: false},
	}

	for _, tt := range tests {
		if got := CheckAvailable(tt.balance, tt.allowance, tt.delta); got != tt.want {
			t.Fatalf("CheckAvailable(%d, %d, %d) = %v, want %v", tt.balance, tt.allowance, tt.delta, got, tt.want)
		}
	}
}

func TestAdd(t *testing.T) {
	got, err := Add(3, 10, 4)
	if err != nil || got != 7 {
		t.Fatalf("Add(3, 10, 4) = %d, %v, want 7, nil", got, err)
	}

	if _, err := Add(8, 10, 3); !errors.Is(err, ErrAllowanceExceeded) {
		t.Fatalf("expected ErrAllowanceExceeded, got %v", err)
	}
	if _, err := Add(3, 10, 0); !errors.Is(err, ErrInvalidAdjustment) {
		t.Fatalf("expected ErrInvalidAdjustment for zero delta, got %v", err)
	}
	if _, err := Add(3, 10, -2); !errors.Is(err, ErrInvalidAdjustment) {
		t.Fatalf("expected ErrInvalidAdjustment for negative delta, got %v", err)
	}
}

func TestDeductScenario(t *testing.T) {
	// Balance 5, allowance 10: deduct 3 succeeds, the next deduct 5 is
	// rejected and the balance stays put.
	balance, err := Deduct(5, 3)
	if err != nil || balance != 2 {
		t.Fatalf("Deduct(5, 3) = %d, %v, want 2, nil", balance, err)
	}

	got, err := Deduct(balance, 5)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if got != 2 {
		t.Fatalf("balance changed on rejected deduct: got %d, want 2", got)
	}

	if _, err := Deduct(5, 0); !errors.Is(err, ErrInvalidAdjustment) {
		t.Fatalf("expected ErrInvalidAdjustment for zero delta, got %v", err)
	}
}

func TestResetToAllowanceIdempotent(t *testing.T) {
	meta := map[string]string{"credits_allowance": "25"}

	first := ResetToAllowance(meta, false)
	second := ResetToAllowance(meta, false)
	if first != 25 || second != first {
		t.Fatalf("ResetToAllowance not idempotent: first %d, second %d", first, second)
	}
}
