package billing

import (
	"context"

	"github.com/tailorcv/tailorcv/app/models"
)

// AccountStore is the persistence contract for the billable account row —
// the only shared mutable resource in this subsystem. All credit mutations
// are single conditional updates at the storage layer; the engine never
// pairs a read with a later unconditional write.
type AccountStore interface {
	GetByID(ctx context.Context, id uint) (*models.Account, error)
	GetByUserID(ctx context.Context, userID uint) (*models.Account, error)
	// GetByCustomerID returns ErrAccountNotFound (wrapped) when no account
	// is linked to the external customer id.
	GetByCustomerID(ctx context.Context, customerID string) (*models.Account, error)

	// UpdateSubscriptionFields applies an AccountPatch atomically in one
	// UPDATE statement.
	UpdateSubscriptionFields(ctx context.Context, accountID uint, patch AccountPatch) error

	// SetCreditsByCustomerID overwrites the balance for the account linked
	// to the customer id. Used by the invoice-paid path (zero, then the
	// plan allowance); returns ErrAccountNotFound when unlinked.
	SetCreditsByCustomerID(ctx context.Context, customerID string, credits int) error

	// AddCreditsIfAvailable raises the balance by delta only if the result
	// stays within allowance, as one conditional UPDATE
	// ("... WHERE balance + delta <= allowance"). Returns the new balance,
	// or ErrAllowanceExceeded when the guard fails.
	AddCreditsIfAvailable(ctx context.Context, accountID uint, delta, allowance int) (int, error)

	// DeductCredits lowers the balance by delta only if it is covered, as
	// one conditional UPDATE. Returns the new balance, or
	// ErrInsufficientCredits when the guard fails.
	DeductCredits(ctx context.Context, accountID uint, delta int) (int, error)
}
