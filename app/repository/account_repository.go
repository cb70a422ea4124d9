package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tailorcv/tailorcv/app/models"
	"github.com/tailorcv/tailorcv/internal/pkg/billing"
	"gorm.io/gorm"
)

// accountRepository implements the AccountRepository interface. All credit
// mutations are single conditional UPDATE statements guarded in SQL; the
// row is never read first and written back, so concurrent adjustments and
// webhook handlers cannot lose each other's writes.
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository instance
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) EnsureForUser(userID uint) (*models.Account, error) {
	var account models.Account
	err := r.db.
		Where(models.Account{UserID: userID}).
		Attrs(models.Account{SubscriptionStatus: models.SubscriptionStatusNone}).
		FirstOrCreate(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).First(&account, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("account %d: %w", id, billing.ErrAccountNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetByUserID(ctx context.Context, userID uint) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where(models.Account{UserID: userID}).
		Attrs(models.Account{SubscriptionStatus: models.SubscriptionStatusNone}).
		FirstOrCreate(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetByCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("customer %s: %w", customerID, billing.ErrAccountNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateSubscriptionFields applies the patch in one UPDATE. Nil pointer
// fields persist as NULL (except CustomerID, which is left untouched when
// nil), so terminal statuses clear identifiers, plan, and credits together.
func (r *accountRepository) UpdateSubscriptionFields(ctx context.Context, accountID uint, patch billing.AccountPatch) error {
	values := map[string]interface{}{
		"stripe_subscription_id":  nullableString(patch.SubscriptionID),
		"stripe_product_id":       nullableString(patch.ProductID),
		"plan_name":               nullableString(patch.PlanName),
		"subscription_status":     string(patch.Status),
		"subscription_renews_at":  nullableTime(patch.RenewsAt),
		"cancel_at_period_end":    patch.CancelAtPeriodEnd,
		"subscription_updated_at": time.Now(),
	}
	if patch.CustomerID != nil {
		values["stripe_customer_id"] = *patch.CustomerID
	}
	if patch.ClearCredits {
		values["credits"] = nil
	}

	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if exists, err := r.exists(ctx, accountID); err != nil {
			return err
		} else if !exists {
			return fmt.Errorf("account %d: %w", accountID, billing.ErrAccountNotFound)
		}
	}
	return nil
}

func (r *accountRepository) SetCreditsByCustomerID(ctx context.Context, customerID string, credits int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("stripe_customer_id = ?", customerID).
		UpdateColumn("credits", credits)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// MySQL reports zero affected rows both for a missing row and for
		// an update to the identical value; only the former is an error.
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Account{}).
			Where("stripe_customer_id = ?", customerID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("customer %s: %w", customerID, billing.ErrAccountNotFound)
		}
	}
	return nil
}

// AddCreditsIfAvailable is the compare-and-swap grant: the allowance guard
// lives inside the UPDATE's WHERE clause, so two concurrent grants can
// never jointly push the balance past the allowance.
func (r *accountRepository) AddCreditsIfAvailable(ctx context.Context, accountID uint, delta, allowance int) (int, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND COALESCE(credits, 0) + ? <= ?", accountID, delta, allowance).
		UpdateColumn("credits", gorm.Expr("COALESCE(credits, 0) + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		if exists, err := r.exists(ctx, accountID); err != nil {
			return 0, err
		} else if !exists {
			return 0, fmt.Errorf("account %d: %w", accountID, billing.ErrAccountNotFound)
		}
		return r.currentBalance(ctx, accountID, billing.ErrAllowanceExceeded)
	}
	balance, err := r.currentBalance(ctx, accountID, nil)
	return balance, err
}

// DeductCredits is the compare-and-swap spend; the coverage guard lives in
// the WHERE clause.
func (r *accountRepository) DeductCredits(ctx context.Context, accountID uint, delta int) (int, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND COALESCE(credits, 0) >= ?", accountID, delta).
		UpdateColumn("credits", gorm.Expr("COALESCE(credits, 0) - ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		if exists, err := r.exists(ctx, accountID); err != nil {
			return 0, err
		} else if !exists {
			return 0, fmt.Errorf("account %d: %w", accountID, billing.ErrAccountNotFound)
		}
		return r.currentBalance(ctx, accountID, billing.ErrInsufficientCredits)
	}
	balance, err := r.currentBalance(ctx, accountID, nil)
	return balance, err
}

func (r *accountRepository) exists(ctx context.Context, accountID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", accountID).Count(&count).Error
	return count > 0, err
}

// currentBalance re-reads the balance after a conditional update; outcome
// carries the guard-failure sentinel when the update did not apply.
func (r *accountRepository) currentBalance(ctx context.Context, accountID uint, outcome error) (int, error) {
	account, err := r.GetByID(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.CreditBalance(), outcome
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
