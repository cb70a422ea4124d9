package repository

import (
	"time"

	"github.com/tailorcv/tailorcv/app/models"
	"github.com/tailorcv/tailorcv/internal/pkg/billing"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error)
}

// AccountRepository is the billing engine's account store plus the
// account-management operations the web layer needs.
type AccountRepository interface {
	billing.AccountStore
	// EnsureForUser creates the account row on first touch with status
	// "none" and a null balance.
	EnsureForUser(userID uint) (*models.Account, error)
}

// ResumeRepository defines the interface for stored CV operations
type ResumeRepository interface {
	Create(resume *models.Resume) error
	GetByID(id uint) (*models.Resume, error)
	GetByUUID(uuid string) (*models.Resume, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Resume, error)
	Update(resume *models.Resume) error
	Delete(id uint) error
	CountByUserID(userID uint) (int64, error)
	GetDailyRewriteStats(startDate, endDate time.Time) ([]models.DailyStats, error)
}

// PageRepository reads the migration-seeded CMS pages
type PageRepository interface {
	GetBySlug(slug string) (*models.Page, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User    UserRepository
	Account AccountRepository
	Resume  ResumeRepository
	Page    PageRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Account: NewAccountRepository(db),
		Resume:  NewResumeRepository(db),
		Page:    NewPageRepository(db),
	}
}
