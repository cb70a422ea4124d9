package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Resume is a stored CV document owned by a user. RewrittenBody holds the
// latest tailored version produced by the rewriter; it is empty until the
// first rewrite.
type Resume struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UUID           string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	Title          string         `gorm:"type:varchar(255);not null" json:"title" validate:"required,min=1,max=255"`
	Body           string         `gorm:"type:longtext;not null" json:"body" validate:"required,min=1"`
	RewrittenBody  string         `gorm:"type:longtext" json:"rewritten_body"`
	JobDescription string         `gorm:"type:longtext" json:"job_description"`
	RewriteCount   int            `gorm:"default:0" json:"rewrite_count"`
	LastRewriteAt  *time.Time     `gorm:"type:timestamp;default:null" json:"last_rewrite_at,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *Resume) Validate() error {
	v := validator.New()
	return v.Struct(r)
}

// BeforeCreate assigns the public identifier.
func (r *Resume) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == "" {
		r.UUID = uuid.New().String()
	}
	return nil
}
