package repository

import (
	"github.com/tailorcv/tailorcv/app/models"
	"gorm.io/gorm"
)

// pageRepository implements the PageRepository interface. Pages are seeded
// by migrations, so reading by slug is the only operation the app needs.
type pageRepository struct {
	db *gorm.DB
}

// NewPageRepository creates a new page repository instance
func NewPageRepository(db *gorm.DB) PageRepository {
	return &pageRepository{db: db}
}

// GetBySlug retrieves an active page by its slug
func (r *pageRepository) GetBySlug(slug string) (*models.Page, error) {
	var page models.Page
	err := r.db.Where("slug = ? AND is_active = ?", slug, true).First(&page).Error
	if err != nil {
		return nil, err
	}
	return &page, nil
}
