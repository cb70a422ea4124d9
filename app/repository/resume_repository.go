package repository

import (
	"fmt"
	"time"

	"github.com/tailorcv/tailorcv/app/models"
	"gorm.io/gorm"
)

// resumeRepository implements the ResumeRepository interface
type resumeRepository struct {
	db *gorm.DB
}

// NewResumeRepository creates a new resume repository instance
func NewResumeRepository(db *gorm.DB) ResumeRepository {
	return &resumeRepository{db: db}
}

// Create creates a new resume in the database
func (r *resumeRepository) Create(resume *models.Resume) error {
	return r.db.Create(resume).Error
}

// GetByID retrieves a resume by its ID
func (r *resumeRepository) GetByID(id uint) (*models.Resume, error) {
	var resume models.Resume
	err := r.db.First(&resume, id).Error
	if err != nil {
		return nil, err
	}
	return &resume, nil
}

// GetByUUID retrieves a resume by its public UUID
func (r *resumeRepository) GetByUUID(uuid string) (*models.Resume, error) {
	var resume models.Resume
	err := r.db.Where("uuid = ?", uuid).First(&resume).Error
	if err != nil {
		return nil, err
	}
	return &resume, nil
}

// GetByUserID retrieves a paginated list of a user's resumes
func (r *resumeRepository) GetByUserID(userID uint, offset, limit int) ([]models.Resume, error) {
	var resumes []models.Resume
	err := r.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Offset(offset).Limit(limit).
		Find(&resumes).Error
	return resumes, err
}

// Update updates an existing resume in the database
func (r *resumeRepository) Update(resume *models.Resume) error {
	return r.db.Save(resume).Error
}

// Delete soft deletes a resume by its ID
func (r *resumeRepository) Delete(id uint) error {
	return r.db.Delete(&models.Resume{}, id).Error
}

// CountByUserID returns the number of resumes a user has stored
func (r *resumeRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Resume{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// GetDailyRewriteStats returns daily rewrite counts for a date range
func (r *resumeRepository) GetDailyRewriteStats(startDate, endDate time.Time) ([]models.DailyStats, error) {
	var results []struct {
		Date  string `json:"date"`
		Count int64  `json:"count"`
	}

	err := r.db.Model(&models.Resume{}).
		Select("DATE_FORMAT(last_rewrite_at, '%Y-%m-%d') as date, COUNT(*) as count").
		Where("last_rewrite_at BETWEEN ? AND ?", startDate, endDate).
		Group("DATE_FORMAT(last_rewrite_at, '%Y-%m-%d')").
		Order("date").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get daily rewrite stats: %w", err)
	}

	dailyStats := make([]models.DailyStats, len(results))
	for i, result := range results {
		dailyStats[i] = models.DailyStats{
			Date:  result.Date,
			Count: int(result.Count),
		}
	}
	return dailyStats, nil
}
