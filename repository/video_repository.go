package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"storyreel/model"
)

// VideoRepository defines the interface for rendered video records.
type VideoRepository interface {
	Create(video *model.Video) error
	Save(video *model.Video) error
	GetByID(id int64) (*model.Video, error)
	GetByJobID(jobID string) (*model.Video, error)
	List(limit, offset int) ([]*model.Video, int64, error)
}

// gormVideoRepository implements VideoRepository with GORM.
type gormVideoRepository struct {
	db *gorm.DB
}

// NewVideoRepository creates a GORM backed VideoRepository.
func NewVideoRepository(db *gorm.DB) VideoRepository {
	return &gormVideoRepository{db: db}
}

// Create inserts a new video record.
func (r *gormVideoRepository) Create(video *model.Video) error {
	if err := r.db.Create(video).Error; err != nil {
		return fmt.Errorf("failed to create video %s: %w", video.JobID, err)
	}
	return nil
}

// Save upserts by primary key.
func (r *gormVideoRepository) Save(video *model.Video) error {
	if err := r.db.Save(video).Error; err != nil {
		return fmt.Errorf("failed to save video %s: %w", video.JobID, err)
	}
	return nil
}

// GetByID returns nil, nil when no record exists.
func (r *gormVideoRepository) GetByID(id int64) (*model.Video, error) {
	var video model.Video
	err := r.db.First(&video, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video by ID %d: %w", id, err)
	}
	return &video, nil
}

// GetByJobID returns nil, nil when no record exists.
func (r *gormVideoRepository) GetByJobID(jobID string) (*model.Video, error) {
	var video model.Video
	err := r.db.Where("job_id = ?", jobID).First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video by job %s: %w", jobID, err)
	}
	return &video, nil
}

// List returns a page of videos, newest first, plus the total count.
func (r *gormVideoRepository) List(limit, offset int) ([]*model.Video, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := r.db.Model(&model.Video{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count videos: %w", err)
	}

	var videos []*model.Video
	if err := r.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&videos).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list videos: %w", err)
	}
	return videos, total, nil
}
