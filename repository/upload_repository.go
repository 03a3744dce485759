package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/cppla/blogfeed/models"
)

// UploadRepository tracks image uploads until a post attaches them.
type UploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository creates an UploadRepository.
func NewUploadRepository(db *gorm.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Record stores file; it stays eligible for cleanup until attached.
func (r *UploadRepository) Record(ctx context.Context, file *models.UploadedFile) error {
	return translate(r.db.WithContext(ctx).Create(file).Error, "upload")
}

// GetByURL resolves an upload by its public URL.
func (r *UploadRepository) GetByURL(ctx context.Context, url string) (*models.UploadedFile, error) {
	var file models.UploadedFile
	if err := r.db.WithContext(ctx).Where("url = ?", url).First(&file).Error; err != nil {
		return nil, translate(err, "upload")
	}
	return &file, nil
}
