package utils

import (
	"context"
	"errors"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/blogfeed/models"
)

// SweepExpiredUploads removes up to limit uploads that expired without being
// attached to a post. It returns how many records were removed.
func SweepExpiredUploads(ctx context.Context, db *gorm.DB, now time.Time, limit int) (int, error) {
	var items []models.UploadedFile
	err := db.WithContext(ctx).
		Where("attached_at IS NULL AND expire_at <= ?", now).
		Order("expire_at ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, it := range items {
		if it.FilePath != "" {
			if err := os.Remove(it.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				Sugar.Warnf("upload cleaner remove file %s: %v", it.FilePath, err)
			}
		}
		// The row goes regardless of the file outcome so it is not retried forever.
		if err := db.WithContext(ctx).Delete(&models.UploadedFile{}, it.ID).Error; err != nil {
			Sugar.Warnf("upload cleaner delete row %d: %v", it.ID, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// StartUploadCleaner sweeps expired uploads every interval until ctx is done.
func StartUploadCleaner(ctx context.Context, db *gorm.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				n, err := SweepExpiredUploads(ctx, db, now, 100)
				if err != nil {
					Sugar.Warnf("upload cleaner query failed: %v", err)
					continue
				}
				if n > 0 {
					Sugar.Infof("upload cleaner removed %d expired uploads", n)
				}
			}
		}
	}()
}
