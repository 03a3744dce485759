package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/blogfeed/models"
)

// StatsRepository records and sums page views.
type StatsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates a StatsRepository.
func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// RecordView increments the counter for path on the day of at.
func (r *StatsRepository) RecordView(ctx context.Context, path string, at time.Time) error {
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}, {Name: "path"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1"), "updated_at": at}),
	}).Create(&models.PageView{Date: day, Path: path, Count: 1}).Error
	return translate(err, "page view")
}

// ViewsOn sums every path's views on the day of at.
func (r *StatsRepository) ViewsOn(ctx context.Context, at time.Time) (int64, error) {
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PageView{}).
		Where("date = ?", day).
		Select("COALESCE(SUM(count),0)").
		Scan(&n).Error
	return n, translate(err, "page views")
}

// ViewsOfPath sums views of path across all days.
func (r *StatsRepository) ViewsOfPath(ctx context.Context, path string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PageView{}).
		Where("path = ?", path).
		Select("COALESCE(SUM(count),0)").
		Scan(&n).Error
	return n, translate(err, "page views")
}

