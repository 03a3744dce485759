package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/blogfeed/models"
)

// CommentRepository stores comments.
type CommentRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCommentRepository creates a CommentRepository.
func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db, now: time.Now}
}

// WithClock returns a copy of r that reads the current time from now.
func (r *CommentRepository) WithClock(now func() time.Time) *CommentRepository {
	return &CommentRepository{db: r.db, now: now}
}

// Create adds a comment by authorID on postID.
func (r *CommentRepository) Create(ctx context.Context, postID, authorID uint, text string) (*models.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, required("text")
	}
	comment := models.Comment{PostID: postID, AuthorID: authorID, Text: text, Created: r.now()}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&comment).Error; err != nil {
		return nil, translate(err, "comment")
	}
	if err := r.db.WithContext(ctx).Preload("Author").First(&comment, comment.ID).Error; err != nil {
		return nil, translate(err, "comment")
	}
	return &comment, nil
}

// ListByPost returns the comments on postID, oldest first.
func (r *CommentRepository) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created ASC, id ASC").
		Find(&comments).Error
	return comments, translate(err, "list comments")
}

// CountByPost returns the number of comments on postID.
func (r *CommentRepository) CountByPost(ctx context.Context, postID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&n).Error
	return n, translate(err, "count comments")
}

// Count returns the number of comments.
func (r *CommentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Count(&n).Error
	return n, translate(err, "count comments")
}

// deleteByPost removes every comment on postID inside tx.
func deleteByPost(tx *gorm.DB, postID uint) error {
	return translate(tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error, "comments")
}
