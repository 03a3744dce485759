package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/blogfeed/models"
)

// FollowRepository maintains the follow graph and builds the followed feed.
type FollowRepository struct {
	db    *gorm.DB
	posts *PostRepository
}

// NewFollowRepository creates a FollowRepository reading feed posts through posts.
func NewFollowRepository(db *gorm.DB, posts *PostRepository) *FollowRepository {
	return &FollowRepository{db: db, posts: posts}
}

// Follow makes userID follow authorID. It reports whether a row was inserted;
// following an author twice is a no-op and concurrent calls are settled by the
// unique (user_id, author_id) index.
func (r *FollowRepository) Follow(ctx context.Context, userID, authorID uint) (bool, error) {
	if userID == authorID {
		return false, ErrSelfFollow
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "author_id"}},
			DoNothing: true,
		}).
		Omit(clause.Associations).
		Create(&models.Follow{UserID: userID, AuthorID: authorID})
	if res.Error != nil {
		return false, translate(res.Error, "follow")
	}
	return res.RowsAffected > 0, nil
}

// Unfollow deletes the (userID, authorID) row if present and reports whether it existed.
func (r *FollowRepository) Unfollow(ctx context.Context, userID, authorID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, translate(res.Error, "unfollow")
	}
	return res.RowsAffected > 0, nil
}

// IsFollowing reports whether userID follows authorID.
func (r *FollowRepository) IsFollowing(ctx context.Context, userID, authorID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&n).Error
	if err != nil {
		return false, translate(err, "follow")
	}
	return n > 0, nil
}

// FollowedAuthorIDs returns the ids of every author userID follows. Never nil.
func (r *FollowRepository) FollowedAuthorIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids := []uint{}
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("user_id = ?", userID).
		Order("author_id ASC").
		Pluck("author_id", &ids).Error
	if err != nil {
		return nil, translate(err, "followed authors")
	}
	if ids == nil {
		ids = []uint{}
	}
	return ids, nil
}

// FollowedFeed pages through posts by the authors userID follows. With
// authorFirst the page is grouped by author, newest first within each author.
func (r *FollowRepository) FollowedFeed(ctx context.Context, userID uint, page int, authorFirst bool) (Page[models.Post], error) {
	authors, err := r.FollowedAuthorIDs(ctx, userID)
	if err != nil {
		return Page[models.Post]{}, err
	}
	return r.posts.List(ctx, PostFilter{AuthorIDs: authors, AuthorFirst: authorFirst}, page)
}

// Count returns the number of follow rows.
func (r *FollowRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).Count(&n).Error
	return n, translate(err, "count follows")
}
