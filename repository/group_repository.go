package repository

import (
	"context"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/cppla/blogfeed/models"
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// GroupRepository manages groups.
type GroupRepository struct {
	db *gorm.DB
}

// NewGroupRepository creates a GroupRepository.
func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// GetBySlug resolves a group by its URL slug.
func (r *GroupRepository) GetBySlug(ctx context.Context, slug string) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&group).Error; err != nil {
		return nil, translate(err, "group")
	}
	return &group, nil
}

// List returns every group ordered by title.
func (r *GroupRepository) List(ctx context.Context) ([]models.Group, error) {
	groups := []models.Group{}
	err := r.db.WithContext(ctx).Order("title ASC, id ASC").Find(&groups).Error
	return groups, translate(err, "groups")
}

// Create adds a group. The slug must be unique and URL safe.
func (r *GroupRepository) Create(ctx context.Context, title, slug, description string) (*models.Group, error) {
	title = strings.TrimSpace(title)
	slug = strings.TrimSpace(slug)
	if title == "" {
		return nil, required("title")
	}
	if slug == "" {
		return nil, required("slug")
	}
	if !slugPattern.MatchString(slug) {
		return nil, &ValidationError{Field: "slug", Message: "letters, numbers, underscores or hyphens only"}
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Group{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return nil, translate(err, "group")
	}
	if count > 0 {
		return nil, translate(gorm.ErrDuplicatedKey, "group")
	}

	group := models.Group{Title: title, Slug: slug, Description: strings.TrimSpace(description)}
	if err := r.db.WithContext(ctx).Create(&group).Error; err != nil {
		return nil, translate(err, "group")
	}
	return &group, nil
}

// Delete removes the group. Its posts survive with their group cleared.
func (r *GroupRepository) Delete(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).Where("group_id = ?", group.ID).Update("group_id", nil).Error; err != nil {
			return translate(err, "posts")
		}
		res := tx.Delete(&models.Group{}, group.ID)
		if res.Error != nil {
			return translate(res.Error, "group")
		}
		if res.RowsAffected == 0 {
			return translate(gorm.ErrRecordNotFound, "group")
		}
		return nil
	})
}
