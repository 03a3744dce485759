package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/blogfeed/models"
)

// PostFilter narrows a post listing. Zero value lists every post.
type PostFilter struct {
	GroupID  *uint
	AuthorID *uint
	// AuthorIDs restricts to a set of authors when non-nil; an empty set matches nothing.
	AuthorIDs []uint
	// AuthorFirst orders by author before publication date.
	AuthorFirst bool
}

// PostChanges lists the fields an author may edit. Nil fields are left untouched.
type PostChanges struct {
	Text       *string
	GroupID    *uint
	ClearGroup bool
	Image      *string
}

// PostRepository stores and queries posts.
type PostRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPostRepository creates a PostRepository stamping posts with the wall clock.
func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db, now: time.Now}
}

// WithClock returns a copy of r that reads the current time from now.
func (r *PostRepository) WithClock(now func() time.Time) *PostRepository {
	return &PostRepository{db: r.db, now: now}
}

// List returns one page of posts matching filter, newest first.
func (r *PostRepository) List(ctx context.Context, filter PostFilter, page int) (Page[models.Post], error) {
	if filter.AuthorIDs != nil && len(filter.AuthorIDs) == 0 {
		return Page[models.Post]{Items: []models.Post{}, Pagination: ResolvePage(0, DefaultPageSize, page)}, nil
	}

	scope := func(tx *gorm.DB) *gorm.DB {
		if filter.GroupID != nil {
			tx = tx.Where("group_id = ?", *filter.GroupID)
		}
		if filter.AuthorID != nil {
			tx = tx.Where("author_id = ?", *filter.AuthorID)
		}
		if filter.AuthorIDs != nil {
			tx = tx.Where("author_id IN ?", filter.AuthorIDs)
		}
		return tx
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Scopes(scope).Count(&total).Error; err != nil {
		return Page[models.Post]{}, translate(err, "count posts")
	}
	p := ResolvePage(total, DefaultPageSize, page)

	order := "pub_date DESC, id DESC"
	if filter.AuthorFirst {
		order = "author_id ASC, pub_date DESC, id DESC"
	}

	posts := []models.Post{}
	err := r.db.WithContext(ctx).
		Scopes(scope).
		Preload("Author").
		Preload("Group").
		Order(order).
		Offset(p.Offset()).
		Limit(p.PageSize).
		Find(&posts).Error
	if err != nil {
		return Page[models.Post]{}, translate(err, "list posts")
	}
	return Page[models.Post]{Items: posts, Pagination: p}, nil
}

// Get resolves a post by id, requiring it to belong to authorID.
func (r *PostRepository) Get(ctx context.Context, authorID, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Group").
		Where("id = ? AND author_id = ?", id, authorID).
		First(&post).Error
	if err != nil {
		return nil, translate(err, "post")
	}
	return &post, nil
}

// Create publishes a new post stamped with the current time.
func (r *PostRepository) Create(ctx context.Context, authorID uint, text string, groupID *uint, image string) (*models.Post, error) {
	if strings.TrimSpace(text) == "" {
		return nil, required("text")
	}

	post := models.Post{
		Text:     text,
		PubDate:  r.now(),
		AuthorID: authorID,
		GroupID:  groupID,
		Image:    strings.TrimSpace(image),
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureGroup(tx, groupID); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&post).Error; err != nil {
			return translate(err, "post")
		}
		return attachUpload(tx, post.Image, post.PubDate)
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, authorID, post.ID)
}

// Update applies changes to post in place. Author and PubDate never change.
func (r *PostRepository) Update(ctx context.Context, post *models.Post, changes PostChanges) error {
	text := post.Text
	if changes.Text != nil {
		text = *changes.Text
	}
	if strings.TrimSpace(text) == "" {
		return required("text")
	}
	groupID := post.GroupID
	if changes.ClearGroup {
		groupID = nil
	} else if changes.GroupID != nil {
		groupID = changes.GroupID
	}
	image := post.Image
	if changes.Image != nil {
		image = strings.TrimSpace(*changes.Image)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureGroup(tx, groupID); err != nil {
			return err
		}
		res := tx.Model(&models.Post{}).Where("id = ?", post.ID).Updates(map[string]interface{}{
			"text":     text,
			"group_id": groupID,
			"image":    image,
		})
		if res.Error != nil {
			return translate(res.Error, "post")
		}
		if res.RowsAffected == 0 {
			return translate(gorm.ErrRecordNotFound, "post")
		}
		if image != post.Image {
			return attachUpload(tx, image, r.now())
		}
		return nil
	})
	if err != nil {
		return err
	}

	fresh, err := r.Get(ctx, post.AuthorID, post.ID)
	if err != nil {
		return err
	}
	*post = *fresh
	return nil
}

// Delete removes post and its comments.
func (r *PostRepository) Delete(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteByPost(tx, post.ID); err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, post.ID)
		if res.Error != nil {
			return translate(res.Error, "post")
		}
		if res.RowsAffected == 0 {
			return translate(gorm.ErrRecordNotFound, "post")
		}
		return nil
	})
}

// CountByAuthor returns how many posts authorID has published.
func (r *PostRepository) CountByAuthor(ctx context.Context, authorID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", authorID).Count(&n).Error
	return n, translate(err, "count posts")
}

// Count returns the number of posts.
func (r *PostRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&n).Error
	return n, translate(err, "count posts")
}

func ensureGroup(tx *gorm.DB, groupID *uint) error {
	if groupID == nil {
		return nil
	}
	var group models.Group
	if err := tx.Select("id").First(&group, *groupID).Error; err != nil {
		return translate(err, "group")
	}
	return nil
}

// attachUpload marks the upload behind url as in use so the cleaner keeps it.
func attachUpload(tx *gorm.DB, url string, at time.Time) error {
	if url == "" {
		return nil
	}
	err := tx.Model(&models.UploadedFile{}).
		Where("url = ? AND attached_at IS NULL", url).
		Update("attached_at", at).Error
	return translate(err, "upload")
}
