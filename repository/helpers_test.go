package repository_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"gorm.io/gorm"

	"github.com/cppla/blogfeed/config"
	"github.com/cppla/blogfeed/models"
	"github.com/cppla/blogfeed/repository"
)

// stepClock advances by one minute on every reading so insert order is also time order.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *stepClock) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t = s.t.Add(time.Minute)
	return s.t
}

type fixture struct {
	ctx      context.Context
	db       *gorm.DB
	clock    *stepClock
	users    *repository.UserRepository
	groups   *repository.GroupRepository
	posts    *repository.PostRepository
	comments *repository.CommentRepository
	follows  *repository.FollowRepository
	stats    *repository.StatsRepository
	uploads  *repository.UploadRepository
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase(config.AppConfig{
		DBDriver:    "sqlite",
		DatabaseURI: filepath.Join(t.TempDir(), "blogfeed.db"),
		LogLevel:    "silent",
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)
	clock := newStepClock()
	posts := repository.NewPostRepository(db).WithClock(clock.Now)
	return &fixture{
		ctx:      context.Background(),
		db:       db,
		clock:    clock,
		users:    repository.NewUserRepository(db),
		groups:   repository.NewGroupRepository(db),
		posts:    posts,
		comments: repository.NewCommentRepository(db).WithClock(clock.Now),
		follows:  repository.NewFollowRepository(db, posts),
		stats:    repository.NewStatsRepository(db),
		uploads:  repository.NewUploadRepository(db),
	}
}

func (f *fixture) user(c *qt.C, name string) *models.User {
	u, err := f.users.Create(f.ctx, name, name+"@example.com", "hash")
	c.Assert(err, qt.IsNil)
	return u
}

func (f *fixture) group(c *qt.C, slug string) *models.Group {
	g, err := f.groups.Create(f.ctx, "Group "+slug, slug, "about "+slug)
	c.Assert(err, qt.IsNil)
	return g
}

func (f *fixture) post(c *qt.C, author *models.User, text string, group *models.Group) *models.Post {
	var gid *uint
	if group != nil {
		gid = &group.ID
	}
	p, err := f.posts.Create(f.ctx, author.ID, text, gid, "")
	c.Assert(err, qt.IsNil)
	return p
}

func (f *fixture) count(c *qt.C, model interface{}) int64 {
	var n int64
	c.Assert(f.db.Model(model).Count(&n).Error, qt.IsNil)
	return n
}

func texts(posts []models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Text)
	}
	return out
}

func numbered(prefix string, n int) []string {
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, fmt.Sprintf("%s %02d", prefix, i))
	}
	return out
}
