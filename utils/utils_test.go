package utils_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/cppla/blogfeed/config"
	"github.com/cppla/blogfeed/models"
	"github.com/cppla/blogfeed/utils"
)

func TestTokenRoundTrip(t *testing.T) {
	c := qt.New(t)
	config.Set(config.AppConfig{JWTSecret: "unit-secret", TokenTTLHours: 2})

	token, err := utils.GenerateToken(7, "sarah", utils.TokenTTL())
	c.Assert(err, qt.IsNil)

	claims, err := utils.ParseToken(token)
	c.Assert(err, qt.IsNil)
	c.Assert(claims.UserID, qt.Equals, uint(7))
	c.Assert(claims.Username, qt.Equals, "sarah")
	c.Assert(claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time), qt.Equals, 2*time.Hour)

	expired, err := utils.GenerateToken(7, "sarah", -time.Minute)
	c.Assert(err, qt.IsNil)
	_, err = utils.ParseToken(expired)
	c.Assert(err, qt.IsNotNil)

	config.Set(config.AppConfig{JWTSecret: "other-secret"})
	_, err = utils.ParseToken(token)
	c.Assert(err, qt.IsNotNil)
}

func TestRevokeToken(t *testing.T) {
	c := qt.New(t)
	config.Set(config.AppConfig{JWTSecret: "unit-secret"})

	c.Assert(utils.IsTokenRevoked("tok-a"), qt.IsFalse)
	utils.RevokeToken("tok-a", time.Now().Add(time.Hour))
	c.Assert(utils.IsTokenRevoked("tok-a"), qt.IsTrue)

	utils.RevokeToken("tok-b", time.Now().Add(-time.Hour))
	c.Assert(utils.IsTokenRevoked("tok-b"), qt.IsFalse)
}

func TestPasswordHash(t *testing.T) {
	c := qt.New(t)
	hash, err := utils.HashPassword("secret123")
	c.Assert(err, qt.IsNil)
	c.Assert(hash, qt.Not(qt.Equals), "secret123")
	c.Assert(utils.CheckPassword(hash, "secret123"), qt.IsTrue)
	c.Assert(utils.CheckPassword(hash, "secret124"), qt.IsFalse)
}

func TestCleanText(t *testing.T) {
	c := qt.New(t)
	c.Assert(utils.CleanText("  <b>bold</b> move "), qt.Equals, "<b>bold</b> move")
	c.Assert(utils.CleanText(`<script>alert("x")</script>`), qt.Equals, "")

	plain := `Tom & Jerry say 1 < 2 and "hi"`
	c.Assert(utils.CleanText(plain), qt.Equals, plain)
	c.Assert(utils.CleanText(utils.CleanText(plain)), qt.Equals, plain)

	c.Assert(utils.CleanText("&lt;script&gt;alert(1)&lt;/script&gt;"), qt.Equals, "&lt;script&gt;alert(1)&lt;/script&gt;")
}

func TestFeedKeys(t *testing.T) {
	c := qt.New(t)
	c.Assert(utils.GlobalFeedKey(0, 2), qt.Equals, "cache:feed:g0:global:page=2")
	c.Assert(utils.GroupFeedKey(3, "cats", 1), qt.Equals, "cache:feed:g3:group:cats:page=1")
	c.Assert(utils.GlobalFeedKey(1, 2), qt.Not(qt.Equals), utils.GlobalFeedKey(2, 2))
}

func TestCacheWithoutRedis(t *testing.T) {
	c := qt.New(t)
	config.Set(config.AppConfig{JWTSecret: "unit-secret"})

	key := utils.GlobalFeedKey(utils.FeedGeneration(), 1)
	utils.CacheSetJSON(key, map[string]int{"a": 1}, time.Minute)
	_, ok := utils.CacheGetBytes(key)
	c.Assert(ok, qt.IsFalse)
	utils.BumpFeedGeneration()
	c.Assert(utils.FeedGeneration(), qt.Equals, int64(0))
}

func TestSweepExpiredUploads(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	db, err := config.OpenDatabase(config.AppConfig{
		DBDriver:    "sqlite",
		DatabaseURI: filepath.Join(dir, "sweep.db"),
		LogLevel:    "silent",
	})
	c.Assert(err, qt.IsNil)
	c.Assert(config.Migrate(db), qt.IsNil)
	c.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	write := func(name string) string {
		p := filepath.Join(dir, name)
		c.Assert(os.WriteFile(p, []byte("img"), 0o644), qt.IsNil)
		return p
	}
	attached := now.Add(-time.Hour)
	files := []models.UploadedFile{
		{FilePath: write("expired.png"), URL: "/static/uploads/expired.png", ExpireAt: now.Add(-time.Minute)},
		{FilePath: write("fresh.png"), URL: "/static/uploads/fresh.png", ExpireAt: now.Add(time.Hour)},
		{FilePath: write("used.png"), URL: "/static/uploads/used.png", ExpireAt: now.Add(-time.Minute), AttachedAt: &attached},
		{FilePath: filepath.Join(dir, "gone.png"), URL: "/static/uploads/gone.png", ExpireAt: now.Add(-time.Minute)},
	}
	for i := range files {
		c.Assert(db.Create(&files[i]).Error, qt.IsNil)
	}

	n, err := utils.SweepExpiredUploads(context.Background(), db, now, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 2)

	_, err = os.Stat(files[0].FilePath)
	c.Assert(os.IsNotExist(err), qt.IsTrue)
	_, err = os.Stat(files[1].FilePath)
	c.Assert(err, qt.IsNil)
	_, err = os.Stat(files[2].FilePath)
	c.Assert(err, qt.IsNil)

	var left int64
	c.Assert(db.Model(&models.UploadedFile{}).Count(&left).Error, qt.IsNil)
	c.Assert(left, qt.Equals, int64(2))
}
