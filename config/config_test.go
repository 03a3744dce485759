package config_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/cppla/blogfeed/config"
)

func TestLoadFileDefaults(t *testing.T) {
	c := qt.New(t)

	cfg, err := config.LoadFile("")
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.AppPort, qt.Equals, "8080")
	c.Assert(cfg.DBDriver, qt.Equals, "mysql")
	c.Assert(cfg.FollowFeedOrder, qt.Equals, config.FollowOrderAuthor)
	c.Assert(cfg.AllowedOrigins, qt.DeepEquals, []string{"*"})
	c.Assert(cfg.TokenTTLHours, qt.Equals, 72)
}

func TestLoadFileGroupedJSON(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"app": {"port": "9090", "jwt_secret": "s3cret", "allowed_origins": ["https://a.example", "https://b.example"]},
		"database": {"driver": "SQLite", "name": "blog"},
		"admin": {"usernames": ["root"]},
		"feed": {"follow_order": "recent"}
	}`
	c.Assert(os.WriteFile(path, []byte(body), 0o600), qt.IsNil)

	cfg, err := config.LoadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.AppPort, qt.Equals, "9090")
	c.Assert(cfg.JWTSecret, qt.Equals, "s3cret")
	c.Assert(cfg.DBDriver, qt.Equals, "sqlite")
	c.Assert(cfg.DBName, qt.Equals, "blog")
	c.Assert(cfg.AllowedOrigins, qt.DeepEquals, []string{"https://a.example", "https://b.example"})
	c.Assert(cfg.FollowFeedOrder, qt.Equals, config.FollowOrderRecent)
	c.Assert(cfg.IsAdmin("ROOT"), qt.IsTrue)
	c.Assert(cfg.Validate(), qt.IsNil)
}

func TestLoadFileEnvironmentOverrides(t *testing.T) {
	c := qt.New(t)

	t.Setenv("APP_PORT", "7000")
	t.Setenv("ADMIN_USERNAMES", "alice, bob")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := config.LoadFile("")
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.AppPort, qt.Equals, "7000")
	c.Assert(cfg.AdminUsernames, qt.DeepEquals, []string{"alice", "bob"})
	c.Assert(cfg.RedisEnabled, qt.IsTrue)
	c.Assert(cfg.IsAdmin("carol"), qt.IsFalse)
}

func TestLoadFileMalformed(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(t.TempDir(), "config.json")
	c.Assert(os.WriteFile(path, []byte("{not json"), 0o600), qt.IsNil)

	_, err := config.LoadFile(path)
	c.Assert(err, qt.IsNotNil)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.AppConfig)
		wantErr string
	}{
		{name: "missing secret", mutate: func(a *config.AppConfig) { a.JWTSecret = "" }, wantErr: "JWT_SECRET must be set"},
		{name: "unknown driver", mutate: func(a *config.AppConfig) { a.DBDriver = "oracle" }, wantErr: `unsupported database driver "oracle"`},
		{name: "unknown order", mutate: func(a *config.AppConfig) { a.FollowFeedOrder = "random" }, wantErr: `unsupported follow feed order "random"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			cfg, err := config.LoadFile("")
			c.Assert(err, qt.IsNil)
			cfg.JWTSecret = "x"
			tt.mutate(&cfg)
			c.Assert(cfg.Validate(), qt.ErrorMatches, tt.wantErr)
		})
	}
}

func TestOpenDatabaseSQLite(t *testing.T) {
	c := qt.New(t)

	cfg, err := config.LoadFile("")
	c.Assert(err, qt.IsNil)
	cfg.DBDriver = "sqlite"
	cfg.DatabaseURI = filepath.Join(t.TempDir(), "blog.db")
	cfg.LogLevel = "silent"

	db, err := config.OpenDatabase(cfg)
	c.Assert(err, qt.IsNil)
	c.Assert(config.Migrate(db), qt.IsNil)

	var fk int
	c.Assert(db.Raw("PRAGMA foreign_keys").Scan(&fk).Error, qt.IsNil)
	c.Assert(fk, qt.Equals, 1)
}
