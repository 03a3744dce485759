package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cppla/blogfeed/config"
	"github.com/cppla/blogfeed/events"
	"github.com/cppla/blogfeed/repository"
	"github.com/cppla/blogfeed/routes"
	"github.com/cppla/blogfeed/services"
	"github.com/cppla/blogfeed/utils"
)

func newServeCommand() *cobra.Command {
	flags := newConfigFlags()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, flags[configFlag].GetString())
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func serve(cmd *cobra.Command, path string) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	defer func() { _ = utils.Logger.Sync() }()

	db, err := config.OpenDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)
	if err := config.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	pub, err := events.Connect(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		// Events are advisory; the API keeps working without a broker.
		utils.Sugar.Warnf("event publishing disabled: %v", err)
		pub = events.NopPublisher{}
	}
	defer pub.Close()
	defer utils.CloseRedis()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.UploadsCleanupEnabled {
		utils.StartUploadCleaner(ctx, db, 5*time.Minute)
	}

	r := routes.SetupRouter(buildDeps(db, cfg, pub))
	utils.Sugar.Infof("starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(ctx, ":"+cfg.AppPort, r); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

// buildDeps wires repositories and the blog service over db.
func buildDeps(db *gorm.DB, cfg config.AppConfig, pub events.Publisher) routes.Deps {
	posts := repository.NewPostRepository(db)
	users := repository.NewUserRepository(db)
	stats := repository.NewStatsRepository(db)
	blog := services.NewBlogService(services.Repositories{
		Users:    users,
		Groups:   repository.NewGroupRepository(db),
		Posts:    posts,
		Comments: repository.NewCommentRepository(db),
		Follows:  repository.NewFollowRepository(db, posts),
		Stats:    stats,
	}, pub, services.Options{
		FollowOrder: cfg.FollowFeedOrder,
		IsAdmin:     cfg.IsAdmin,
	})
	return routes.Deps{
		Config:  cfg,
		Users:   users,
		Stats:   stats,
		Uploads: repository.NewUploadRepository(db),
		Blog:    blog,
	}
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
