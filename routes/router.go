package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cppla/blogfeed/config"
	"github.com/cppla/blogfeed/controllers"
	"github.com/cppla/blogfeed/middleware"
	"github.com/cppla/blogfeed/repository"
	"github.com/cppla/blogfeed/services"
	"github.com/cppla/blogfeed/utils"
)

// Deps is everything the router hands to controllers.
type Deps struct {
	Config  config.AppConfig
	Users   *repository.UserRepository
	Stats   *repository.StatsRepository
	Uploads *repository.UploadRepository
	Blog    *services.BlogService
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if gl := ginLogger(cfg); gl != nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Location", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())
	if d.Stats != nil {
		r.Use(middleware.PageViewRecorder(d.Stats))
	}

	if cfg.UploadsDir != "" {
		r.Static(controllers.UploadURLPrefix, cfg.UploadsDir)
	}
	r.GET("/health", controllers.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRequired := middleware.AuthRequired(d.Users)
	optionalAuth := middleware.OptionalAuth(d.Users)
	limit := middleware.RateLimit(cfg.RateLimitPerMinute)

	authController := controllers.NewAuthController(d.Users, d.Blog)
	postController := controllers.NewPostController(d.Blog)
	groupController := controllers.NewGroupController(d.Blog)
	profileController := controllers.NewProfileController(d.Blog)
	statsController := controllers.NewStatsController(d.Blog)
	uploadController := controllers.NewUploadController(d.Uploads, cfg)

	api := r.Group(services.APIBase)

	authGroup := api.Group("/auth")
	authGroup.Use(limit)
	authGroup.GET("/login", authController.LoginPage)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/logout", authRequired, authController.Logout)
	authGroup.GET("/me", authRequired, authController.Me)

	api.GET("/stats", statsController.GetStats)

	api.GET("/posts", postController.ListPosts)
	api.GET("/groups", groupController.ListGroups)
	api.GET("/groups/:slug/posts", groupController.GroupPosts)
	api.GET("/users/:username", optionalAuth, profileController.Profile)
	api.GET("/users/:username/posts/:id", postController.GetPost)

	protected := api.Group("")
	protected.Use(authRequired, limit)
	protected.POST("/posts", postController.CreatePost)
	protected.POST("/upload", uploadController.Upload)
	protected.PUT("/users/:username/posts/:id", postController.UpdatePost)
	protected.DELETE("/users/:username/posts/:id", postController.DeletePost)
	protected.POST("/users/:username/posts/:id/comments", postController.CreateComment)
	protected.POST("/users/:username/follow", profileController.Follow)
	protected.POST("/users/:username/unfollow", profileController.Unfollow)
	protected.GET("/follow", profileController.FollowFeed)
	protected.POST("/groups", groupController.CreateGroup)
	protected.DELETE("/groups/:slug", groupController.DeleteGroup)
	protected.DELETE("/users/:username", profileController.DeleteUser)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}

// ginLogger opens the request log file, or returns nil when none is configured.
func ginLogger(cfg config.AppConfig) *zap.Logger {
	if cfg.GinPath == "" {
		return nil
	}
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		utils.Sugar.Warnf("gin request log disabled: %v", err)
		return nil
	}
	return gl
}
