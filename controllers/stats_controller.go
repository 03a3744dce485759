package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/blogfeed/services"
	"github.com/cppla/blogfeed/utils"
)

// StatsController reports site-wide counts.
type StatsController struct {
	blog *services.BlogService
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(blog *services.BlogService) *StatsController {
	return &StatsController{blog: blog}
}

// GetStats returns user, post, comment and follow counts plus today's page views.
func (s *StatsController) GetStats(ctx *gin.Context) {
	stats, err := s.blog.SiteStats(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, stats)
}

// Health reports liveness.
func Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}
