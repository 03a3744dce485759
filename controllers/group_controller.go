package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/blogfeed/middleware"
	"github.com/cppla/blogfeed/services"
	"github.com/cppla/blogfeed/utils"
)

// GroupController serves groups and their feeds.
type GroupController struct {
	blog *services.BlogService
}

// NewGroupController creates a GroupController.
func NewGroupController(blog *services.BlogService) *GroupController {
	return &GroupController{blog: blog}
}

// ListGroups returns every group.
func (g *GroupController) ListGroups(ctx *gin.Context) {
	groups, err := g.blog.ListGroups(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": groups})
}

// GroupPosts returns one page of a group's feed.
func (g *GroupController) GroupPosts(ctx *gin.Context) {
	slug := ctx.Param("slug")
	page := pageParam(ctx)
	key := utils.GroupFeedKey(utils.FeedGeneration(), slug, page)
	if serveCached(ctx, key) {
		return
	}
	feed, err := g.blog.GroupFeedView(ctx.Request.Context(), slug, page)
	if err != nil {
		respondError(ctx, err)
		return
	}
	successCached(ctx, key, feed)
}

// CreateGroup adds a group (admin only).
func (g *GroupController) CreateGroup(ctx *gin.Context) {
	var req struct {
		Title       string `json:"title"`
		Slug        string `json:"slug"`
		Description string `json:"description"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	group, err := g.blog.CreateGroup(ctx.Request.Context(), middleware.CurrentUser(ctx), req.Title, req.Slug, req.Description)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"group": group, "redirect": services.GroupPath(group.Slug)})
}

// DeleteGroup removes a group; its posts stay without a group (admin only).
func (g *GroupController) DeleteGroup(ctx *gin.Context) {
	if err := g.blog.DeleteGroup(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("slug")); err != nil {
		respondError(ctx, err)
		return
	}
	invalidateFeeds()
	utils.Success(ctx, gin.H{"message": "group deleted", "redirect": services.GlobalFeedPath})
}
