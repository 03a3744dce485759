package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/blogfeed/middleware"
	"github.com/cppla/blogfeed/services"
	"github.com/cppla/blogfeed/utils"
)

// ProfileController serves author profiles, the follow graph and the followed feed.
type ProfileController struct {
	blog *services.BlogService
}

// NewProfileController creates a ProfileController.
func NewProfileController(blog *services.BlogService) *ProfileController {
	return &ProfileController{blog: blog}
}

// Profile returns an author's posts and whether the caller follows them.
func (p *ProfileController) Profile(ctx *gin.Context) {
	profile, err := p.blog.ProfileView(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("username"), pageParam(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, profile)
}

// Follow subscribes the caller to the author.
func (p *ProfileController) Follow(ctx *gin.Context) {
	res, err := p.blog.FollowAuthor(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("username"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if res.Changed {
		middleware.FollowChanges.WithLabelValues("follow").Inc()
	}
	utils.Success(ctx, res)
}

// Unfollow removes the caller's subscription to the author.
func (p *ProfileController) Unfollow(ctx *gin.Context) {
	res, err := p.blog.UnfollowAuthor(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("username"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if res.Changed {
		middleware.FollowChanges.WithLabelValues("unfollow").Inc()
	}
	utils.Success(ctx, res)
}

// FollowFeed returns posts by the authors the caller follows.
func (p *ProfileController) FollowFeed(ctx *gin.Context) {
	posts, err := p.blog.FollowedFeedView(ctx.Request.Context(), middleware.CurrentUser(ctx), pageParam(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, posts)
}

// DeleteUser removes an account with everything it wrote (admin only).
func (p *ProfileController) DeleteUser(ctx *gin.Context) {
	if err := p.blog.DeleteUser(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("username")); err != nil {
		respondError(ctx, err)
		return
	}
	invalidateFeeds()
	utils.Success(ctx, gin.H{"message": "user deleted", "redirect": services.GlobalFeedPath})
}
