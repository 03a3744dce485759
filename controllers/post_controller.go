package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/blogfeed/middleware"
	"github.com/cppla/blogfeed/services"
	"github.com/cppla/blogfeed/utils"
)

// PostController serves the global feed, post pages and comments.
type PostController struct {
	blog *services.BlogService
}

// NewPostController creates a new PostController instance.
func NewPostController(blog *services.BlogService) *PostController {
	return &PostController{blog: blog}
}

type postRequest struct {
	Text  string  `json:"text"`
	Group string  `json:"group"`
	Image *string `json:"image"`
}

func (r postRequest) form() services.PostForm {
	return services.PostForm{Text: r.Text, Group: r.Group, Image: r.Image}
}

// ListPosts returns one page of the global feed, newest first.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page := pageParam(ctx)
	key := utils.GlobalFeedKey(utils.FeedGeneration(), page)
	if serveCached(ctx, key) {
		return
	}
	posts, err := p.blog.GlobalFeedView(ctx.Request.Context(), page)
	if err != nil {
		respondError(ctx, err)
		return
	}
	successCached(ctx, key, posts)
}

// CreatePost publishes a post by the signed-in user.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	res, err := p.blog.CreatePost(ctx.Request.Context(), middleware.CurrentUser(ctx), req.form())
	if err != nil {
		respondError(ctx, err)
		return
	}
	invalidateFeeds()
	middleware.PostsCreated.Inc()
	utils.Success(ctx, res)
}

// GetPost returns a post with its comments and the author's post count.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := postIDParam(ctx)
	if !ok {
		return
	}
	detail, err := p.blog.PostDetailView(ctx.Request.Context(), ctx.Param("username"), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, detail)
}

// UpdatePost edits a post. Callers other than the author are redirected to the post unchanged.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	id, ok := postIDParam(ctx)
	if !ok {
		return
	}
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid request payload")
		return
	}
	res, err := p.blog.EditPost(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("username"), id, req.form())
	if err != nil {
		respondError(ctx, err)
		return
	}
	if !res.Applied {
		utils.Redirect(ctx, 30202, "redirect", res.Redirect)
		return
	}
	invalidateFeeds()
	utils.Success(ctx, res)
}

// DeletePost removes a post; allowed for its author and admins.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, ok := postIDParam(ctx)
	if !ok {
		return
	}
	redirect, err := p.blog.DeletePost(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("username"), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	invalidateFeeds()
	utils.Success(ctx, gin.H{"message": "post deleted", "redirect": redirect})
}

// CreateComment adds a comment to a post.
func (p *PostController) CreateComment(ctx *gin.Context) {
	id, ok := postIDParam(ctx)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
		return
	}
	res, err := p.blog.AddComment(ctx.Request.Context(), middleware.CurrentUser(ctx), ctx.Param("username"), id, req.Text)
	if err != nil {
		respondError(ctx, err)
		return
	}
	middleware.CommentsCreated.Inc()
	utils.Success(ctx, res)
}
