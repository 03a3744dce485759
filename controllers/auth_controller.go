package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/blogfeed/middleware"
	"github.com/cppla/blogfeed/models"
	"github.com/cppla/blogfeed/repository"
	"github.com/cppla/blogfeed/services"
	"github.com/cppla/blogfeed/utils"
)

// AuthController issues and revokes session tokens for local accounts.
type AuthController struct {
	users *repository.UserRepository
	blog  *services.BlogService
}

// NewAuthController creates an AuthController.
func NewAuthController(users *repository.UserRepository, blog *services.BlogService) *AuthController {
	return &AuthController{users: users, blog: blog}
}

// Register creates an account and signs it in.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email"`
		Password string `json:"password" binding:"required"`
		Confirm  string `json:"confirm"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	username := strings.TrimSpace(req.Username)
	if l := len([]rune(username)); l < 2 || l > 64 || !validUsername(username) {
		utils.Respond(ctx, http.StatusBadRequest, 40002,
			"usernames are 2-64 letters, digits or @.+-_", gin.H{"field": "username"})
		return
	}
	if req.Confirm != "" && req.Password != req.Confirm {
		utils.Respond(ctx, http.StatusBadRequest, 40002, "passwords do not match", gin.H{"field": "confirm"})
		return
	}
	if len(req.Password) < 6 {
		utils.Respond(ctx, http.StatusBadRequest, 40002, "password must be at least 6 characters", gin.H{"field": "password"})
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}
	user, err := a.users.Create(ctx.Request.Context(), username, req.Email, hash)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
			return
		}
		respondError(ctx, err)
		return
	}
	a.issueToken(ctx, user, services.GlobalFeedPath)
}

// LoginPage is where anonymous callers are redirected; it names the route to post credentials to.
func (a *AuthController) LoginPage(ctx *gin.Context) {
	utils.Respond(ctx, http.StatusUnauthorized, 40100, "login required", gin.H{
		"login": middleware.LoginPath,
		"next":  ctx.Query("next"),
	})
}

// Login verifies credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	user, err := a.users.GetByUsername(ctx.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		middleware.LoginFailure.WithLabelValues("unknown user").Inc()
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		middleware.LoginFailure.WithLabelValues("bad password").Inc()
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	next := ctx.Query("next")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = services.GlobalFeedPath
	}
	a.issueToken(ctx, user, next)
}

// Logout revokes the current token until it expires.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := middleware.CurrentToken(ctx)
	expiresAt := time.Now().Add(utils.TokenTTL())
	if claims, err := utils.ParseToken(token); err == nil && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.RevokeToken(token, expiresAt)
	ctx.SetCookie(middleware.TokenCookie, "", -1, "/", "", false, true)
	utils.Success(ctx, gin.H{"message": "logged out", "redirect": services.GlobalFeedPath})
}

// Me returns the signed-in user.
func (a *AuthController) Me(ctx *gin.Context) {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		middleware.RedirectToLogin(ctx)
		return
	}
	utils.Success(ctx, a.userResponse(user))
}

func (a *AuthController) issueToken(ctx *gin.Context, user *models.User, redirect string) {
	ttl := utils.TokenTTL()
	token, err := utils.GenerateToken(user.ID, user.Username, ttl)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	ctx.SetCookie(middleware.TokenCookie, token, int(ttl.Seconds()), "/", "", false, true)
	utils.Success(ctx, gin.H{
		"token":    token,
		"user":     a.userResponse(user),
		"redirect": redirect,
	})
}

func (a *AuthController) userResponse(user *models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"created_at": user.CreatedAt,
		"is_admin":   a.blog.IsAdmin(user),
	}
}

func validUsername(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case strings.ContainsRune("@.+-_", r):
		default:
			return false
		}
	}
	return true
}
