package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/blogfeed/models"
	"github.com/cppla/blogfeed/repository"
	"github.com/cppla/blogfeed/services"
	"github.com/cppla/blogfeed/utils"
)

const (
	// ContextUserKey holds the authenticated *models.User.
	ContextUserKey = "user"
	// ContextTokenKey holds the raw bearer token of the request.
	ContextTokenKey = "token"
	// TokenCookie is read when no Authorization header is sent.
	TokenCookie = "token"
)

// LoginPath is where unauthenticated callers are sent.
const LoginPath = services.APIBase + "/auth/login"

// LoginRedirect returns the login URL that brings the caller back to next.
func LoginRedirect(next string) string {
	return LoginPath + "?next=" + url.QueryEscape(next)
}

// AuthRequired resolves the caller from the bearer token. Anonymous callers
// are redirected to the login page instead of receiving a hard error.
func AuthRequired(users *repository.UserRepository) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !authenticate(ctx, users) {
			RedirectToLogin(ctx)
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// OptionalAuth resolves the caller when a valid token is present and lets
// the request through either way.
func OptionalAuth(users *repository.UserRepository) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authenticate(ctx, users)
		ctx.Next()
	}
}

// RedirectToLogin answers with a 302 to the login page.
func RedirectToLogin(ctx *gin.Context) {
	utils.Redirect(ctx, 30201, "login required", LoginRedirect(ctx.Request.URL.RequestURI()))
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(ctx *gin.Context) *models.User {
	v, ok := ctx.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// CurrentToken returns the raw token the request was authenticated with.
func CurrentToken(ctx *gin.Context) string {
	return ctx.GetString(ContextTokenKey)
}

func authenticate(ctx *gin.Context, users *repository.UserRepository) bool {
	token := bearerToken(ctx.Request)
	if token == "" {
		return false
	}
	if utils.IsTokenRevoked(token) {
		return false
	}
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Sugar.Debugf("rejecting token: %v", err)
		return false
	}
	user, err := users.GetByID(ctx.Request.Context(), claims.UserID)
	if err != nil {
		return false
	}
	ctx.Set(ContextUserKey, user)
	ctx.Set(ContextTokenKey, token)
	return true
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
