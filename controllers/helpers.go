package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/blogfeed/middleware"
	"github.com/cppla/blogfeed/repository"
	"github.com/cppla/blogfeed/services"
	"github.com/cppla/blogfeed/utils"
)

// cachedEnvelope matches utils.JSONResponse so cached bytes can be replayed verbatim.
type cachedEnvelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// respondError maps a service or repository error onto the response envelope.
func respondError(ctx *gin.Context, err error) {
	var verr *repository.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.Respond(ctx, http.StatusBadRequest, 40001, verr.Message, gin.H{"field": verr.Field})
	case errors.Is(err, services.ErrUnauthenticated):
		middleware.RedirectToLogin(ctx)
	case errors.Is(err, repository.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "not found")
	case errors.Is(err, services.ErrForbidden):
		utils.Error(ctx, http.StatusForbidden, 40301, "forbidden")
	case errors.Is(err, repository.ErrConflict):
		utils.Error(ctx, http.StatusConflict, 40901, "already exists")
	case errors.Is(err, repository.ErrSelfFollow):
		utils.Error(ctx, http.StatusBadRequest, 40002, err.Error())
	default:
		utils.Logger.Error("request failed",
			zap.String("path", ctx.Request.URL.Path), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50000, "internal error")
	}
}

// pageParam reads ?page=. Missing or malformed values mean the first page.
func pageParam(ctx *gin.Context) int {
	n, err := strconv.Atoi(strings.TrimSpace(ctx.Query("page")))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// postIDParam reads the :id route segment. ok is false after a 404 was written.
func postIDParam(ctx *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || n == 0 {
		utils.Error(ctx, http.StatusNotFound, 40401, "not found")
		return 0, false
	}
	return uint(n), true
}

// invalidateFeeds moves the feed cache to a new generation.
func invalidateFeeds() {
	utils.BumpFeedGeneration()
}

// serveCached replays a cached envelope for key. It reports whether it did.
func serveCached(ctx *gin.Context, key string) bool {
	if b, ok := utils.CacheGetBytes(key); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return true
	}
	return false
}

// successCached writes data and stores the envelope under key.
func successCached(ctx *gin.Context, key string, data interface{}) {
	utils.CacheSetJSON(key, cachedEnvelope{Code: 0, Message: "success", Data: data}, 0)
	utils.Success(ctx, data)
}
