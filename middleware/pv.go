package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/blogfeed/repository"
	"github.com/cppla/blogfeed/services"
	"github.com/cppla/blogfeed/utils"
)

// contentPrefixes are the read routes counted as page views.
var contentPrefixes = []string{
	services.APIBase + "/posts",
	services.APIBase + "/groups",
	services.APIBase + "/users",
	services.APIBase + "/follow",
}

// PageViewRecorder counts successful GETs of feed and post pages per day and path.
func PageViewRecorder(stats *repository.StatsRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodGet {
			return
		}
		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		path := c.Request.URL.Path
		if !isContentPath(path) {
			return
		}
		if err := stats.RecordView(c.Request.Context(), path, time.Now()); err != nil {
			utils.Sugar.Debugf("page view not recorded path=%s err=%v", path, err)
		}
	}
}

func isContentPath(path string) bool {
	for _, prefix := range contentPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
