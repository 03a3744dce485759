package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration observes request latency by method, route pattern and status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// PostsCreated counts published posts.
	PostsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blogfeed_posts_created_total",
		Help: "Total posts published",
	})

	// CommentsCreated counts comments added to posts.
	CommentsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blogfeed_comments_created_total",
		Help: "Total comments added",
	})

	// FollowChanges counts follow edges added or removed, labelled by action.
	FollowChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blogfeed_follow_changes_total",
		Help: "Follow graph edges added or removed",
	}, []string{"action"})

	// LoginFailure counts rejected logins, labelled by reason.
	LoginFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blogfeed_login_failure_total",
		Help: "Total failed login attempts",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(RequestDuration, PostsCreated, CommentsCreated, FollowChanges, LoginFailure)
}

// Metrics observes request latency labelled by the matched route pattern.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
