package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/gin-gonic/gin"

	"github.com/cppla/blogfeed/config"
	"github.com/cppla/blogfeed/events"
	"github.com/cppla/blogfeed/repository"
	"github.com/cppla/blogfeed/routes"
	"github.com/cppla/blogfeed/services"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	c      *qt.C
	router *gin.Engine
}

func newClient(c *qt.C) *client {
	return newClientWith(c, events.NopPublisher{})
}

func newClientWith(c *qt.C, pub events.Publisher) *client {
	dir := c.TempDir()
	cfg := config.AppConfig{
		JWTSecret:          "test-secret",
		TokenTTLHours:      1,
		RateLimitPerMinute: 10000,
		AllowedOrigins:     []string{"*"},
		AdminUsernames:     []string{"admin"},
		GinMode:            "test",
		DBDriver:           "sqlite",
		DatabaseURI:        filepath.Join(dir, "api.db"),
		FollowFeedOrder:    config.FollowOrderAuthor,
		UploadsDir:         filepath.Join(dir, "uploads"),
		UploadsMaxMB:       1,
		UploadsTTLMinutes:  60,
		LogLevel:           "silent",
	}
	config.Set(cfg)

	db, err := config.OpenDatabase(cfg)
	c.Assert(err, qt.IsNil)
	c.Assert(config.Migrate(db), qt.IsNil)
	c.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	posts := repository.NewPostRepository(db)
	users := repository.NewUserRepository(db)
	stats := repository.NewStatsRepository(db)
	blog := services.NewBlogService(services.Repositories{
		Users:    users,
		Groups:   repository.NewGroupRepository(db),
		Posts:    posts,
		Comments: repository.NewCommentRepository(db),
		Follows:  repository.NewFollowRepository(db, posts),
		Stats:    stats,
	}, pub, services.Options{FollowOrder: cfg.FollowFeedOrder, IsAdmin: cfg.IsAdmin})

	r := routes.SetupRouter(routes.Deps{
		Config:  cfg,
		Users:   users,
		Stats:   stats,
		Uploads: repository.NewUploadRepository(db),
		Blog:    blog,
	})
	return &client{c: c, router: r}
}

func (cl *client) send(req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	cl.router.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		cl.c.Assert(json.Unmarshal(rec.Body.Bytes(), &env), qt.IsNil, qt.Commentf("body: %s", rec.Body.String()))
	}
	return rec, env
}

func (cl *client) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		cl.c.Assert(json.NewEncoder(&buf).Encode(body), qt.IsNil)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return cl.send(req, token)
}

func (cl *client) register(username string) string {
	rec, env := cl.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username, "email": username + "@example.com", "password": "secret123", "confirm": "secret123",
	})
	cl.c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
	var data struct {
		Token string `json:"token"`
	}
	cl.c.Assert(json.Unmarshal(env.Data, &data), qt.IsNil)
	cl.c.Assert(data.Token, qt.Not(qt.Equals), "")
	return data.Token
}

type postPayload struct {
	Post struct {
		ID   uint   `json:"id"`
		Text string `json:"text"`
	} `json:"post"`
	Redirect string `json:"redirect"`
}

func (cl *client) createPost(token, text, group string) postPayload {
	rec, env := cl.do(http.MethodPost, "/api/v1/posts", token, map[string]string{"text": text, "group": group})
	cl.c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
	var p postPayload
	cl.c.Assert(json.Unmarshal(env.Data, &p), qt.IsNil)
	return p
}

type pageData struct {
	Items []struct {
		Text   string `json:"text"`
		Author struct {
			Username string `json:"username"`
		} `json:"author"`
	} `json:"items"`
	Pagination repository.Pagination `json:"pagination"`
}

func (cl *client) page(path, token string) pageData {
	rec, env := cl.do(http.MethodGet, path, token, nil)
	cl.c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
	var p pageData
	cl.c.Assert(json.Unmarshal(env.Data, &p), qt.IsNil)
	return p
}

func (p pageData) texts() []string {
	out := []string{}
	for _, it := range p.Items {
		out = append(out, it.Text)
	}
	return out
}

func TestUnauthenticatedRedirectsToLogin(t *testing.T) {
	c := qt.New(t)
	cl := newClient(c)

	for _, tt := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/posts"},
		{http.MethodGet, "/api/v1/follow"},
		{http.MethodPost, "/api/v1/users/sarah/follow"},
		{http.MethodGet, "/api/v1/auth/me"},
	} {
		rec, env := cl.do(tt.method, tt.path, "", map[string]string{"text": "hi"})
		c.Assert(rec.Code, qt.Equals, http.StatusFound, qt.Commentf("%s %s", tt.method, tt.path))
		c.Assert(rec.Header().Get("Location"), qt.Equals, "/api/v1/auth/login?next="+neturl.QueryEscape(tt.path))
		c.Assert(env.Code, qt.Equals, 30201)
	}

	rec, _ := cl.do(http.MethodPost, "/api/v1/posts", "not-a-token", map[string]string{"text": "hi"})
	c.Assert(rec.Code, qt.Equals, http.StatusFound)
}

func TestCreatePostAndFeeds(t *testing.T) {
	c := qt.New(t)
	cl := newClient(c)
	admin := cl.register("admin")
	sarah := cl.register("sarah")

	rec, _ := cl.do(http.MethodPost, "/api/v1/groups", sarah, map[string]string{"title": "Cats", "slug": "cats"})
	c.Assert(rec.Code, qt.Equals, http.StatusForbidden)
	rec, _ = cl.do(http.MethodPost, "/api/v1/groups", admin, map[string]string{"title": "Cats", "slug": "cats"})
	c.Assert(rec.Code, qt.Equals, http.StatusOK)

	created := cl.createPost(sarah, "text four", "cats")
	c.Assert(created.Redirect, qt.Equals, "/api/v1/posts")
	c.Assert(created.Post.Text, qt.Equals, "text four")

	c.Assert(cl.page("/api/v1/posts", "").texts(), qt.DeepEquals, []string{"text four"})

	rec, env := cl.do(http.MethodGet, "/api/v1/groups/cats/posts", "", nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	var group struct {
		Group struct {
			Slug string `json:"slug"`
		} `json:"group"`
		Posts pageData `json:"posts"`
	}
	c.Assert(json.Unmarshal(env.Data, &group), qt.IsNil)
	c.Assert(group.Group.Slug, qt.Equals, "cats")
	c.Assert(group.Posts.texts(), qt.DeepEquals, []string{"text four"})

	rec, env = cl.do(http.MethodGet, "/api/v1/users/sarah", "", nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	var profile struct {
		Posts     pageData `json:"posts"`
		Following bool     `json:"following"`
	}
	c.Assert(json.Unmarshal(env.Data, &profile), qt.IsNil)
	c.Assert(profile.Posts.texts(), qt.DeepEquals, []string{"text four"})
	c.Assert(profile.Following, qt.IsFalse)

	rec, _ = cl.do(http.MethodPost, "/api/v1/posts", sarah, map[string]string{"text": "x", "group": "dogs"})
	c.Assert(rec.Code, qt.Equals, http.StatusBadRequest)
}

func TestValidationAndNotFound(t *testing.T) {
	c := qt.New(t)
	cl := newClient(c)
	sarah := cl.register("sarah")

	rec, env := cl.do(http.MethodPost, "/api/v1/posts", sarah, map[string]string{"text": "   "})
	c.Assert(rec.Code, qt.Equals, http.StatusBadRequest)
	var field struct {
		Field string `json:"field"`
	}
	c.Assert(json.Unmarshal(env.Data, &field), qt.IsNil)
	c.Assert(field.Field, qt.Equals, "text")
	c.Assert(cl.page("/api/v1/posts", "").Items, qt.HasLen, 0)

	for _, path := range []string{
		"/api/v1/users/nobody",
		"/api/v1/users/sarah/posts/999",
		"/api/v1/users/sarah/posts/abc",
		"/api/v1/groups/missing/posts",
	} {
		rec, env := cl.do(http.MethodGet, path, "", nil)
		c.Assert(rec.Code, qt.Equals, http.StatusNotFound, qt.Commentf("%s", path))
		c.Assert(env.Code, qt.Equals, 40401)
	}
}

func TestEditPost(t *testing.T) {
	c := qt.New(t)
	cl := newClient(c)
	sarah := cl.register("sarah")
	john := cl.register("john")
	post := cl.createPost(sarah, "text one", "")
	path := fmt.Sprintf("/api/v1/users/sarah/posts/%d", post.Post.ID)

	rec, _ := cl.do(http.MethodPut, path, john, map[string]string{"text": "hijacked"})
	c.Assert(rec.Code, qt.Equals, http.StatusFound)
	c.Assert(rec.Header().Get("Location"), qt.Equals, path)

	rec, env := cl.do(http.MethodPut, path, sarah, map[string]string{"text": "text two"})
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	var edited struct {
		Applied bool `json:"applied"`
		Post    struct {
			Text string `json:"text"`
		} `json:"post"`
	}
	c.Assert(json.Unmarshal(env.Data, &edited), qt.IsNil)
	c.Assert(edited.Applied, qt.IsTrue)
	c.Assert(edited.Post.Text, qt.Equals, "text two")

	rec, env = cl.do(http.MethodGet, path, "", nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	var detail struct {
		Post struct {
			Text string `json:"text"`
		} `json:"post"`
		PostsSum int64 `json:"posts_sum"`
	}
	c.Assert(json.Unmarshal(env.Data, &detail), qt.IsNil)
	c.Assert(detail.Post.Text, qt.Equals, "text two")
	c.Assert(detail.PostsSum, qt.Equals, int64(1))
}

func TestCommentsAndFollowFeed(t *testing.T) {
	c := qt.New(t)
	cl := newClient(c)
	sarah := cl.register("sarah")
	john := cl.register("john")
	mike := cl.register("mike")
	post := cl.createPost(sarah, "hello world", "")

	rec, env := cl.do(http.MethodPost, fmt.Sprintf("/api/v1/users/sarah/posts/%d/comments", post.Post.ID), john, map[string]string{"text": "nice"})
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	var comment struct {
		Redirect string `json:"redirect"`
	}
	c.Assert(json.Unmarshal(env.Data, &comment), qt.IsNil)
	c.Assert(comment.Redirect, qt.Equals, fmt.Sprintf("/api/v1/users/sarah/posts/%d", post.Post.ID))

	c.Assert(cl.page("/api/v1/follow", john).Items, qt.HasLen, 0)

	for i := 0; i < 2; i++ {
		rec, _ = cl.do(http.MethodPost, "/api/v1/users/sarah/follow", john, nil)
		c.Assert(rec.Code, qt.Equals, http.StatusOK)
	}
	feed := cl.page("/api/v1/follow", john)
	c.Assert(feed.texts(), qt.DeepEquals, []string{"hello world"})
	c.Assert(feed.Items[0].Author.Username, qt.Equals, "sarah")

	c.Assert(cl.page("/api/v1/follow", mike).Items, qt.HasLen, 0)

	rec, env = cl.do(http.MethodGet, "/api/v1/users/sarah", john, nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	var profile struct {
		Following bool  `json:"following"`
		PostCount int64 `json:"post_count"`
	}
	c.Assert(json.Unmarshal(env.Data, &profile), qt.IsNil)
	c.Assert(profile.Following, qt.IsTrue)
	c.Assert(profile.PostCount, qt.Equals, int64(1))

	rec, _ = cl.do(http.MethodPost, "/api/v1/users/sarah/unfollow", john, nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(cl.page("/api/v1/follow", john).Items, qt.HasLen, 0)
}

func TestLogoutRevokesToken(t *testing.T) {
	c := qt.New(t)
	cl := newClient(c)
	sarah := cl.register("sarah")

	rec, _ := cl.do(http.MethodGet, "/api/v1/auth/me", sarah, nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)

	rec, _ = cl.do(http.MethodPost, "/api/v1/auth/logout", sarah, nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)

	rec, _ = cl.do(http.MethodGet, "/api/v1/auth/me", sarah, nil)
	c.Assert(rec.Code, qt.Equals, http.StatusFound)

	rec, _ = cl.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "sarah", "password": "wrong"})
	c.Assert(rec.Code, qt.Equals, http.StatusUnauthorized)
}

func TestUploadImage(t *testing.T) {
	c := qt.New(t)
	cl := newClient(c)
	sarah := cl.register("sarah")

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
	upload := func(name string, content []byte) (*httptest.ResponseRecorder, envelope) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("file", name)
		c.Assert(err, qt.IsNil)
		_, err = fw.Write(content)
		c.Assert(err, qt.IsNil)
		c.Assert(mw.Close(), qt.IsNil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return cl.send(req, sarah)
	}

	rec, _ := upload("notes.txt", []byte("just text"))
	c.Assert(rec.Code, qt.Equals, http.StatusBadRequest)
	rec, _ = upload("disguised.png", []byte("<html><body>not an image</body></html>"))
	c.Assert(rec.Code, qt.Equals, http.StatusBadRequest)

	rec, env := upload("anim", []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\x00\x00\x00\xff\xff\xff!\xf9\x04\x01\x00\x00\x00\x00,\x00\x00\x00\x00\x01\x00\x01\x00\x00\x02\x02D\x01\x00;"))
	c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
	var gif struct {
		URL string `json:"url"`
	}
	c.Assert(json.Unmarshal(env.Data, &gif), qt.IsNil)
	c.Assert(strings.HasSuffix(gif.URL, ".gif"), qt.IsTrue, qt.Commentf("%s", gif.URL))

	rec, env = upload("pixel.png", png)
	c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
	var data struct {
		URL string `json:"url"`
	}
	c.Assert(json.Unmarshal(env.Data, &data), qt.IsNil)
	c.Assert(strings.HasPrefix(data.URL, "/static/uploads/"), qt.IsTrue)
	c.Assert(strings.HasSuffix(data.URL, ".png"), qt.IsTrue)

	rec, _ = cl.do(http.MethodPost, "/api/v1/posts", sarah, map[string]string{"text": "with picture", "image": data.URL})
	c.Assert(rec.Code, qt.Equals, http.StatusOK)

	rec, _ = cl.do(http.MethodGet, data.URL, "", nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
}

type requestIDRecorder struct {
	events.NopPublisher
	ids []string
}

func (r *requestIDRecorder) PublishPost(ctx context.Context, _ string, _ events.PostEvent) error {
	r.ids = append(r.ids, events.RequestID(ctx))
	return nil
}

func TestRequestIDReachesEvents(t *testing.T) {
	c := qt.New(t)
	pub := &requestIDRecorder{}
	cl := newClientWith(c, pub)
	sarah := cl.register("sarah")

	rec, _ := cl.do(http.MethodGet, "/api/v1/posts", "", nil)
	c.Assert(rec.Header().Get("X-Request-ID"), qt.Not(qt.Equals), "")

	var body bytes.Buffer
	c.Assert(json.NewEncoder(&body).Encode(map[string]string{"text": "traced"}), qt.IsNil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", &body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-42")
	rec, _ = cl.send(req, sarah)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(rec.Header().Get("X-Request-ID"), qt.Equals, "req-42")
	c.Assert(pub.ids, qt.DeepEquals, []string{"req-42"})
}
