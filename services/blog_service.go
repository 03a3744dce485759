// Package services holds the blogging use cases. Everything here speaks in
// domain terms; the HTTP layer maps the results onto responses.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/blogfeed/config"
	"github.com/cppla/blogfeed/events"
	"github.com/cppla/blogfeed/models"
	"github.com/cppla/blogfeed/repository"
	"github.com/cppla/blogfeed/utils"
)

// Caller is the signed-in user performing an operation, nil when anonymous.
type Caller = *models.User

// Repositories bundles the stores the service works against.
type Repositories struct {
	Users    *repository.UserRepository
	Groups   *repository.GroupRepository
	Posts    *repository.PostRepository
	Comments *repository.CommentRepository
	Follows  *repository.FollowRepository
	Stats    *repository.StatsRepository
}

// Options tune a BlogService. Zero values fall back to the loaded config.
type Options struct {
	// FollowOrder is config.FollowOrderAuthor or config.FollowOrderRecent.
	FollowOrder string
	IsAdmin     func(username string) bool
	Now         func() time.Time
}

// BlogService implements the posting, commenting, following and feed use cases.
type BlogService struct {
	repos       Repositories
	events      events.Publisher
	authorFirst bool
	isAdmin     func(string) bool
	now         func() time.Time
}

// NewBlogService wires the service. A nil publisher drops events.
func NewBlogService(repos Repositories, pub events.Publisher, opts Options) *BlogService {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if opts.FollowOrder == "" {
		opts.FollowOrder = config.Get().FollowFeedOrder
	}
	if opts.IsAdmin == nil {
		opts.IsAdmin = func(username string) bool { return config.Get().IsAdmin(username) }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &BlogService{
		repos:       repos,
		events:      pub,
		authorFirst: opts.FollowOrder != config.FollowOrderRecent,
		isAdmin:     opts.IsAdmin,
		now:         opts.Now,
	}
}

// PostForm carries the editable fields of a post.
type PostForm struct {
	Text string
	// Group is a group slug; empty means no group.
	Group string
	// Image is an uploaded image URL; nil keeps the current image on edit.
	Image *string
}

// PostResult is a written post and where the client goes next.
type PostResult struct {
	Post     *models.Post `json:"post"`
	Redirect string       `json:"redirect"`
}

// EditResult reports whether an edit was applied. A caller who is not the
// author gets Applied=false and a redirect to the post, with nothing changed.
type EditResult struct {
	Post     *models.Post `json:"post"`
	Applied  bool         `json:"applied"`
	Redirect string       `json:"redirect"`
}

// CommentResult is a new comment and where the client goes next.
type CommentResult struct {
	Comment  *models.Comment `json:"comment"`
	Redirect string          `json:"redirect"`
}

// FollowResult reports whether the follow graph changed.
type FollowResult struct {
	Changed  bool   `json:"changed"`
	Redirect string `json:"redirect"`
}

// Profile is an author's page.
type Profile struct {
	Author    *models.User                 `json:"author"`
	Posts     repository.Page[models.Post] `json:"posts"`
	PostCount int64                        `json:"post_count"`
	Following bool                         `json:"following"`
}

// PostDetail is a single post with its discussion.
type PostDetail struct {
	Author       *models.User     `json:"author"`
	Post         *models.Post     `json:"post"`
	Comments     []models.Comment `json:"comments"`
	CommentCount int64            `json:"comment_count"`
	PostsSum     int64            `json:"posts_sum"`
}

// GroupFeed is one page of a group's posts.
type GroupFeed struct {
	Group *models.Group                `json:"group"`
	Posts repository.Page[models.Post] `json:"posts"`
}

// Stats summarises site activity.
type Stats struct {
	Users      int64 `json:"users"`
	Posts      int64 `json:"posts"`
	Comments   int64 `json:"comments"`
	Follows    int64 `json:"follows"`
	ViewsToday int64 `json:"views_today"`
}

// CreatePost publishes a post by caller.
func (s *BlogService) CreatePost(ctx context.Context, caller Caller, form PostForm) (*PostResult, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	groupID, err := s.groupID(ctx, form.Group)
	if err != nil {
		return nil, err
	}
	image := ""
	if form.Image != nil {
		image = *form.Image
	}
	post, err := s.repos.Posts.Create(ctx, caller.ID, utils.CleanText(form.Text), groupID, image)
	if err != nil {
		return nil, err
	}
	s.publishPost(ctx, events.PostCreated, post)
	return &PostResult{Post: post, Redirect: GlobalFeedPath}, nil
}

// EditPost applies form to the post id written by username. Only the author
// may edit; anyone else is sent back to the post.
func (s *BlogService) EditPost(ctx context.Context, caller Caller, username string, id uint, form PostForm) (*EditResult, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	author, post, err := s.authorPost(ctx, username, id)
	if err != nil {
		return nil, err
	}
	redirect := PostPath(author.Username, post.ID)
	if caller.ID != author.ID {
		utils.Logger.Info("edit refused, not the author",
			zap.Uint("post_id", post.ID), zap.Uint("caller_id", caller.ID))
		return &EditResult{Post: post, Applied: false, Redirect: redirect}, nil
	}

	text := utils.CleanText(form.Text)
	changes := repository.PostChanges{Text: &text, Image: form.Image}
	if strings.TrimSpace(form.Group) == "" {
		changes.ClearGroup = true
	} else {
		gid, err := s.groupID(ctx, form.Group)
		if err != nil {
			return nil, err
		}
		changes.GroupID = gid
	}
	if err := s.repos.Posts.Update(ctx, post, changes); err != nil {
		return nil, err
	}
	s.publishPost(ctx, events.PostUpdated, post)
	return &EditResult{Post: post, Applied: true, Redirect: redirect}, nil
}

// DeletePost removes a post and its comments. Authors and admins only.
func (s *BlogService) DeletePost(ctx context.Context, caller Caller, username string, id uint) (string, error) {
	if caller == nil {
		return "", ErrUnauthenticated
	}
	author, post, err := s.authorPost(ctx, username, id)
	if err != nil {
		return "", err
	}
	if caller.ID != author.ID && !s.isAdmin(caller.Username) {
		return "", ErrForbidden
	}
	if err := s.repos.Posts.Delete(ctx, post); err != nil {
		return "", err
	}
	s.publishPost(ctx, events.PostDeleted, post)
	return ProfilePath(author.Username), nil
}

// AddComment attaches a comment by caller to the post.
func (s *BlogService) AddComment(ctx context.Context, caller Caller, username string, id uint, text string) (*CommentResult, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	author, post, err := s.authorPost(ctx, username, id)
	if err != nil {
		return nil, err
	}
	comment, err := s.repos.Comments.Create(ctx, post.ID, caller.ID, utils.CleanText(text))
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "comment", s.events.PublishComment(ctx, events.CommentEvent{
		ID: comment.ID, PostID: post.ID, AuthorID: caller.ID, CreatedAt: comment.Created,
	}))
	return &CommentResult{Comment: comment, Redirect: PostPath(author.Username, post.ID)}, nil
}

// FollowAuthor subscribes caller to username. Following yourself or an
// author you already follow changes nothing.
func (s *BlogService) FollowAuthor(ctx context.Context, caller Caller, username string) (*FollowResult, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	author, err := s.repos.Users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	res := &FollowResult{Redirect: ProfilePath(author.Username)}
	if author.ID == caller.ID {
		return res, nil
	}
	changed, err := s.repos.Follows.Follow(ctx, caller.ID, author.ID)
	if err != nil {
		return nil, err
	}
	res.Changed = changed
	if changed {
		s.publishFollow(ctx, events.FollowCreated, caller.ID, author.ID)
	}
	return res, nil
}

// UnfollowAuthor removes the subscription if there is one.
func (s *BlogService) UnfollowAuthor(ctx context.Context, caller Caller, username string) (*FollowResult, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	author, err := s.repos.Users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	changed, err := s.repos.Follows.Unfollow(ctx, caller.ID, author.ID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.publishFollow(ctx, events.FollowDeleted, caller.ID, author.ID)
	}
	return &FollowResult{Changed: changed, Redirect: ProfilePath(author.Username)}, nil
}

// ProfileView pages through an author's posts. Following is false for anonymous callers.
func (s *BlogService) ProfileView(ctx context.Context, caller Caller, username string, page int) (*Profile, error) {
	author, err := s.repos.Users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	posts, err := s.repos.Posts.List(ctx, repository.PostFilter{AuthorID: &author.ID}, page)
	if err != nil {
		return nil, err
	}
	following := false
	if caller != nil {
		if following, err = s.repos.Follows.IsFollowing(ctx, caller.ID, author.ID); err != nil {
			return nil, err
		}
	}
	return &Profile{Author: author, Posts: posts, PostCount: posts.Pagination.Total, Following: following}, nil
}

// PostDetailView returns a post, its comments oldest first, and the author's post count.
func (s *BlogService) PostDetailView(ctx context.Context, username string, id uint) (*PostDetail, error) {
	author, post, err := s.authorPost(ctx, username, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.repos.Comments.ListByPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	count, err := s.repos.Comments.CountByPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	sum, err := s.repos.Posts.CountByAuthor(ctx, author.ID)
	if err != nil {
		return nil, err
	}
	return &PostDetail{
		Author:       author,
		Post:         post,
		Comments:     comments,
		CommentCount: count,
		PostsSum:     sum,
	}, nil
}

// GroupFeedView pages through the posts in the group with slug.
func (s *BlogService) GroupFeedView(ctx context.Context, slug string, page int) (*GroupFeed, error) {
	group, err := s.repos.Groups.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	posts, err := s.repos.Posts.List(ctx, repository.PostFilter{GroupID: &group.ID}, page)
	if err != nil {
		return nil, err
	}
	return &GroupFeed{Group: group, Posts: posts}, nil
}

// GlobalFeedView pages through every post, newest first.
func (s *BlogService) GlobalFeedView(ctx context.Context, page int) (repository.Page[models.Post], error) {
	return s.repos.Posts.List(ctx, repository.PostFilter{}, page)
}

// FollowedFeedView pages through posts by the authors caller follows.
func (s *BlogService) FollowedFeedView(ctx context.Context, caller Caller, page int) (repository.Page[models.Post], error) {
	if caller == nil {
		return repository.Page[models.Post]{}, ErrUnauthenticated
	}
	return s.repos.Follows.FollowedFeed(ctx, caller.ID, page, s.authorFirst)
}

// ListGroups returns every group.
func (s *BlogService) ListGroups(ctx context.Context) ([]models.Group, error) {
	return s.repos.Groups.List(ctx)
}

// CreateGroup adds a group. Admins only.
func (s *BlogService) CreateGroup(ctx context.Context, caller Caller, title, slug, description string) (*models.Group, error) {
	if err := s.requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.repos.Groups.Create(ctx, utils.CleanText(title), slug, utils.CleanText(description))
}

// DeleteGroup removes a group; its posts lose their group. Admins only.
func (s *BlogService) DeleteGroup(ctx context.Context, caller Caller, slug string) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	group, err := s.repos.Groups.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return s.repos.Groups.Delete(ctx, group)
}

// DeleteUser removes an account and everything it wrote. Admins only.
func (s *BlogService) DeleteUser(ctx context.Context, caller Caller, username string) error {
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	user, err := s.repos.Users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	return s.repos.Users.Delete(ctx, user)
}

// IsAdmin reports whether caller holds admin rights.
func (s *BlogService) IsAdmin(caller Caller) bool {
	return caller != nil && s.isAdmin(caller.Username)
}

// SiteStats counts rows and today's page views.
func (s *BlogService) SiteStats(ctx context.Context) (*Stats, error) {
	var st Stats
	var err error
	if st.Users, err = s.repos.Users.Count(ctx); err != nil {
		return nil, err
	}
	if st.Posts, err = s.repos.Posts.Count(ctx); err != nil {
		return nil, err
	}
	if st.Comments, err = s.repos.Comments.Count(ctx); err != nil {
		return nil, err
	}
	if st.Follows, err = s.repos.Follows.Count(ctx); err != nil {
		return nil, err
	}
	if s.repos.Stats != nil {
		if st.ViewsToday, err = s.repos.Stats.ViewsOn(ctx, s.now()); err != nil {
			return nil, err
		}
	}
	return &st, nil
}

func (s *BlogService) requireAdmin(caller Caller) error {
	if caller == nil {
		return ErrUnauthenticated
	}
	if !s.isAdmin(caller.Username) {
		return ErrForbidden
	}
	return nil
}

// authorPost resolves username and then the post id, which must be theirs.
func (s *BlogService) authorPost(ctx context.Context, username string, id uint) (*models.User, *models.Post, error) {
	author, err := s.repos.Users.GetByUsername(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	post, err := s.repos.Posts.Get(ctx, author.ID, id)
	if err != nil {
		return nil, nil, err
	}
	return author, post, nil
}

func (s *BlogService) groupID(ctx context.Context, slug string) (*uint, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil
	}
	group, err := s.repos.Groups.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &repository.ValidationError{Field: "group", Message: "unknown group " + slug}
		}
		return nil, err
	}
	return &group.ID, nil
}

func (s *BlogService) publishPost(ctx context.Context, name string, post *models.Post) {
	s.publish(ctx, name, s.events.PublishPost(ctx, name, events.PostEvent{
		ID:        post.ID,
		AuthorID:  post.AuthorID,
		Author:    post.Author.Username,
		GroupID:   post.GroupID,
		Content:   post.Text,
		CreatedAt: post.PubDate,
	}))
}

func (s *BlogService) publishFollow(ctx context.Context, name string, userID, authorID uint) {
	s.publish(ctx, name, s.events.PublishFollow(ctx, name, events.FollowEvent{
		UserID: userID, AuthorID: authorID, At: s.now(),
	}))
}

// publish logs a failed delivery. Events never fail the operation that raised them.
func (s *BlogService) publish(_ context.Context, name string, err error) {
	if err != nil {
		utils.Logger.Warn("event publish failed", zap.String("event", name), zap.Error(err))
	}
}
