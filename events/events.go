// Package events announces blog activity to other services.
package events

import (
	"context"
	"time"
)

// Event names, appended to the configured subject prefix.
const (
	PostCreated    = "post.created"
	PostUpdated    = "post.updated"
	PostDeleted    = "post.deleted"
	CommentCreated = "comment.created"
	FollowCreated  = "follow.created"
	FollowDeleted  = "follow.deleted"
)

// PostEvent describes a post that was published, edited or removed.
type PostEvent struct {
	ID        uint      `json:"id"`
	AuthorID  uint      `json:"author_id"`
	Author    string    `json:"author"`
	GroupID   *uint     `json:"group_id,omitempty"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentEvent describes a new comment.
type CommentEvent struct {
	ID        uint      `json:"id"`
	PostID    uint      `json:"post_id"`
	AuthorID  uint      `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FollowEvent describes a follow edge being added or removed.
type FollowEvent struct {
	UserID   uint      `json:"user_id"`
	AuthorID uint      `json:"author_id"`
	At       time.Time `json:"at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishPost(ctx context.Context, name string, ev PostEvent) error
	PublishComment(ctx context.Context, ev CommentEvent) error
	PublishFollow(ctx context.Context, name string, ev FollowEvent) error
	Close()
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishPost(context.Context, string, PostEvent) error     { return nil }
func (NopPublisher) PublishComment(context.Context, CommentEvent) error       { return nil }
func (NopPublisher) PublishFollow(context.Context, string, FollowEvent) error { return nil }
func (NopPublisher) Close()                                                   {}
