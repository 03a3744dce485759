package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/cppla/blogfeed/utils"
)

// msgConn is the slice of *nats.Conn the publisher needs.
type msgConn interface {
	PublishMsg(m *nats.Msg) error
	Drain() error
}

// NatsPublisher publishes JSON encoded events on <prefix>.<name>.
type NatsPublisher struct {
	nc     msgConn
	prefix string
}

// NewNatsPublisher wraps an established connection.
func NewNatsPublisher(nc *nats.Conn, prefix string) *NatsPublisher {
	return newNatsPublisher(nc, prefix)
}

func newNatsPublisher(nc msgConn, prefix string) *NatsPublisher {
	return &NatsPublisher{nc: nc, prefix: strings.Trim(prefix, ".")}
}

// Connect dials url and returns a publisher. An empty url yields a NopPublisher.
func Connect(url, prefix string) (Publisher, error) {
	if strings.TrimSpace(url) == "" {
		return NopPublisher{}, nil
	}
	nc, err := nats.Connect(url,
		nats.Name("blogfeed"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				utils.Logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			utils.Logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return NewNatsPublisher(nc, prefix), nil
}

// Subject returns the full subject for an event name.
func (p *NatsPublisher) Subject(name string) string {
	if p.prefix == "" {
		return name
	}
	return p.prefix + "." + name
}

func (p *NatsPublisher) PublishPost(ctx context.Context, name string, ev PostEvent) error {
	return p.publish(ctx, name, ev)
}

func (p *NatsPublisher) PublishComment(ctx context.Context, ev CommentEvent) error {
	return p.publish(ctx, CommentCreated, ev)
}

func (p *NatsPublisher) PublishFollow(ctx context.Context, name string, ev FollowEvent) error {
	return p.publish(ctx, name, ev)
}

// Close flushes pending messages and closes the connection.
func (p *NatsPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		utils.Logger.Warn("nats drain", zap.Error(err))
	}
}

func (p *NatsPublisher) publish(ctx context.Context, name string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	msg := &nats.Msg{
		Subject: p.Subject(name),
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Content-Type", "application/json")
	if id := RequestID(ctx); id != "" {
		msg.Header.Set("X-Request-ID", id)
	}
	utils.Logger.Debug("publishing event", zap.String("subject", msg.Subject))
	return p.nc.PublishMsg(msg)
}

type requestIDKey struct{}

// WithRequestID tags ctx so published events carry the originating request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
