// Package events carries invalidation events between instances over NATS.
// Each instance applies its own mutations directly and only reacts to events
// published by other instances.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject events are published on.
const DefaultSubject = "nanofeed.events"

// Event kinds.
const (
	PostCreated    = "post.created"
	PostDeleted    = "post.deleted"
	LikeToggled    = "like.toggled"
	CommentCreated = "comment.created"
	CommentDeleted = "comment.deleted"
	FollowToggled  = "follow.toggled"
	ProfileUpdated = "profile.updated"
)

// Event names the entities a mutation touched.
type Event struct {
	Kind     string    `json:"kind"`
	UserID   string    `json:"user_id,omitempty"`
	TargetID string    `json:"target_id,omitempty"`
	PostID   string    `json:"post_id,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher is implemented by Bus and Nop.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Handler reacts to an event published by another instance.
type Handler func(Event)

type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// Bus publishes events to NATS and dispatches remote events to handlers. An
// unconnected Bus drops everything.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	conn     *nats.Conn
	sub      *nats.Subscription
	subject  string
	origin   string
	logger   *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subject: DefaultSubject,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Connect dials NATS and subscribes to subject.
func (b *Bus) Connect(url, subject string) error {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := nats.Connect(url, nats.Name("nano-feed"), nats.MaxReconnects(-1))
	if err != nil {
		return err
	}
	sub, err := conn.Subscribe(subject, b.receive)
	if err != nil {
		conn.Close()
		return err
	}

	b.mu.Lock()
	b.conn, b.sub, b.subject = conn, sub, subject
	b.mu.Unlock()
	return nil
}

// Subscribe registers h for remote events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

func (b *Bus) Publish(_ context.Context, e Event) {
	b.mu.RLock()
	conn, subject := b.conn, b.subject
	b.mu.RUnlock()
	if conn == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	payload, err := json.Marshal(envelope{Origin: b.origin, Event: e})
	if err != nil {
		b.logger.Error("encode event", "kind", e.Kind, "error", err)
		return
	}
	if err := conn.Publish(subject, payload); err != nil {
		b.logger.Warn("publish event", "subject", subject, "kind", e.Kind, "error", err)
	}
}

func (b *Bus) receive(msg *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		b.logger.Warn("discarding malformed event", "subject", msg.Subject, "error", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	b.dispatch(env.Event)
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}

// Close drains the subscription and closes the connection.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.logger.Warn("drain nats connection", "error", err)
		b.conn.Close()
	}
	b.conn, b.sub = nil, nil
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
