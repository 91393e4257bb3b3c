// Package transport delivers verification codes and reminders to users.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/garden-reminders/internal/model"
)

// ErrNoRoute is returned by Router.Send for a channel with no transport.
var ErrNoRoute = errors.New("no transport for channel")

// Message is a single outbound delivery.
type Message struct {
	// Channel selects the delivery path (email or web).
	Channel model.Channel

	// To is the destination: an email address for email, a user id for web.
	To string

	Subject  string
	Body     string
	HTMLBody string
}

// Transport sends a message. The reminder core treats it as
// fire-and-forget: no state transition depends on the outcome.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Func adapts a function to Transport.
type Func func(ctx context.Context, msg Message) error

// Send calls f.
func (f Func) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Router dispatches messages to a per-channel transport.
type Router struct {
	routes map[model.Channel]Transport
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{routes: make(map[model.Channel]Transport)}
}

// Handle registers t for channel c, replacing any previous transport.
func (r *Router) Handle(c model.Channel, t Transport) *Router {
	r.routes[c] = t
	return r
}

// Send delivers msg through the transport registered for msg.Channel.
func (r *Router) Send(ctx context.Context, msg Message) error {
	t, ok := r.routes[msg.Channel]
	if !ok {
		return fmt.Errorf("sending to %s: %w", msg.Channel, ErrNoRoute)
	}
	return t.Send(ctx, msg)
}
