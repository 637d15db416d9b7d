// Package realtime keeps the laborer -> live push channel bindings used to
// deliver job offers.
//
// The registry is process-local and never persisted. Clients re-register
// after a reconnect, so a restart simply starts from an empty map.
package realtime

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrChannelClosed is returned by a Channel that can no longer write.
var ErrChannelClosed = errors.New("channel closed")

// Channel is a bidirectional, ordered message channel bound to one laborer.
type Channel interface {
	Send(msg Message) error
	Closed() bool
	Close() error
}

// DropReason explains why a send was not delivered.
type DropReason string

const (
	NotConnected DropReason = "not_connected"
	ChannelGone  DropReason = "closed"
)

// Outcome is the result of a single best-effort send.
type Outcome struct {
	Delivered bool
	Reason    DropReason
}

// Delivered is the outcome of a successful send.
var Delivered = Outcome{Delivered: true}

// Dropped returns the outcome of a failed send.
func Dropped(reason DropReason) Outcome {
	return Outcome{Reason: reason}
}

func (o Outcome) String() string {
	if o.Delivered {
		return "delivered"
	}
	return "dropped:" + string(o.Reason)
}

// Registry maps laborer identities to at most one live channel.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
	logger   *slog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		channels: make(map[string]Channel),
		logger:   logger,
	}
}

// Register binds identity to ch. A previous binding for the same identity is
// replaced but not closed; its owner is expected to close it when its
// connection ends.
func (r *Registry) Register(identity string, ch Channel) {
	r.mu.Lock()
	prev, existed := r.channels[identity]
	r.channels[identity] = ch
	r.mu.Unlock()

	if existed && prev != ch {
		r.logger.Info("Channel superseded by new registration",
			slog.String("laborer_id", identity),
		)
	}
}

// Unregister removes the binding whose channel is ch, if any. It returns the
// identity that was unbound. Bindings that were superseded by a newer channel
// are left alone.
func (r *Registry) Unregister(ch Channel) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// linear scan; the map is keyed by identity, not channel
	for identity, bound := range r.channels {
		if bound == ch {
			delete(r.channels, identity)
			return identity, true
		}
	}
	return "", false
}

// Send delivers msg to identity's channel. Delivery is at-most-once: there is
// no buffering and no retry.
func (r *Registry) Send(identity string, msg Message) Outcome {
	r.mu.RLock()
	ch, ok := r.channels[identity]
	r.mu.RUnlock()

	if !ok {
		return Dropped(NotConnected)
	}
	if ch.Closed() {
		return Dropped(ChannelGone)
	}
	if err := ch.Send(msg); err != nil {
		r.logger.Debug("Push send failed",
			slog.String("laborer_id", identity),
			slog.String("type", msg.Type),
			slog.String("error", err.Error()),
		)
		return Dropped(ChannelGone)
	}
	return Delivered
}

// IsConnected reports whether identity currently has a bound channel.
func (r *Registry) IsConnected(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.channels[identity]
	return ok
}

// Connected returns the number of bound identities.
func (r *Registry) Connected() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
