// Package bus abstracts the lattice message bus: publish, subscribe, and
// unicast request/reply, plus the scatter/gather auction primitive built on
// top of them (spec.md §9: "the auction idiom ... should be implemented
// once as a reusable primitive over the message bus").
//
// No example repo in the retrieved corpus imports a pub/sub client library
// (no NATS, Redis pub/sub, Kafka or AMQP client was found anywhere in
// go.mod/go.sum across the pack), so this package is the ambient
// message-bus concern implemented directly on Go channels and goroutines —
// see DESIGN.md for the per-dependency justification.
package bus

import (
	"context"
	"time"
)

// Message is a single bus message: a subject, optional reply-to inbox,
// opaque payload, and tracing headers the receiver must propagate
// (spec.md §4.4).
type Message struct {
	Subject string
	Reply   string
	Data    []byte
	Headers map[string]string
}

// Handler processes an inbound message. Each subscription has its own
// delivery goroutine, so a slow handler does not hold up other
// subscriptions; messages to one subscription are handled one at a time,
// in order, so a slow handler delays that subscription's next message.
type Handler func(ctx context.Context, msg Message)

// Subscription is a live subscription; Unsubscribe stops delivery.
type Subscription interface {
	Unsubscribe() error
}

// Bus is the minimal pub/sub + request/reply contract every lattice
// component depends on.
type Bus interface {
	// Publish fires Data at subject with no reply expected (broadcast or
	// fire-and-forget unicast).
	Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error

	// PublishWithReply is Publish but stamps Reply on the outgoing
	// message so subscribers know where to send a response.
	PublishWithReply(ctx context.Context, subject, reply string, data []byte, headers map[string]string) error

	// Subscribe registers handler for subject, which may contain NATS-style
	// wildcard tokens ("*" for exactly one token, ">" for the remaining
	// tokens).
	Subscribe(subject string, handler Handler) (Subscription, error)

	// Request publishes to subject and waits up to timeout for exactly one
	// reply. A timeout or no-responder condition is returned as an error,
	// distinct from any business-level failure carried in the reply
	// payload (spec.md §4.4, §7).
	Request(ctx context.Context, subject string, data []byte, timeout time.Duration) (*Message, error)

	// NewInbox mints a private reply subject for a single request or
	// auction.
	NewInbox() string

	// Auction implements the scatter/gather primitive of spec.md §4.5/§9:
	// publish once, collect replies on a private inbox until the window
	// elapses or an empty-payload sentinel arrives.
	Auction(ctx context.Context, subject string, data []byte, window time.Duration) (*AuctionCollector, error)

	// Close releases bus resources.
	Close() error
}

// Default timeouts per spec.md §4.4/§5.
const (
	DefaultRequestTimeout = 2 * time.Second
	DefaultAuctionWindow  = 5 * time.Second
)
