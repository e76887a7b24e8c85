package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// inboxPrefix matches the "_INBOX."-style private reply subjects used by
// NATS-based systems, which the bit-exact subjects in spec.md §6 never
// collide with (they all live under wasmbus.*).
const inboxPrefix = "_INBOX"

// InProc is an in-process Bus implementation: every component in a single
// process (or test) shares one InProc and talks through it exactly as it
// would through a real lattice message bus. Delivery to each subscriber
// runs on its own goroutine fed by a 64-message buffered channel, so a
// slow handler does not starve other subscribers; Publish blocks only once
// a matching subscriber's buffer is full (until it drains, the
// subscription ends, or ctx is done).
type InProc struct {
	mu       sync.RWMutex
	closed   bool
	subs     map[string]*subscription
	deliverN int32
}

type subscription struct {
	id      string
	subject string
	handler Handler
	ch      chan Message
	done    chan struct{}
}

// NewInProc constructs a ready-to-use in-process bus.
func NewInProc() *InProc {
	return &InProc{subs: make(map[string]*subscription)}
}

// NewInbox mints a private reply subject unique within this bus.
func (b *InProc) NewInbox() string {
	return fmt.Sprintf("%s.%s", inboxPrefix, uuid.NewString())
}

// Publish delivers data to every live subscription whose subject pattern
// matches subject.
func (b *InProc) Publish(ctx context.Context, subjectName string, data []byte, headers map[string]string) error {
	return b.publish(ctx, subjectName, "", data, headers)
}

// PublishWithReply is Publish, stamping reply on the delivered message.
func (b *InProc) PublishWithReply(ctx context.Context, subjectName, reply string, data []byte, headers map[string]string) error {
	return b.publish(ctx, subjectName, reply, data, headers)
}

func (b *InProc) publish(ctx context.Context, subjectName, reply string, data []byte, headers map[string]string) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus: publish on closed bus")
	}
	var targets []*subscription
	for _, s := range b.subs {
		if matchSubject(s.subject, subjectName) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	msg := Message{Subject: subjectName, Reply: reply, Data: data, Headers: headers}
	for _, s := range targets {
		select {
		case s.ch <- msg:
			atomic.AddInt32(&b.deliverN, 1)
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers handler against subject (which may contain "*"/">"
// wildcard tokens) and starts the delivery goroutine.
func (b *InProc) Subscribe(subjectName string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("bus: subscribe on closed bus")
	}
	sub := &subscription{
		id:      uuid.NewString(),
		subject: subjectName,
		handler: handler,
		ch:      make(chan Message, 64),
		done:    make(chan struct{}),
	}
	b.subs[sub.id] = sub
	b.mu.Unlock()

	go sub.run()

	return sub, nil
}

func (s *subscription) run() {
	for {
		select {
		case msg := <-s.ch:
			s.handler(context.Background(), msg)
		case <-s.done:
			return
		}
	}
}

// Unsubscribe stops delivery to this subscription.
func (s *subscription) Unsubscribe() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	return nil
}

// Request publishes to subjectName with a fresh inbox as reply, and waits
// up to timeout for exactly one response. A timeout is a transport error,
// distinct from any success=false business response (spec.md §4.4, §7).
func (b *InProc) Request(ctx context.Context, subjectName string, data []byte, timeout time.Duration) (*Message, error) {
	inbox := b.NewInbox()
	replyCh := make(chan Message, 1)

	sub, err := b.Subscribe(inbox, func(_ context.Context, msg Message) {
		select {
		case replyCh <- msg:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = sub.Unsubscribe() }()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := b.publish(reqCtx, subjectName, inbox, data, nil); err != nil {
		return nil, fmt.Errorf("bus: request publish: %w", err)
	}

	select {
	case msg := <-replyCh:
		return &msg, nil
	case <-reqCtx.Done():
		return nil, fmt.Errorf("bus: request to %s: %w", subjectName, reqCtx.Err())
	}
}

// Close tears down all subscriptions. Further Publish/Subscribe calls
// fail.
func (b *InProc) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, s := range b.subs {
		_ = s.Unsubscribe()
	}
	return nil
}
