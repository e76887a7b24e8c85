package ctlproto

import (
	"context"

	"go.uber.org/zap"

	"github.com/lattice-run/lattice/internal/bus"
)

// HandlerFunc processes one inbound control message and, for unicast
// subjects, returns the bytes to reply with. Return nil to send no reply
// (broadcast subjects, or handlers that reply asynchronously themselves).
type HandlerFunc func(ctx context.Context, msg bus.Message) ([]byte, error)

// Dispatcher binds subjects to handlers, per the "tagged-variant envelope
// ... handler dispatch keyed on the subject token" design note (spec.md
// §9). It owns no business logic: internal/host and internal/metadata
// register their handlers against it.
type Dispatcher struct {
	b    bus.Bus
	log  *zap.SugaredLogger
	subs []bus.Subscription
}

// NewDispatcher binds to b, logging handler errors through log.
func NewDispatcher(b bus.Bus, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{b: b, log: log}
}

// Handle subscribes subjectPattern and wires fn's return value back to the
// message's reply inbox, if any.
func (d *Dispatcher) Handle(subjectPattern string, fn HandlerFunc) error {
	sub, err := d.b.Subscribe(subjectPattern, func(ctx context.Context, msg bus.Message) {
		resp, err := fn(ctx, msg)
		if err != nil {
			if d.log != nil {
				d.log.Errorw("ctlproto: handler error", "subject", msg.Subject, "error", err)
			}
			return
		}
		if resp == nil || msg.Reply == "" {
			return
		}
		if err := d.b.Publish(ctx, msg.Reply, resp, nil); err != nil && d.log != nil {
			d.log.Errorw("ctlproto: reply publish failed", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return err
	}
	d.subs = append(d.subs, sub)
	return nil
}

// Close unsubscribes every handler registered on this dispatcher.
func (d *Dispatcher) Close() {
	for _, s := range d.subs {
		_ = s.Unsubscribe()
	}
	d.subs = nil
}
