package bus

import (
	"context"
	"time"
)

// AuctionCollector streams scatter/gather responses to a single auction
// request. Messages is closed once the auction window elapses, an empty
// payload "end of stream" sentinel arrives (spec.md §4.5/§9: "the client
// MUST treat it as end-of-stream defensively"), or Stop is called early
// (e.g. the caller hit a deserialization error on a prior message and
// wants to stop collecting without waiting out the rest of the window).
type AuctionCollector struct {
	Messages <-chan Message
	Stop     func()
}

// Auction implements the scatter/gather primitive described in spec.md
// §4.5 and the design note in §9: one inbox, one deadline, one drain. The
// caller publishes to subjectName with a reply inbox this call manages,
// and ranges over the returned Messages channel for up to window.
func (b *InProc) Auction(ctx context.Context, subjectName string, data []byte, window time.Duration) (*AuctionCollector, error) {
	inbox := b.NewInbox()
	out := make(chan Message, 256)
	stopCh := make(chan struct{})
	var stopped bool

	sub, err := b.Subscribe(inbox, func(_ context.Context, msg Message) {
		select {
		case <-stopCh:
			return
		default:
		}
		if len(msg.Data) == 0 {
			// Empty-payload sentinel: stop collecting immediately.
			select {
			case <-stopCh:
			default:
				close(stopCh)
			}
			return
		}
		select {
		case out <- msg:
		case <-stopCh:
		}
	})
	if err != nil {
		return nil, err
	}

	stop := func() {
		if stopped {
			return
		}
		stopped = true
		select {
		case <-stopCh:
		default:
			close(stopCh)
		}
	}

	go func() {
		timer := time.NewTimer(window)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-stopCh:
		case <-ctx.Done():
		}
		_ = sub.Unsubscribe()
		close(out)
	}()

	pubCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()
	if err := b.publish(pubCtx, subjectName, inbox, data, nil); err != nil {
		stop()
		return nil, err
	}

	return &AuctionCollector{Messages: out, Stop: stop}, nil
}
