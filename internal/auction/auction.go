// Package auction implements the scheduler/auction layer of spec.md §4.5:
// the label-comparison predicate the host-side responder uses to decide
// whether to reply to a placement request. The client-side auctioneer
// (internal/ctlproto.Client.AuctionComponent/AuctionProvider, built on the
// generic bus Auction primitive) collects whatever replies arrive and does
// no label comparison of its own.
package auction

import "github.com/lattice-run/lattice/internal/ctlproto"

// Satisfies reports whether labels contains every (k, v) pair in
// constraints, per the comparison rule in spec.md §4.5: "for every (k, v)
// in constraints, the host's labels must contain k with the value v".
// An empty constraints map is always satisfied.
func Satisfies(labels, constraints map[string]string) bool {
	for k, v := range constraints {
		if labels[k] != v {
			return false
		}
	}
	return true
}

// ComponentDecision evaluates an auction_component request against a
// host's labels. It returns (ack, true) if the host should reply, or
// (nil, false) if it should stay silent (spec.md §4.5: "if not satisfied,
// the host does not reply").
func ComponentDecision(hostID string, labels map[string]string, req ctlproto.AuctionComponentRequest) (*ctlproto.AuctionComponentAck, bool) {
	if !Satisfies(labels, req.Constraints) {
		return nil, false
	}
	return &ctlproto.AuctionComponentAck{
		HostID:       hostID,
		ComponentRef: req.ImageRef,
		ComponentID:  req.ComponentID,
		Constraints:  req.Constraints,
	}, true
}

// ProviderDecision evaluates an auction_provider request against a host's
// labels, mirroring ComponentDecision.
func ProviderDecision(hostID string, labels map[string]string, req ctlproto.AuctionProviderRequest) (*ctlproto.AuctionProviderAck, bool) {
	if !Satisfies(labels, req.Constraints) {
		return nil, false
	}
	linkName := "default"
	return &ctlproto.AuctionProviderAck{
		HostID:      hostID,
		ProviderRef: req.ImageRef,
		ProviderID:  req.ProviderID,
		LinkName:    linkName,
		Constraints: req.Constraints,
	}, true
}
