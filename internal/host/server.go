// Package host supplements the distilled spec's explicit "no WASM
// runtime, no capability-provider business logic" non-goal (spec.md §1)
// with the minimal in-memory model a host needs to make
// scale_component/start_provider/get_host_inventory/events meaningful
// end to end: an inventory of component variants and provider instances,
// a reconciler that turns early-acked commands into convergence events,
// and the host's own label map.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lattice-run/lattice/internal/auction"
	"github.com/lattice-run/lattice/internal/bus"
	"github.com/lattice-run/lattice/internal/claims"
	"github.com/lattice-run/lattice/internal/ctlproto"
	"github.com/lattice-run/lattice/internal/metadata"
	"github.com/lattice-run/lattice/internal/subject"
)

// HeartbeatInterval is how often a running host publishes host_heartbeat
// (spec.md §3: "emits periodic heartbeats").
const HeartbeatInterval = 30 * time.Second

// Host is a control-plane host: it owns an Inventory, a Labels set, and a
// Reconciler, and answers the control-protocol subjects of spec.md §6
// scoped to its own host id.
type Host struct {
	ID           string
	FriendlyName string
	Version      string

	Lattice     string
	TopicPrefix string

	Labels    *Labels
	Inventory *Inventory
	Reconciler *Reconciler

	Bus          bus.Bus
	Dispatcher   *ctlproto.Dispatcher
	MetadataStore metadata.Store // optional, used to resolve config names
	ClaimsCache   *claims.Cache  // optional, used to resolve provider contract ids
	Log           *zap.SugaredLogger

	startedAt time.Time
	stopCh    chan struct{}
}

// NewHost builds a Host ready to Start. puller may be nil, in which case
// scale/start/update operations skip the artifact-fetch step entirely
// (useful for tests exercising only the protocol/inventory contract).
func NewHost(id, friendlyName, version, lattice, topicPrefix string, labels map[string]string, b bus.Bus, puller ImagePuller, log *zap.SugaredLogger) *Host {
	inv := NewInventory()
	h := &Host{
		ID:           id,
		FriendlyName: friendlyName,
		Version:      version,
		Lattice:      lattice,
		TopicPrefix:  topicPrefix,
		Labels:       NewLabels(labels),
		Inventory:    inv,
		Bus:          b,
		Dispatcher:   ctlproto.NewDispatcher(b, log),
		Log:          log,
	}
	h.Reconciler = NewReconciler(id, lattice, inv, b, puller, log)
	return h
}

// Start registers every host-scoped subject handler, begins reconciling,
// emits host_started, and starts the heartbeat loop.
func (h *Host) Start(ctx context.Context) error {
	h.startedAt = time.Now()
	h.stopCh = make(chan struct{})
	h.Reconciler.Start(ctx, 4)

	handlers := []struct {
		subj string
		fn   ctlproto.HandlerFunc
	}{
		{subject.HostsGet(h.TopicPrefix, h.Lattice), h.handleGetHosts},
		{subject.HostInventoryGet(h.TopicPrefix, h.Lattice, h.ID), h.handleGetInventory},
		{subject.HostStop(h.TopicPrefix, h.Lattice, h.ID), h.handleStopHost},
		{subject.HostLabelPut(h.TopicPrefix, h.Lattice, h.ID), h.handlePutLabel},
		{subject.HostLabelDel(h.TopicPrefix, h.Lattice, h.ID), h.handleDeleteLabel},
		{subject.ComponentScale(h.TopicPrefix, h.Lattice, h.ID), h.handleScaleComponent},
		{subject.ComponentUpdate(h.TopicPrefix, h.Lattice, h.ID), h.handleUpdateComponent},
		{subject.ComponentAuction(h.TopicPrefix, h.Lattice), h.handleComponentAuction},
		{subject.ProviderStart(h.TopicPrefix, h.Lattice, h.ID), h.handleStartProvider},
		{subject.ProviderStop(h.TopicPrefix, h.Lattice, h.ID), h.handleStopProvider},
		{subject.ProviderAuction(h.TopicPrefix, h.Lattice), h.handleProviderAuction},
	}
	for _, reg := range handlers {
		if err := h.Dispatcher.Handle(reg.subj, reg.fn); err != nil {
			return fmt.Errorf("host: subscribe %s: %w", reg.subj, err)
		}
	}

	h.publishEvent(ctx, ctlproto.EventHostStarted, ctlproto.HostInfo{
		HostID: h.ID, FriendlyName: h.FriendlyName, Version: h.Version, Labels: h.Labels.Snapshot(),
	})
	go h.heartbeatLoop(ctx)
	return nil
}

// Stop unsubscribes every handler and publishes host_stopped.
// timeoutMillis, when non-nil, bounds how long draining is allowed to
// take before in-progress instances are forcibly stopped (spec.md §5);
// since instance execution itself is out of scope, this implementation's
// "force stop" is simply proceeding to the stop event without waiting
// further.
func (h *Host) Stop(ctx context.Context, timeoutMillis *int64) {
	if h.stopCh != nil {
		close(h.stopCh)
	}
	h.Dispatcher.Close()
	h.publishEvent(ctx, ctlproto.EventHostStopped, ctlproto.HostInfo{HostID: h.ID})
}

func (h *Host) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.publishEvent(ctx, ctlproto.EventHostHeartbeat, ctlproto.HostHeartbeatData{
				UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
				Labels:        h.Labels.Snapshot(),
				Version:       h.Version,
			})
		case <-h.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Host) publishEvent(ctx context.Context, eventType string, data any) {
	ce, err := ctlproto.NewCloudEvent(h.ID, eventType, data, time.Now())
	if err != nil {
		return
	}
	payload, err := json.Marshal(ce)
	if err != nil {
		return
	}
	_ = h.Bus.Publish(ctx, subject.Event(h.Lattice, eventType), payload, nil)
}

// handleGetHosts always replies (get_hosts carries no constraints to
// filter on, unlike the component/provider auctions).
func (h *Host) handleGetHosts(_ context.Context, _ bus.Message) ([]byte, error) {
	return json.Marshal(ctlproto.HostInfo{
		HostID:        h.ID,
		FriendlyName:  h.FriendlyName,
		Version:       h.Version,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Labels:        h.Labels.Snapshot(),
	})
}

func (h *Host) handleGetInventory(_ context.Context, _ bus.Message) ([]byte, error) {
	snap := ctlproto.InventorySnapshot{
		HostID:     h.ID,
		Labels:     h.Labels.Snapshot(),
		Components: h.Inventory.Components(),
		Providers:  h.Inventory.Providers(),
	}
	return json.Marshal(ctlproto.Ok(snap))
}

func (h *Host) handleStopHost(ctx context.Context, msg bus.Message) ([]byte, error) {
	var req ctlproto.StopHostRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return json.Marshal(ctlproto.Fail[struct{}]("malformed stop_host request: " + err.Error()))
		}
	}
	if req.HostID != "" {
		if _, err := subject.ValidateHostID(req.HostID); err != nil {
			return json.Marshal(ctlproto.Fail[struct{}](err.Error()))
		}
		if req.HostID != h.ID {
			return json.Marshal(ctlproto.Fail[struct{}](fmt.Sprintf("stop_host: host id mismatch: got %q, this host is %q", req.HostID, h.ID)))
		}
	}
	go h.Stop(context.WithoutCancel(ctx), req.TimeoutMillis)
	return json.Marshal(ctlproto.OkVoid())
}

func (h *Host) handlePutLabel(ctx context.Context, msg bus.Message) ([]byte, error) {
	var req ctlproto.PutLabelRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("malformed put_label request: " + err.Error()))
	}
	if req.Key == "" {
		return json.Marshal(ctlproto.Fail[struct{}]("put_label: key must not be empty"))
	}
	h.Labels.Put(req.Key, req.Value)
	h.publishEvent(ctx, ctlproto.EventLabelsChanged, ctlproto.LabelsChangedData{Labels: h.Labels.Snapshot()})
	return json.Marshal(ctlproto.OkVoid())
}

func (h *Host) handleDeleteLabel(ctx context.Context, msg bus.Message) ([]byte, error) {
	var req ctlproto.DeleteLabelRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("malformed delete_label request: " + err.Error()))
	}
	h.Labels.Delete(req.Key)
	h.publishEvent(ctx, ctlproto.EventLabelsChanged, ctlproto.LabelsChangedData{Labels: h.Labels.Snapshot()})
	return json.Marshal(ctlproto.OkVoid())
}

// handleScaleComponent is early-ack: it validates synchronously and
// replies immediately, then hands the actual fetch/start/stop off to the
// Reconciler (spec.md §4.4: "the scale protocol").
func (h *Host) handleScaleComponent(_ context.Context, msg bus.Message) ([]byte, error) {
	var req ctlproto.ScaleComponentRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("malformed scale_component request: " + err.Error()))
	}
	if resp, ok := h.validateScopedRequest(req.HostID, subject.ValidateComponentID, req.ComponentID); !ok {
		return json.Marshal(resp)
	}
	if req.MaxInstances < 0 {
		return json.Marshal(ctlproto.Fail[struct{}]("scale_component: max_instances must be >= 0"))
	}
	if !h.configNamesResolvable(req.ConfigNames) {
		return json.Marshal(ctlproto.Fail[struct{}]("scale_component: one or more config names are not resolvable"))
	}
	if err := h.cacheClaimsIfPresent(req.ClaimsToken); err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("scale_component: claims_token: " + err.Error()))
	}
	h.Reconciler.ScaleComponent(req)
	return json.Marshal(ctlproto.OkVoid())
}

func (h *Host) handleUpdateComponent(_ context.Context, msg bus.Message) ([]byte, error) {
	var req ctlproto.UpdateComponentRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("malformed update_component request: " + err.Error()))
	}
	if resp, ok := h.validateScopedRequest(req.HostID, subject.ValidateComponentID, req.ComponentID); !ok {
		return json.Marshal(resp)
	}
	h.Reconciler.UpdateComponent(req)
	return json.Marshal(ctlproto.OkVoid())
}

func (h *Host) handleStartProvider(_ context.Context, msg bus.Message) ([]byte, error) {
	var req ctlproto.StartProviderRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("malformed start_provider request: " + err.Error()))
	}
	if resp, ok := h.validateScopedRequest(req.HostID, subject.ValidateProviderRef, req.ProviderID); !ok {
		return json.Marshal(resp)
	}
	if req.LinkName != "" {
		linkName, err := subject.ValidateLinkName(req.LinkName)
		if err != nil {
			return json.Marshal(ctlproto.Fail[struct{}]("start_provider: " + err.Error()))
		}
		req.LinkName = linkName
	}
	if !h.configNamesResolvable(req.ConfigNames) {
		return json.Marshal(ctlproto.Fail[struct{}]("start_provider: one or more config names are not resolvable"))
	}
	if err := h.cacheClaimsIfPresent(req.ClaimsToken); err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("start_provider: claims_token: " + err.Error()))
	}
	contractID := h.resolveContractID(req.ProviderID)
	h.Reconciler.StartProvider(req, contractID)
	return json.Marshal(ctlproto.OkVoid())
}

// handleStopProvider is synchronous, not early-ack (spec.md §4.4 lists it
// alongside stop_host, not scale/start/update).
func (h *Host) handleStopProvider(ctx context.Context, msg bus.Message) ([]byte, error) {
	var req ctlproto.StopProviderRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("malformed stop_provider request: " + err.Error()))
	}
	if resp, ok := h.validateScopedRequest(req.HostID, subject.ValidateProviderRef, req.ProviderID); !ok {
		return json.Marshal(resp)
	}
	linkName := req.LinkName
	if linkName == "" {
		linkName = "default"
	} else if trimmed, err := subject.ValidateLinkName(linkName); err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("stop_provider: " + err.Error()))
	} else {
		linkName = trimmed
	}
	if !h.Inventory.RemoveProvider(req.ProviderID, linkName) {
		return json.Marshal(ctlproto.Fail[struct{}](fmt.Sprintf("stop_provider: provider %s not running on link %q", req.ProviderID, linkName)))
	}
	h.publishEvent(ctx, ctlproto.EventProviderStopped, ctlproto.ProviderStoppedData{ProviderID: req.ProviderID, LinkName: linkName})
	return json.Marshal(ctlproto.OkVoid())
}

func (h *Host) handleComponentAuction(_ context.Context, msg bus.Message) ([]byte, error) {
	var req ctlproto.AuctionComponentRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return nil, fmt.Errorf("host: malformed auction_component request: %w", err)
	}
	ack, ok := auction.ComponentDecision(h.ID, h.Labels.Snapshot(), req)
	if !ok {
		return nil, nil // stay silent, per spec.md §4.5
	}
	return json.Marshal(ack)
}

func (h *Host) handleProviderAuction(_ context.Context, msg bus.Message) ([]byte, error) {
	var req ctlproto.AuctionProviderRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return nil, fmt.Errorf("host: malformed auction_provider request: %w", err)
	}
	ack, ok := auction.ProviderDecision(h.ID, h.Labels.Snapshot(), req)
	if !ok {
		return nil, nil
	}
	return json.Marshal(ack)
}

// validateScopedRequest enforces the "host id match" early-ack check
// shared by scale/update/start/stop handlers, and that the target
// identifier passes its kind-specific validator — whitespace-only
// identifiers are rejected with a message naming the identifier kind
// (spec.md §8 boundary behavior), not merely trimmed.
func (h *Host) validateScopedRequest(hostID string, validateTarget func(string) (string, error), targetID string) (ctlproto.CtlResponse[struct{}], bool) {
	if hostID != "" {
		if _, err := subject.ValidateHostID(hostID); err != nil {
			return ctlproto.Fail[struct{}](err.Error()), false
		}
		if hostID != h.ID {
			return ctlproto.Fail[struct{}](fmt.Sprintf("host id mismatch: got %q, this host is %q", hostID, h.ID)), false
		}
	}
	if _, err := validateTarget(targetID); err != nil {
		return ctlproto.Fail[struct{}](err.Error()), false
	}
	return ctlproto.CtlResponse[struct{}]{}, true
}

// configNamesResolvable reports whether every name in names exists in the
// CONFIG bucket. With no MetadataStore wired (e.g. in unit tests that
// exercise only scale semantics), every name is considered resolvable.
func (h *Host) configNamesResolvable(names []string) bool {
	if h.MetadataStore == nil {
		return true
	}
	for _, name := range names {
		if _, ok, err := h.MetadataStore.Get(context.Background(), metadata.BucketConfig, name); err != nil || !ok {
			return false
		}
	}
	return true
}

// cacheClaimsIfPresent decodes and validates token, then stores it in
// ClaimsCache keyed by its subject (internal/claims.Cache.Put) so a later
// get_claims or start_provider contract-id lookup can find it. This is
// the one populating path for the cache in a running lattice — without
// it ClaimsCache stays empty forever, since artifact-embedded claim
// extraction is out of scope (internal/claims/artifact.go). A missing
// token is not an error: most scale/start calls carry none. If
// ClaimsCache is not wired, token is decoded/validated but dropped.
func (h *Host) cacheClaimsIfPresent(token string) error {
	if token == "" {
		return nil
	}
	claim, err := claims.Decode(token)
	if err != nil {
		return err
	}
	result, err := claims.Validate(token, time.Now())
	if err != nil {
		return err
	}
	if !result.SignatureValid {
		return fmt.Errorf("claims: signature invalid")
	}
	if result.Expired {
		return claims.ErrExpiredToken
	}
	if result.NotYetValid {
		return claims.ErrTokenNotYetValid
	}
	if h.ClaimsCache != nil {
		h.ClaimsCache.Put(claim)
	}
	return nil
}

// resolveContractID looks up a provider's contract id from its cached
// claims, if a ClaimsCache is wired; otherwise it is left empty (the
// out-of-scope capability provider would normally announce it itself).
func (h *Host) resolveContractID(providerID string) string {
	if h.ClaimsCache == nil {
		return ""
	}
	c, ok := h.ClaimsCache.Get(providerID)
	if !ok || c.Wascap == nil || c.Wascap.Provider == nil {
		return ""
	}
	return c.Wascap.Provider.Vendor
}
