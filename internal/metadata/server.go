package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lattice-run/lattice/internal/bus"
	"github.com/lattice-run/lattice/internal/claims"
	"github.com/lattice-run/lattice/internal/ctlproto"
	"github.com/lattice-run/lattice/internal/subject"
)

// Server answers the metadata-scoped control subjects of spec.md §4.3/§4.4:
// links, named config, registry credentials, and cached claims. Unlike
// internal/host.Host, every operation here is synchronous — none of these
// require an early-ack/converge split, since a Store write is the entire
// unit of work.
type Server struct {
	lattice     string
	topicPrefix string
	store       Store
	claimsCache *claims.Cache
	bus         bus.Bus
	dispatcher  *ctlproto.Dispatcher
	log         *zap.SugaredLogger
	now         func() time.Time
}

// NewServer builds a metadata Server over store. claimsCache may be nil,
// in which case get_claims always returns an empty list.
func NewServer(lattice, topicPrefix string, store Store, claimsCache *claims.Cache, b bus.Bus, log *zap.SugaredLogger) *Server {
	return &Server{
		lattice:     lattice,
		topicPrefix: topicPrefix,
		store:       store,
		claimsCache: claimsCache,
		bus:         b,
		dispatcher:  ctlproto.NewDispatcher(b, log),
		log:         log,
		now:         time.Now,
	}
}

// Start registers every metadata subject handler.
func (s *Server) Start() error {
	handlers := []struct {
		subj string
		fn   ctlproto.HandlerFunc
	}{
		{subject.LinkPut(s.topicPrefix, s.lattice), s.handlePutLink},
		{subject.LinkDel(s.topicPrefix, s.lattice), s.handleDeleteLink},
		{subject.LinkGet(s.topicPrefix, s.lattice), s.handleGetLinks},
		{subject.ClaimsGet(s.topicPrefix, s.lattice), s.handleGetClaims},
		{subject.ConfigPut(s.topicPrefix, s.lattice, "*"), s.handlePutConfig},
		{subject.ConfigGet(s.topicPrefix, s.lattice, "*"), s.handleGetConfig},
		{subject.ConfigDel(s.topicPrefix, s.lattice, "*"), s.handleDeleteConfig},
		{subject.RegistryPut(s.topicPrefix, s.lattice), s.handlePutRegistries},
	}
	for _, reg := range handlers {
		if err := s.dispatcher.Handle(reg.subj, reg.fn); err != nil {
			return fmt.Errorf("metadata: subscribe %s: %w", reg.subj, err)
		}
	}
	return nil
}

// Stop unsubscribes every handler.
func (s *Server) Stop() {
	s.dispatcher.Close()
}

func (s *Server) handlePutLink(ctx context.Context, msg bus.Message) ([]byte, error) {
	var link ctlproto.LinkDefinition
	if err := json.Unmarshal(msg.Data, &link); err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("malformed put_link request: " + err.Error()))
	}
	sourceID, err := subject.ValidateActorRef(link.SourceID)
	if err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("put_link: " + err.Error()))
	}
	target, err := subject.ValidateActorRef(link.Target)
	if err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("put_link: " + err.Error()))
	}
	linkName, err := subject.ValidateLinkName(link.LinkName)
	if err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("put_link: " + err.Error()))
	}
	link.SourceID, link.Target, link.LinkName = sourceID, target, linkName
	key := LinkKey(link.SourceID, link.WitNamespace, link.WitPackage, link.LinkName)
	value, err := json.Marshal(link)
	if err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("put_link: marshal: " + err.Error()))
	}
	if err := s.store.Put(ctx, BucketLinks, key, value); err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("put_link: " + err.Error()))
	}
	s.publishEvent(ctx, ctlproto.EventLinkDefinitionSet, link)
	return json.Marshal(ctlproto.OkVoid())
}

func (s *Server) handleDeleteLink(ctx context.Context, msg bus.Message) ([]byte, error) {
	var req ctlproto.DeleteLinkRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("malformed delete_link request: " + err.Error()))
	}
	sourceID, err := subject.ValidateActorRef(req.SourceID)
	if err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("delete_link: " + err.Error()))
	}
	linkName, err := subject.ValidateLinkName(req.LinkName)
	if err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("delete_link: " + err.Error()))
	}
	req.SourceID, req.LinkName = sourceID, linkName
	key := LinkKey(req.SourceID, req.WitNamespace, req.WitPackage, req.LinkName)
	if err := s.store.Delete(ctx, BucketLinks, key); err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("delete_link: " + err.Error()))
	}
	s.publishEvent(ctx, ctlproto.EventLinkDefinitionDel, req)
	return json.Marshal(ctlproto.OkVoid())
}

func (s *Server) handleGetLinks(ctx context.Context, _ bus.Message) ([]byte, error) {
	all, err := s.store.List(ctx, BucketLinks)
	if err != nil {
		return json.Marshal(ctlproto.Fail[[]ctlproto.LinkDefinition]("get_links: " + err.Error()))
	}
	links := make([]ctlproto.LinkDefinition, 0, len(all))
	for _, raw := range all {
		var link ctlproto.LinkDefinition
		if err := json.Unmarshal(raw, &link); err != nil {
			continue
		}
		links = append(links, link)
	}
	return json.Marshal(ctlproto.Ok(links))
}

func (s *Server) handleGetClaims(_ context.Context, _ bus.Message) ([]byte, error) {
	if s.claimsCache == nil {
		return json.Marshal(ctlproto.Ok([]json.RawMessage{}))
	}
	cached := s.claimsCache.List()
	out := make([]json.RawMessage, 0, len(cached))
	for _, c := range cached {
		raw, err := json.Marshal(c)
		if err != nil {
			continue
		}
		out = append(out, raw)
	}
	return json.Marshal(ctlproto.Ok(out))
}

func (s *Server) handlePutConfig(ctx context.Context, msg bus.Message) ([]byte, error) {
	var req ctlproto.PutConfigRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("malformed put_config request: " + err.Error()))
	}
	name := configNameFromSubject(msg.Subject)
	if req.Name != "" {
		name = req.Name
	}
	name, err := subject.ValidateConfigName(name)
	if err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("put_config: " + err.Error()))
	}
	value, err := json.Marshal(req.Values)
	if err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("put_config: marshal: " + err.Error()))
	}
	if err := s.store.Put(ctx, BucketConfig, name, value); err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("put_config: " + err.Error()))
	}
	return json.Marshal(ctlproto.OkVoid())
}

func (s *Server) handleGetConfig(ctx context.Context, msg bus.Message) ([]byte, error) {
	name, err := subject.ValidateConfigName(configNameFromSubject(msg.Subject))
	if err != nil {
		return json.Marshal(ctlproto.Fail[map[string]string]("get_config: " + err.Error()))
	}
	raw, ok, err := s.store.Get(ctx, BucketConfig, name)
	if err != nil {
		return json.Marshal(ctlproto.Fail[map[string]string]("get_config: " + err.Error()))
	}
	if !ok {
		return json.Marshal(ctlproto.Fail[map[string]string](fmt.Sprintf("get_config: no config named %q", name)))
	}
	var values map[string]string
	if err := json.Unmarshal(raw, &values); err != nil {
		return json.Marshal(ctlproto.Fail[map[string]string]("get_config: decode: " + err.Error()))
	}
	return json.Marshal(ctlproto.Ok(values))
}

func (s *Server) handleDeleteConfig(ctx context.Context, msg bus.Message) ([]byte, error) {
	var req ctlproto.DeleteConfigRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return json.Marshal(ctlproto.Fail[struct{}]("malformed delete_config request: " + err.Error()))
		}
	}
	name := configNameFromSubject(msg.Subject)
	if req.Name != "" {
		name = req.Name
	}
	name, err := subject.ValidateConfigName(name)
	if err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("delete_config: " + err.Error()))
	}
	if err := s.store.Delete(ctx, BucketConfig, name); err != nil {
		return json.Marshal(ctlproto.Fail[struct{}]("delete_config: " + err.Error()))
	}
	return json.Marshal(ctlproto.OkVoid())
}

// handlePutRegistries is fire-and-forget broadcast (spec.md §4.4): there is
// no reply inbox to answer on.
func (s *Server) handlePutRegistries(ctx context.Context, msg bus.Message) ([]byte, error) {
	var creds ctlproto.PutRegistriesRequest
	if err := json.Unmarshal(msg.Data, &creds); err != nil {
		return nil, fmt.Errorf("metadata: malformed put_registries request: %w", err)
	}
	for host, cred := range creds {
		value, err := json.Marshal(cred)
		if err != nil {
			continue
		}
		if err := s.store.Put(ctx, BucketRegistry, host, value); err != nil && s.log != nil {
			s.log.Errorw("metadata: put_registries store write failed", "registry", host, "error", err)
		}
	}
	return nil, nil
}

func (s *Server) publishEvent(ctx context.Context, eventType string, data any) {
	ce, err := ctlproto.NewCloudEvent(s.lattice, eventType, data, s.now())
	if err != nil {
		return
	}
	payload, err := json.Marshal(ce)
	if err != nil {
		return
	}
	_ = s.bus.Publish(ctx, subject.Event(s.lattice, eventType), payload, nil)
}

// configNameFromSubject extracts the name token from a config subject of
// shape "<prefix>.<lattice>.config.<name>.<verb>".
func configNameFromSubject(subj string) string {
	parts := strings.Split(subj, ".")
	for i, p := range parts {
		if p == "config" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}
