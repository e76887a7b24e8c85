package ctlproto

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lattice-run/lattice/internal/bus"
	"github.com/lattice-run/lattice/internal/subject"
)

// Client is the control-client side of the protocol: it builds subjects,
// issues unicast requests and broadcast auctions over internal/bus, and
// unwraps CtlResponse envelopes.
type Client struct {
	Bus            bus.Bus
	TopicPrefix    string
	Lattice        string
	RequestTimeout time.Duration
	AuctionWindow  time.Duration
}

// NewClient builds a Client with spec.md §4.4/§5 default timeouts.
func NewClient(b bus.Bus, topicPrefix, lattice string) *Client {
	return &Client{
		Bus:            b,
		TopicPrefix:    topicPrefix,
		Lattice:        lattice,
		RequestTimeout: bus.DefaultRequestTimeout,
		AuctionWindow:  bus.DefaultAuctionWindow,
	}
}

// request performs a unicast request and decodes a CtlResponse[T]. A
// transport failure (timeout, no responder) is returned as a plain error,
// never confused with a decoded Success=false response (spec.md §4.4).
func request[T any](ctx context.Context, c *Client, subj string, payload any) (CtlResponse[T], error) {
	var zero CtlResponse[T]
	data, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("ctlproto: marshal request: %w", err)
	}
	msg, err := c.Bus.Request(ctx, subj, data, c.RequestTimeout)
	if err != nil {
		return zero, fmt.Errorf("ctlproto: request %s: %w", subj, err)
	}
	var resp CtlResponse[T]
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return zero, fmt.Errorf("ctlproto: decode response from %s: %w", subj, err)
	}
	return resp, nil
}

// GetHosts runs the get_hosts auction (broadcast, auction-timeout window).
func (c *Client) GetHosts(ctx context.Context) ([]HostInfo, error) {
	subj := subject.HostsGet(c.TopicPrefix, c.Lattice)
	collector, err := c.Bus.Auction(ctx, subj, nil, c.AuctionWindow)
	if err != nil {
		return nil, fmt.Errorf("ctlproto: get_hosts: %w", err)
	}
	var hosts []HostInfo
	for msg := range collector.Messages {
		var h HostInfo
		if err := json.Unmarshal(msg.Data, &h); err != nil {
			collector.Stop()
			break
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}

// GetHostInventory issues the unicast get_host_inventory request.
func (c *Client) GetHostInventory(ctx context.Context, hostID string) (*InventorySnapshot, error) {
	subj := subject.HostInventoryGet(c.TopicPrefix, c.Lattice, hostID)
	resp, err := request[InventorySnapshot](ctx, c, subj, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("ctlproto: get_host_inventory: %s", resp.Message)
	}
	return resp.Response, nil
}

// AuctionComponent runs the component placement auction.
func (c *Client) AuctionComponent(ctx context.Context, req AuctionComponentRequest) ([]AuctionComponentAck, error) {
	subj := subject.ComponentAuction(c.TopicPrefix, c.Lattice)
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ctlproto: marshal auction_component: %w", err)
	}
	collector, err := c.Bus.Auction(ctx, subj, data, c.AuctionWindow)
	if err != nil {
		return nil, err
	}
	var acks []AuctionComponentAck
	for msg := range collector.Messages {
		var a AuctionComponentAck
		if err := json.Unmarshal(msg.Data, &a); err != nil {
			collector.Stop()
			break
		}
		acks = append(acks, a)
	}
	return acks, nil
}

// AuctionProvider runs the provider placement auction.
func (c *Client) AuctionProvider(ctx context.Context, req AuctionProviderRequest) ([]AuctionProviderAck, error) {
	subj := subject.ProviderAuction(c.TopicPrefix, c.Lattice)
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ctlproto: marshal auction_provider: %w", err)
	}
	collector, err := c.Bus.Auction(ctx, subj, data, c.AuctionWindow)
	if err != nil {
		return nil, err
	}
	var acks []AuctionProviderAck
	for msg := range collector.Messages {
		var a AuctionProviderAck
		if err := json.Unmarshal(msg.Data, &a); err != nil {
			collector.Stop()
			break
		}
		acks = append(acks, a)
	}
	return acks, nil
}

// ScaleComponent issues the early-ack scale_component request.
func (c *Client) ScaleComponent(ctx context.Context, req ScaleComponentRequest) (CtlResponse[struct{}], error) {
	subj := subject.ComponentScale(c.TopicPrefix, c.Lattice, req.HostID)
	return request[struct{}](ctx, c, subj, req)
}

// UpdateComponent issues the early-ack update_component request.
func (c *Client) UpdateComponent(ctx context.Context, req UpdateComponentRequest) (CtlResponse[struct{}], error) {
	subj := subject.ComponentUpdate(c.TopicPrefix, c.Lattice, req.HostID)
	return request[struct{}](ctx, c, subj, req)
}

// StartProvider issues the early-ack start_provider request.
func (c *Client) StartProvider(ctx context.Context, req StartProviderRequest) (CtlResponse[struct{}], error) {
	subj := subject.ProviderStart(c.TopicPrefix, c.Lattice, req.HostID)
	return request[struct{}](ctx, c, subj, req)
}

// StopProvider issues the stop_provider request.
func (c *Client) StopProvider(ctx context.Context, req StopProviderRequest) (CtlResponse[struct{}], error) {
	subj := subject.ProviderStop(c.TopicPrefix, c.Lattice, req.HostID)
	return request[struct{}](ctx, c, subj, req)
}

// StopHost issues the stop_host request.
func (c *Client) StopHost(ctx context.Context, req StopHostRequest) (CtlResponse[struct{}], error) {
	subj := subject.HostStop(c.TopicPrefix, c.Lattice, req.HostID)
	return request[struct{}](ctx, c, subj, req)
}

// PutLabel issues the put_label request.
func (c *Client) PutLabel(ctx context.Context, req PutLabelRequest) (CtlResponse[struct{}], error) {
	subj := subject.HostLabelPut(c.TopicPrefix, c.Lattice, req.HostID)
	return request[struct{}](ctx, c, subj, req)
}

// DeleteLabel issues the delete_label request.
func (c *Client) DeleteLabel(ctx context.Context, req DeleteLabelRequest) (CtlResponse[struct{}], error) {
	subj := subject.HostLabelDel(c.TopicPrefix, c.Lattice, req.HostID)
	return request[struct{}](ctx, c, subj, req)
}

// PutLink issues the put_link request to the metadata node.
func (c *Client) PutLink(ctx context.Context, link LinkDefinition) (CtlResponse[struct{}], error) {
	subj := subject.LinkPut(c.TopicPrefix, c.Lattice)
	return request[struct{}](ctx, c, subj, link)
}

// DeleteLink issues the delete_link request to the metadata node.
func (c *Client) DeleteLink(ctx context.Context, req DeleteLinkRequest) (CtlResponse[struct{}], error) {
	subj := subject.LinkDel(c.TopicPrefix, c.Lattice)
	return request[struct{}](ctx, c, subj, req)
}

// GetLinks issues the get_links request to the metadata node.
func (c *Client) GetLinks(ctx context.Context) ([]LinkDefinition, error) {
	subj := subject.LinkGet(c.TopicPrefix, c.Lattice)
	resp, err := request[[]LinkDefinition](ctx, c, subj, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("ctlproto: get_links: %s", resp.Message)
	}
	if resp.Response == nil {
		return nil, nil
	}
	return *resp.Response, nil
}

// GetClaims issues the get_claims request to the metadata node.
func (c *Client) GetClaims(ctx context.Context) ([]json.RawMessage, error) {
	subj := subject.ClaimsGet(c.TopicPrefix, c.Lattice)
	resp, err := request[[]json.RawMessage](ctx, c, subj, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("ctlproto: get_claims: %s", resp.Message)
	}
	if resp.Response == nil {
		return nil, nil
	}
	return *resp.Response, nil
}

// PutConfig issues the put_config request.
func (c *Client) PutConfig(ctx context.Context, name string, values map[string]string) (CtlResponse[struct{}], error) {
	subj := subject.ConfigPut(c.TopicPrefix, c.Lattice, name)
	return request[struct{}](ctx, c, subj, PutConfigRequest{Name: name, Values: values})
}

// GetConfig issues the get_config request.
func (c *Client) GetConfig(ctx context.Context, name string) (map[string]string, error) {
	subj := subject.ConfigGet(c.TopicPrefix, c.Lattice, name)
	resp, err := request[map[string]string](ctx, c, subj, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("ctlproto: get_config: %s", resp.Message)
	}
	if resp.Response == nil {
		return nil, nil
	}
	return *resp.Response, nil
}

// DeleteConfig issues the delete_config request.
func (c *Client) DeleteConfig(ctx context.Context, name string) (CtlResponse[struct{}], error) {
	subj := subject.ConfigDel(c.TopicPrefix, c.Lattice, name)
	return request[struct{}](ctx, c, subj, DeleteConfigRequest{Name: name})
}

// PutRegistries broadcasts registry credentials to every host. Per
// spec.md §4.4 this is fire-and-forget: the client does not wait for
// acknowledgement.
func (c *Client) PutRegistries(ctx context.Context, creds PutRegistriesRequest) error {
	subj := subject.RegistryPut(c.TopicPrefix, c.Lattice)
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("ctlproto: marshal put_registries: %w", err)
	}
	return c.Bus.Publish(ctx, subj, data, nil)
}
