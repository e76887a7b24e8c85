package ctlproto

// HostInfo is one entry in the get_hosts broadcast response.
type HostInfo struct {
	HostID         string            `json:"host_id"`
	FriendlyName   string            `json:"friendly_name,omitempty"`
	Version        string            `json:"version,omitempty"`
	UptimeSeconds  int64             `json:"uptime_seconds"`
	Labels         map[string]string `json:"labels,omitempty"`
	ClusterIssuers []string          `json:"cluster_issuers,omitempty"`
}

// ComponentDescription describes one running component variant, per
// spec.md §3.
type ComponentDescription struct {
	ComponentID  string            `json:"component_id"`
	ImageRef     string            `json:"image_ref"`
	Annotations  map[string]string `json:"annotations,omitempty"`
	MaxInstances int               `json:"max_instances"`
	ConfigNames  []string          `json:"config_names,omitempty"`
}

// ProviderDescription describes one running provider instance.
type ProviderDescription struct {
	ProviderID string `json:"provider_id"`
	ImageRef   string `json:"image_ref"`
	LinkName   string `json:"link_name"`
	ContractID string `json:"contract_id"`
}

// InventorySnapshot is the response to get_host_inventory. Beyond the
// distilled spec's "inventory snapshot", this also carries Providers
// (SPEC_FULL.md §5): a host owns both collections and both must be
// inspectable.
type InventorySnapshot struct {
	HostID     string                 `json:"host_id"`
	Labels     map[string]string      `json:"labels,omitempty"`
	Components []ComponentDescription `json:"components"`
	Providers  []ProviderDescription  `json:"providers"`
}

// LinkDefinition is the tuple described in spec.md §3.
type LinkDefinition struct {
	SourceID     string   `json:"source_id"`
	Target       string   `json:"target"`
	LinkName     string   `json:"link_name"`
	WitNamespace string   `json:"wit_namespace"`
	WitPackage   string   `json:"wit_package"`
	Interfaces   []string `json:"interfaces,omitempty"`
	SourceConfig []string `json:"source_config,omitempty"`
	TargetConfig []string `json:"target_config,omitempty"`
}

// DeleteLinkRequest identifies a link to remove: its full uniqueness key
// per spec.md §3, (source_id, wit_namespace, wit_package, link_name).
type DeleteLinkRequest struct {
	SourceID     string `json:"source_id"`
	LinkName     string `json:"link_name"`
	WitNamespace string `json:"wit_namespace"`
	WitPackage   string `json:"wit_package"`
}

// AuctionComponentRequest is the auction_component request payload.
type AuctionComponentRequest struct {
	ImageRef    string            `json:"image_ref"`
	ComponentID string            `json:"component_id"`
	Constraints map[string]string `json:"constraints,omitempty"`
}

// AuctionComponentAck is one host's willing-to-run acknowledgement.
type AuctionComponentAck struct {
	HostID       string            `json:"host_id"`
	ComponentRef string            `json:"component_ref"`
	ComponentID  string            `json:"component_id"`
	Constraints  map[string]string `json:"constraints,omitempty"`
}

// AuctionProviderRequest is the auction_provider request payload.
type AuctionProviderRequest struct {
	ImageRef    string            `json:"image_ref"`
	ProviderID  string            `json:"provider_id"`
	Constraints map[string]string `json:"constraints,omitempty"`
}

// AuctionProviderAck is one host's willing-to-run acknowledgement.
type AuctionProviderAck struct {
	HostID      string            `json:"host_id"`
	ProviderRef string            `json:"provider_ref"`
	ProviderID  string            `json:"provider_id"`
	LinkName    string            `json:"link_name"`
	Constraints map[string]string `json:"constraints,omitempty"`
}

// ScaleComponentRequest is the early-acked scale_component request.
// ClaimsToken, when present, is the component's signed identity claim
// (internal/claims); the host validates and caches it before converging.
type ScaleComponentRequest struct {
	HostID       string            `json:"host_id"`
	ImageRef     string            `json:"image_ref"`
	ComponentID  string            `json:"component_id"`
	MaxInstances int               `json:"max_instances"`
	Annotations  map[string]string `json:"annotations,omitempty"`
	ConfigNames  []string          `json:"config_names,omitempty"`
	ClaimsToken  string            `json:"claims_token,omitempty"`
}

// StartProviderRequest is the early-acked start_provider request.
// ClaimsToken, when present, is the provider's signed identity claim,
// validated and cached the same way as ScaleComponentRequest's.
type StartProviderRequest struct {
	HostID      string            `json:"host_id"`
	ImageRef    string            `json:"image_ref"`
	ProviderID  string            `json:"provider_id"`
	LinkName    string            `json:"link_name,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	ClaimsToken string            `json:"claims_token,omitempty"`
	ConfigNames []string          `json:"config_names,omitempty"`
}

// StopProviderRequest is the stop_provider request.
type StopProviderRequest struct {
	HostID     string `json:"host_id"`
	ProviderID string `json:"provider_id"`
	LinkName   string `json:"link_name,omitempty"`
}

// StopHostRequest is the stop_host request. TimeoutMillis, when set,
// bounds graceful drain before the host forcibly stops in-progress
// instances (spec.md §5).
type StopHostRequest struct {
	HostID        string `json:"host_id"`
	TimeoutMillis *int64 `json:"timeout_millis,omitempty"`
}

// UpdateComponentRequest is the early-acked update_component request.
type UpdateComponentRequest struct {
	HostID      string            `json:"host_id"`
	ComponentID string            `json:"component_id"`
	NewImageRef string            `json:"new_image_ref"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// PutConfigRequest is the put_config request.
type PutConfigRequest struct {
	Name   string            `json:"name"`
	Values map[string]string `json:"values"`
}

// DeleteConfigRequest is the delete_config request.
type DeleteConfigRequest struct {
	Name string `json:"name"`
}

// PutLabelRequest is the put_label request.
type PutLabelRequest struct {
	HostID string `json:"host_id"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// DeleteLabelRequest is the delete_label request.
type DeleteLabelRequest struct {
	HostID string `json:"host_id"`
	Key    string `json:"key"`
}

// RegistryCredential describes how to authenticate to one OCI registry
// host, per spec.md §3.
type RegistryCredential struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
	Type     string `json:"type"`
}

// PutRegistriesRequest maps a registry host to its credential, broadcast
// to every host (spec.md §4.4).
type PutRegistriesRequest map[string]RegistryCredential
