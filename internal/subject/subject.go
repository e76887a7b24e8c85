package subject

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the control-protocol subject prefix used when the
// caller does not override it with a custom topic_prefix (spec.md §6).
const DefaultTopicPrefix = "wasmbus.ctl.v1"

// EventPrefix is the fixed prefix events are published under; it is not
// affected by topic_prefix overrides.
const EventPrefix = "wasmbus.evt"

// Prefix builds the root of every control-protocol subject for a lattice,
// honoring an optional topic_prefix override.
func Prefix(topicPrefix, lattice string) string {
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}
	return join(topicPrefix, lattice)
}

func join(tokens ...string) string {
	return strings.Join(tokens, ".")
}

// HostsGet is the broadcast subject for get_hosts.
func HostsGet(topicPrefix, lattice string) string {
	return join(Prefix(topicPrefix, lattice), "host", "get")
}

// HostInventoryGet is the unicast subject for get_host_inventory.
func HostInventoryGet(topicPrefix, lattice, hostID string) string {
	return join(Prefix(topicPrefix, lattice), "host", hostID, "inventory", "get")
}

// HostStop is the unicast subject for stop_host.
func HostStop(topicPrefix, lattice, hostID string) string {
	return join(Prefix(topicPrefix, lattice), "host", hostID, "stop")
}

// HostLabelPut is the unicast subject for put_label.
func HostLabelPut(topicPrefix, lattice, hostID string) string {
	return join(Prefix(topicPrefix, lattice), "host", hostID, "label", "put")
}

// HostLabelDel is the unicast subject for delete_label.
func HostLabelDel(topicPrefix, lattice, hostID string) string {
	return join(Prefix(topicPrefix, lattice), "host", hostID, "label", "del")
}

// ComponentScale is the unicast subject for scale_component.
func ComponentScale(topicPrefix, lattice, hostID string) string {
	return join(Prefix(topicPrefix, lattice), "component", hostID, "scale")
}

// ComponentUpdate is the unicast subject for update_component.
func ComponentUpdate(topicPrefix, lattice, hostID string) string {
	return join(Prefix(topicPrefix, lattice), "component", hostID, "update")
}

// ComponentAuction is the broadcast subject for auction_component.
func ComponentAuction(topicPrefix, lattice string) string {
	return join(Prefix(topicPrefix, lattice), "component", "auction")
}

// ProviderStart is the unicast subject for start_provider.
func ProviderStart(topicPrefix, lattice, hostID string) string {
	return join(Prefix(topicPrefix, lattice), "provider", hostID, "start")
}

// ProviderStop is the unicast subject for stop_provider.
func ProviderStop(topicPrefix, lattice, hostID string) string {
	return join(Prefix(topicPrefix, lattice), "provider", hostID, "stop")
}

// ProviderAuction is the broadcast subject for auction_provider.
func ProviderAuction(topicPrefix, lattice string) string {
	return join(Prefix(topicPrefix, lattice), "provider", "auction")
}

// LinkPut is the unicast-to-metadata subject for put_link.
func LinkPut(topicPrefix, lattice string) string {
	return join(Prefix(topicPrefix, lattice), "link", "put")
}

// LinkDel is the unicast-to-metadata subject for delete_link.
func LinkDel(topicPrefix, lattice string) string {
	return join(Prefix(topicPrefix, lattice), "link", "del")
}

// LinkGet is the unicast-to-metadata subject for get_links.
func LinkGet(topicPrefix, lattice string) string {
	return join(Prefix(topicPrefix, lattice), "link", "get")
}

// ClaimsGet is the unicast-to-metadata subject for get_claims.
func ClaimsGet(topicPrefix, lattice string) string {
	return join(Prefix(topicPrefix, lattice), "claims", "get")
}

// ConfigPut is the unicast-to-metadata subject for put_config.
func ConfigPut(topicPrefix, lattice, name string) string {
	return join(Prefix(topicPrefix, lattice), "config", name, "put")
}

// ConfigGet is the unicast-to-metadata subject for get_config.
func ConfigGet(topicPrefix, lattice, name string) string {
	return join(Prefix(topicPrefix, lattice), "config", name, "get")
}

// ConfigDel is the unicast-to-metadata subject for delete_config.
func ConfigDel(topicPrefix, lattice, name string) string {
	return join(Prefix(topicPrefix, lattice), "config", name, "del")
}

// RegistryPut is the broadcast subject for put_registries.
func RegistryPut(topicPrefix, lattice string) string {
	return join(Prefix(topicPrefix, lattice), "registry", "put")
}

// Event is the broadcast subject an event of the given type is published
// on. Event subjects are never affected by a topic_prefix override.
func Event(lattice, eventType string) string {
	return join(EventPrefix, lattice, eventType)
}

// WitOperation is the parsed shape of "ns:pkg/iface.func" (and the
// multi-package/multi-interface/version variants the grammar allows but the
// core does not need to interpret beyond parsing).
type WitOperation struct {
	Namespace string
	Package   string
	Interface string
	Function  string
}

// ParseWitOperation parses "ns:pkg/iface.func", optionally
// "ns:pkg1:pkg2/iface/subiface.func@version". The core implementation only
// needs to support the single-package, single-interface form; additional
// colon-separated package segments and slash-separated sub-interfaces are
// folded into Package/Interface verbatim so round-tripping is lossless,
// and any "@version" suffix on the function is stripped.
func ParseWitOperation(s string) (WitOperation, error) {
	nsAndRest := strings.SplitN(s, ":", 2)
	if len(nsAndRest) != 2 {
		return WitOperation{}, fmt.Errorf("subject: invalid wit operation %q: missing namespace", s)
	}
	ns := nsAndRest[0]

	pkgAndRest := strings.SplitN(nsAndRest[1], "/", 2)
	if len(pkgAndRest) != 2 {
		return WitOperation{}, fmt.Errorf("subject: invalid wit operation %q: missing interface", s)
	}
	pkg := pkgAndRest[0]

	ifaceAndFunc := strings.SplitN(pkgAndRest[1], ".", 2)
	if len(ifaceAndFunc) != 2 {
		return WitOperation{}, fmt.Errorf("subject: invalid wit operation %q: missing function", s)
	}
	iface := ifaceAndFunc[0]
	fn := ifaceAndFunc[1]
	if at := strings.IndexByte(fn, '@'); at >= 0 {
		fn = fn[:at]
	}
	if ns == "" || pkg == "" || iface == "" || fn == "" {
		return WitOperation{}, fmt.Errorf("subject: invalid wit operation %q: empty component", s)
	}

	return WitOperation{Namespace: ns, Package: pkg, Interface: iface, Function: fn}, nil
}
