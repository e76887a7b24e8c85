// Package host supplements the distilled spec's explicit "no WASM
// runtime, no capability-provider business logic" non-goal (spec.md §1)
// with the minimal in-memory model a host needs to make
// scale_component/start_provider/get_host_inventory/events meaningful
// end to end: an inventory of component variants and provider instances,
// a reconciler that turns early-acked commands into convergence events,
// and the host's own label map.
package host

import (
	"sort"
	"strings"
	"sync"

	"github.com/lattice-run/lattice/internal/ctlproto"
)

// Variant is one running component variant: the same ComponentID may run
// multiple variants distinguished by their Annotations (spec.md §3).
type Variant struct {
	ImageRef     string
	Annotations  map[string]string
	MaxInstances int
	ConfigNames  []string
}

// Provider is one running provider instance, keyed by (ProviderID,
// LinkName) since a provider can serve more than one link.
type Provider struct {
	ImageRef   string
	LinkName   string
	ContractID string
}

// Inventory is the mutex-guarded map of component variants and provider
// instances a host currently runs, grounded on
// internal/state/projects.go's ProjectRegistry: a sync.RWMutex-guarded
// map plus small typed accessor methods.
type Inventory struct {
	mu         sync.RWMutex
	components map[string]map[string]*Variant  // componentID -> annotationKey -> Variant
	providers  map[string]map[string]*Provider // providerID -> linkName -> Provider
}

// NewInventory creates an empty Inventory.
func NewInventory() *Inventory {
	return &Inventory{
		components: make(map[string]map[string]*Variant),
		providers:  make(map[string]map[string]*Provider),
	}
}

// annotationKey canonicalizes an annotation map into a stable map key by
// sorting keys and joining "k=v" pairs, so two requests with the same
// annotations in different map-iteration order address the same variant.
func annotationKey(annotations map[string]string) string {
	if len(annotations) == 0 {
		return ""
	}
	keys := make([]string, 0, len(annotations))
	for k := range annotations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+annotations[k])
	}
	return strings.Join(parts, "&")
}

// PutVariant records or replaces a component variant.
func (inv *Inventory) PutVariant(componentID string, v *Variant) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.components[componentID] == nil {
		inv.components[componentID] = make(map[string]*Variant)
	}
	inv.components[componentID][annotationKey(v.Annotations)] = v
}

// RemoveVariant deletes a component variant, returning whether one was
// removed.
func (inv *Inventory) RemoveVariant(componentID string, annotations map[string]string) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	variants := inv.components[componentID]
	if variants == nil {
		return false
	}
	key := annotationKey(annotations)
	if _, ok := variants[key]; !ok {
		return false
	}
	delete(variants, key)
	if len(variants) == 0 {
		delete(inv.components, componentID)
	}
	return true
}

// GetVariant looks up a component variant by its annotation set.
func (inv *Inventory) GetVariant(componentID string, annotations map[string]string) (*Variant, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	variants := inv.components[componentID]
	if variants == nil {
		return nil, false
	}
	v, ok := variants[annotationKey(annotations)]
	return v, ok
}

// PutProvider records or replaces a provider instance.
func (inv *Inventory) PutProvider(providerID string, p *Provider) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.providers[providerID] == nil {
		inv.providers[providerID] = make(map[string]*Provider)
	}
	inv.providers[providerID][p.LinkName] = p
}

// RemoveProvider deletes a provider instance, returning whether one was
// removed.
func (inv *Inventory) RemoveProvider(providerID, linkName string) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	instances := inv.providers[providerID]
	if instances == nil {
		return false
	}
	if _, ok := instances[linkName]; !ok {
		return false
	}
	delete(instances, linkName)
	if len(instances) == 0 {
		delete(inv.providers, providerID)
	}
	return true
}

// Components returns every component variant as the wire description
// used in InventorySnapshot/get_host_inventory.
func (inv *Inventory) Components() []ctlproto.ComponentDescription {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	var out []ctlproto.ComponentDescription
	for componentID, variants := range inv.components {
		for _, v := range variants {
			out = append(out, ctlproto.ComponentDescription{
				ComponentID:  componentID,
				ImageRef:     v.ImageRef,
				Annotations:  v.Annotations,
				MaxInstances: v.MaxInstances,
				ConfigNames:  v.ConfigNames,
			})
		}
	}
	return out
}

// Providers returns every provider instance as the wire description used
// in InventorySnapshot/get_host_inventory.
func (inv *Inventory) Providers() []ctlproto.ProviderDescription {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	var out []ctlproto.ProviderDescription
	for providerID, instances := range inv.providers {
		for _, p := range instances {
			out = append(out, ctlproto.ProviderDescription{
				ProviderID: providerID,
				ImageRef:   p.ImageRef,
				LinkName:   p.LinkName,
				ContractID: p.ContractID,
			})
		}
	}
	return out
}
