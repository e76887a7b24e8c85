// Package topology provides a declarative lattice manifest: a YAML
// document describing the components, providers, and links a lattice
// should converge to, applied by issuing the corresponding
// scale_component/start_provider/put_link control requests. It is
// adapted from the teacher's internal/manifest (FTL application
// manifest) pattern, generalized from a single-app component list to a
// lattice-wide topology of components, providers, and their links.
package topology

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lattice-run/lattice/internal/ctlproto"
)

// Manifest is a declarative lattice topology.
type Manifest struct {
	Lattice    string            `yaml:"lattice"`
	Components []ComponentSpec   `yaml:"components,omitempty"`
	Providers  []ProviderSpec    `yaml:"providers,omitempty"`
	Links      []LinkSpec        `yaml:"links,omitempty"`
	Config     map[string]Values `yaml:"config,omitempty"`
}

// Values is a named config's key/value body.
type Values map[string]string

// ComponentSpec declares one component variant to scale up on a host.
// ClaimsToken, when set, is the component's signed identity claim,
// forwarded to scale_component so the host can populate its claims cache.
type ComponentSpec struct {
	ID           string            `yaml:"id"`
	HostID       string            `yaml:"host_id"`
	Image        string            `yaml:"image"`
	MaxInstances int               `yaml:"max_instances"`
	Annotations  map[string]string `yaml:"annotations,omitempty"`
	ConfigNames  []string          `yaml:"config_names,omitempty"`
	ClaimsToken  string            `yaml:"claims_token,omitempty"`
}

// ProviderSpec declares one provider to start on a host. ClaimsToken is
// the provider's signed identity claim, forwarded the same way.
type ProviderSpec struct {
	ID          string            `yaml:"id"`
	HostID      string            `yaml:"host_id"`
	Image       string            `yaml:"image"`
	LinkName    string            `yaml:"link_name,omitempty"`
	ConfigNames []string          `yaml:"config_names,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty"`
	ClaimsToken string            `yaml:"claims_token,omitempty"`
}

// LinkSpec declares one link between a source component and a target
// component/provider.
type LinkSpec struct {
	Source       string   `yaml:"source"`
	Target       string   `yaml:"target"`
	LinkName     string   `yaml:"link_name,omitempty"`
	WitNamespace string   `yaml:"wit_namespace"`
	WitPackage   string   `yaml:"wit_package"`
	Interfaces   []string `yaml:"interfaces,omitempty"`
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("topology: read %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("topology: parse %s: %w", path, err)
	}
	if m.Lattice == "" {
		return nil, fmt.Errorf("topology: %s: lattice is required", path)
	}
	return &m, nil
}

// ScaleComponentRequests lowers every ComponentSpec into the early-ack
// request its scale_component call needs.
func (m *Manifest) ScaleComponentRequests() []ctlproto.ScaleComponentRequest {
	reqs := make([]ctlproto.ScaleComponentRequest, 0, len(m.Components))
	for _, c := range m.Components {
		reqs = append(reqs, ctlproto.ScaleComponentRequest{
			HostID: c.HostID, ComponentID: c.ID, ImageRef: c.Image,
			MaxInstances: c.MaxInstances, Annotations: c.Annotations, ConfigNames: c.ConfigNames,
			ClaimsToken: c.ClaimsToken,
		})
	}
	return reqs
}

// StartProviderRequests lowers every ProviderSpec into a start_provider
// request.
func (m *Manifest) StartProviderRequests() []ctlproto.StartProviderRequest {
	reqs := make([]ctlproto.StartProviderRequest, 0, len(m.Providers))
	for _, p := range m.Providers {
		linkName := p.LinkName
		if linkName == "" {
			linkName = "default"
		}
		reqs = append(reqs, ctlproto.StartProviderRequest{
			HostID: p.HostID, ProviderID: p.ID, ImageRef: p.Image,
			LinkName: linkName, Annotations: p.Annotations, ConfigNames: p.ConfigNames,
			ClaimsToken: p.ClaimsToken,
		})
	}
	return reqs
}

// LinkDefinitions lowers every LinkSpec into a put_link request.
func (m *Manifest) LinkDefinitions() []ctlproto.LinkDefinition {
	links := make([]ctlproto.LinkDefinition, 0, len(m.Links))
	for _, l := range m.Links {
		linkName := l.LinkName
		if linkName == "" {
			linkName = "default"
		}
		links = append(links, ctlproto.LinkDefinition{
			SourceID: l.Source, Target: l.Target, LinkName: linkName,
			WitNamespace: l.WitNamespace, WitPackage: l.WitPackage, Interfaces: l.Interfaces,
		})
	}
	return links
}
