package oci

import (
	"context"
	"fmt"
	"strings"
)

// PullRef adapts Pull to the lattice's single-string ImageRef convention
// (spec.md §3: a component/provider variant's "image reference"), of the
// shape "registry/namespace/package:version" (e.g.
// "ghcr.io/wasmcloud/http-client:0.1.0"). It splits ref into the
// registry/package/version triple Pull expects.
func (p *WASMPuller) PullRef(ctx context.Context, ref string) (string, error) {
	registry, pkg, version, err := SplitImageRef(ref)
	if err != nil {
		return "", err
	}
	return p.Pull(ctx, registry, pkg, version)
}

// SplitImageRef splits an image reference "registry/namespace/package:version"
// into its registry host, package path, and version tag.
func SplitImageRef(ref string) (registry, pkg, version string, err error) {
	ref = strings.TrimPrefix(ref, "oci://")
	slash := strings.Index(ref, "/")
	if slash < 0 {
		return "", "", "", fmt.Errorf("oci: invalid image ref %q: missing registry", ref)
	}
	registry = ref[:slash]
	rest := ref[slash+1:]

	colon := strings.LastIndex(rest, ":")
	if colon < 0 {
		return "", "", "", fmt.Errorf("oci: invalid image ref %q: missing version", ref)
	}
	pkg = rest[:colon]
	version = rest[colon+1:]
	if pkg == "" || version == "" {
		return "", "", "", fmt.Errorf("oci: invalid image ref %q: empty package or version", ref)
	}
	return registry, pkg, version, nil
}
