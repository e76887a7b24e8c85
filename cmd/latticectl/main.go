// Command latticectl is the admin CLI for a lattice control plane: it
// issues the same control-protocol requests a human operator (or
// wash-style tool) would, against an embedded lattice node booted for the
// duration of the command.
//
// internal/bus has no networked transport in this build (no pub/sub
// client library appears anywhere in the retrieved corpus — see
// DESIGN.md), so latticectl cannot attach to an already-running
// cmd/latticed process; instead every invocation boots its own
// metadata server and host against a fresh in-process bus, issues the
// requested control operation, and tears the node down on exit. This
// mirrors how the teacher's `ftl up`/`ftl dev` commands boot a local
// environment for the duration of a single command.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lattice-run/lattice/internal/bus"
	"github.com/lattice-run/lattice/internal/claims"
	"github.com/lattice-run/lattice/internal/config"
	"github.com/lattice-run/lattice/internal/ctlproto"
	"github.com/lattice-run/lattice/internal/host"
	"github.com/lattice-run/lattice/internal/logging"
	"github.com/lattice-run/lattice/internal/metadata"
	"github.com/lattice-run/lattice/internal/topology"
	"github.com/lattice-run/lattice/pkg/oci"
)

var (
	version = "dev"

	cfgFile string

	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "latticectl",
		Short:   "Control a lattice: scale components, start providers, manage links and config",
		Version: version,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./lattice.yaml)")
	cmd.AddCommand(
		newHostsCmd(),
		newInventoryCmd(),
		newScaleCmd(),
		newStartProviderCmd(),
		newStopProviderCmd(),
		newStopHostCmd(),
		newLabelCmd(),
		newLinkCmd(),
		newConfigCmd(),
		newClaimsCmd(),
		newApplyCmd(),
	)
	return cmd
}

// node is one embedded lattice runtime, booted fresh per command
// invocation.
type node struct {
	bus    bus.Bus
	host   *host.Host
	meta   *metadata.Server
	client *ctlproto.Client
}

func bootNode(ctx context.Context) (*node, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("latticectl: load config: %w", err)
	}
	zlog, err := logging.New("latticectl", cfg.LogLevel, cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("latticectl: build logger: %w", err)
	}
	log := zlog.Sugar()

	b := bus.NewInProc()
	store := metadata.NewMemStore()
	claimsCache := claims.NewCache()

	metaSrv := metadata.NewServer(cfg.Lattice, cfg.TopicPrefix, store, claimsCache, b, log)
	if err := metaSrv.Start(); err != nil {
		return nil, fmt.Errorf("latticectl: start metadata server: %w", err)
	}

	puller := oci.NewWASMPuller()
	h := host.NewHost(cfg.HostID, cfg.FriendlyName, version, cfg.Lattice, cfg.TopicPrefix, cfg.Labels, b, puller, log)
	h.ClaimsCache = claimsCache
	h.MetadataStore = store
	if err := h.Start(ctx); err != nil {
		return nil, fmt.Errorf("latticectl: start host: %w", err)
	}

	client := ctlproto.NewClient(b, cfg.TopicPrefix, cfg.Lattice)
	return &node{bus: b, host: h, meta: metaSrv, client: client}, nil
}

func (n *node) close() {
	n.host.Stop(context.Background(), nil)
	n.meta.Stop()
	_ = n.bus.Close()
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printSuccess(format string, args ...any) {
	fmt.Println(successColor.Sprintf("✓ "+format, args...))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errorColor.Sprintf("✗ "+format, args...))
}

func newHostsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hosts",
		Short: "List hosts responding in this lattice",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := bootNode(cmd.Context())
			if err != nil {
				return err
			}
			defer n.close()
			hosts, err := n.client.GetHosts(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(hosts)
		},
	}
}

func newInventoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inventory <host-id>",
		Short: "Show a host's component/provider inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := bootNode(cmd.Context())
			if err != nil {
				return err
			}
			defer n.close()
			inv, err := n.client.GetHostInventory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(inv)
		},
	}
}

func newScaleCmd() *cobra.Command {
	var hostID, componentID, imageRef, claimsToken string
	var maxInstances int

	cmd := &cobra.Command{
		Use:   "scale",
		Short: "Scale a component on a host",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := bootNode(cmd.Context())
			if err != nil {
				return err
			}
			defer n.close()
			resp, err := n.client.ScaleComponent(cmd.Context(), ctlproto.ScaleComponentRequest{
				HostID: hostID, ComponentID: componentID, ImageRef: imageRef, MaxInstances: maxInstances,
				ClaimsToken: claimsToken,
			})
			if err != nil {
				return err
			}
			if !resp.Success {
				printError("scale rejected: %s", resp.Message)
				return fmt.Errorf("scale rejected")
			}
			printSuccess("scale_component accepted for %s", componentID)
			return nil
		},
	}
	cmd.Flags().StringVar(&hostID, "host-id", "", "target host id")
	cmd.Flags().StringVar(&componentID, "component-id", "", "component id")
	cmd.Flags().StringVar(&imageRef, "image", "", "component image reference")
	cmd.Flags().IntVar(&maxInstances, "max-instances", 1, "maximum concurrent instances (0 removes)")
	cmd.Flags().StringVar(&claimsToken, "claims-token", "", "signed component identity claim (internal/claims)")
	return cmd
}

func newStartProviderCmd() *cobra.Command {
	var hostID, providerID, imageRef, linkName, claimsToken string

	cmd := &cobra.Command{
		Use:   "start-provider",
		Short: "Start a capability provider on a host",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := bootNode(cmd.Context())
			if err != nil {
				return err
			}
			defer n.close()
			resp, err := n.client.StartProvider(cmd.Context(), ctlproto.StartProviderRequest{
				HostID: hostID, ProviderID: providerID, ImageRef: imageRef, LinkName: linkName,
				ClaimsToken: claimsToken,
			})
			if err != nil {
				return err
			}
			if !resp.Success {
				printError("start_provider rejected: %s", resp.Message)
				return fmt.Errorf("start_provider rejected")
			}
			printSuccess("start_provider accepted for %s", providerID)
			return nil
		},
	}
	cmd.Flags().StringVar(&hostID, "host-id", "", "target host id")
	cmd.Flags().StringVar(&providerID, "provider-id", "", "provider id")
	cmd.Flags().StringVar(&imageRef, "image", "", "provider image reference")
	cmd.Flags().StringVar(&linkName, "link-name", "default", "link name")
	cmd.Flags().StringVar(&claimsToken, "claims-token", "", "signed provider identity claim (internal/claims)")
	return cmd
}

func newStopProviderCmd() *cobra.Command {
	var hostID, providerID, linkName string

	cmd := &cobra.Command{
		Use:   "stop-provider",
		Short: "Stop a capability provider on a host",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := bootNode(cmd.Context())
			if err != nil {
				return err
			}
			defer n.close()
			resp, err := n.client.StopProvider(cmd.Context(), ctlproto.StopProviderRequest{
				HostID: hostID, ProviderID: providerID, LinkName: linkName,
			})
			if err != nil {
				return err
			}
			if !resp.Success {
				printError("stop_provider rejected: %s", resp.Message)
				return fmt.Errorf("stop_provider rejected")
			}
			printSuccess("provider %s stopped", providerID)
			return nil
		},
	}
	cmd.Flags().StringVar(&hostID, "host-id", "", "target host id")
	cmd.Flags().StringVar(&providerID, "provider-id", "", "provider id")
	cmd.Flags().StringVar(&linkName, "link-name", "default", "link name")
	return cmd
}

func newStopHostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop-host <host-id>",
		Short: "Stop a host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := bootNode(cmd.Context())
			if err != nil {
				return err
			}
			defer n.close()
			resp, err := n.client.StopHost(cmd.Context(), ctlproto.StopHostRequest{HostID: args[0]})
			if err != nil {
				return err
			}
			if !resp.Success {
				printError("stop_host rejected: %s", resp.Message)
				return fmt.Errorf("stop_host rejected")
			}
			printSuccess("host %s stopped", args[0])
			return nil
		},
	}
}

func newLabelCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "label", Short: "Manage a host's labels"}

	var putHostID, putKey, putValue string
	putCmd := &cobra.Command{
		Use:   "put",
		Short: "Set a label on a host",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := bootNode(cmd.Context())
			if err != nil {
				return err
			}
			defer n.close()
			resp, err := n.client.PutLabel(cmd.Context(), ctlproto.PutLabelRequest{HostID: putHostID, Key: putKey, Value: putValue})
			if err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("put_label rejected: %s", resp.Message)
			}
			printSuccess("label %s=%s set on %s", putKey, putValue, putHostID)
			return nil
		},
	}
	putCmd.Flags().StringVar(&putHostID, "host-id", "", "target host id")
	putCmd.Flags().StringVar(&putKey, "key", "", "label key")
	putCmd.Flags().StringVar(&putValue, "value", "", "label value")

	var delHostID, delKey string
	delCmd := &cobra.Command{
		Use:   "del",
		Short: "Delete a label on a host",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := bootNode(cmd.Context())
			if err != nil {
				return err
			}
			defer n.close()
			resp, err := n.client.DeleteLabel(cmd.Context(), ctlproto.DeleteLabelRequest{HostID: delHostID, Key: delKey})
			if err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("delete_label rejected: %s", resp.Message)
			}
			printSuccess("label %s removed from %s", delKey, delHostID)
			return nil
		},
	}
	delCmd.Flags().StringVar(&delHostID, "host-id", "", "target host id")
	delCmd.Flags().StringVar(&delKey, "key", "", "label key")

	cmd.AddCommand(putCmd, delCmd)
	return cmd
}

func newLinkCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "link", Short: "Manage links between components and providers"}

	var source, target, linkName, ns, pkg string
	putCmd := &cobra.Command{
		Use:   "put",
		Short: "Create or replace a link",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := bootNode(cmd.Context())
			if err != nil {
				return err
			}
			defer n.close()
			resp, err := n.client.PutLink(cmd.Context(), ctlproto.LinkDefinition{
				SourceID: source, Target: target, LinkName: linkName, WitNamespace: ns, WitPackage: pkg,
			})
			if err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("put_link rejected: %s", resp.Message)
			}
			printSuccess("link %s -> %s (%s) created", source, target, linkName)
			return nil
		},
	}
	putCmd.Flags().StringVar(&source, "source", "", "source component id")
	putCmd.Flags().StringVar(&target, "target", "", "target component/provider id")
	putCmd.Flags().StringVar(&linkName, "link-name", "default", "link name")
	putCmd.Flags().StringVar(&ns, "namespace", "", "wit namespace")
	putCmd.Flags().StringVar(&pkg, "package", "", "wit package")

	var delSource, delLinkName, delNS, delPkg string
	delCmd := &cobra.Command{
		Use:   "del",
		Short: "Delete a link",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := bootNode(cmd.Context())
			if err != nil {
				return err
			}
			defer n.close()
			resp, err := n.client.DeleteLink(cmd.Context(), ctlproto.DeleteLinkRequest{
				SourceID: delSource, LinkName: delLinkName, WitNamespace: delNS, WitPackage: delPkg,
			})
			if err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("delete_link rejected: %s", resp.Message)
			}
			printSuccess("link removed")
			return nil
		},
	}
	delCmd.Flags().StringVar(&delSource, "source", "", "source component id")
	delCmd.Flags().StringVar(&delLinkName, "link-name", "default", "link name")
	delCmd.Flags().StringVar(&delNS, "namespace", "", "wit namespace")
	delCmd.Flags().StringVar(&delPkg, "package", "", "wit package")

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "List all links",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := bootNode(cmd.Context())
			if err != nil {
				return err
			}
			defer n.close()
			links, err := n.client.GetLinks(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(links)
		},
	}

	cmd.AddCommand(putCmd, delCmd, getCmd)
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage named configuration"}

	var putName string
	var putValues []string
	putCmd := &cobra.Command{
		Use:   "put",
		Short: "Create or replace a named config",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := bootNode(cmd.Context())
			if err != nil {
				return err
			}
			defer n.close()
			values := make(map[string]string, len(putValues))
			for _, kv := range putValues {
				k, v, ok := splitKV(kv)
				if !ok {
					return fmt.Errorf("invalid --set value %q, want key=value", kv)
				}
				values[k] = v
			}
			resp, err := n.client.PutConfig(cmd.Context(), putName, values)
			if err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("put_config rejected: %s", resp.Message)
			}
			printSuccess("config %s saved", putName)
			return nil
		},
	}
	putCmd.Flags().StringVar(&putName, "name", "", "config name")
	putCmd.Flags().StringSliceVar(&putValues, "set", nil, "key=value pair, repeatable")

	getCmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Show a named config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := bootNode(cmd.Context())
			if err != nil {
				return err
			}
			defer n.close()
			values, err := n.client.GetConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(values)
		},
	}

	delCmd := &cobra.Command{
		Use:   "del <name>",
		Short: "Delete a named config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := bootNode(cmd.Context())
			if err != nil {
				return err
			}
			defer n.close()
			resp, err := n.client.DeleteConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !resp.Success {
				return fmt.Errorf("delete_config rejected: %s", resp.Message)
			}
			printSuccess("config %s deleted", args[0])
			return nil
		},
	}

	cmd.AddCommand(putCmd, getCmd, delCmd)
	return cmd
}

func newClaimsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claims",
		Short: "List cached claims",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := bootNode(cmd.Context())
			if err != nil {
				return err
			}
			defer n.close()
			cached, err := n.client.GetClaims(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cached)
		},
	}
}

func newApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <manifest.yaml>",
		Short: "Converge a lattice to a declarative topology manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := topology.Load(args[0])
			if err != nil {
				return err
			}
			n, err := bootNode(cmd.Context())
			if err != nil {
				return err
			}
			defer n.close()
			ctx := cmd.Context()

			for name, values := range m.Config {
				if resp, err := n.client.PutConfig(ctx, name, values); err != nil {
					return err
				} else if !resp.Success {
					return fmt.Errorf("put_config %s rejected: %s", name, resp.Message)
				}
			}
			for _, req := range m.ScaleComponentRequests() {
				resp, err := n.client.ScaleComponent(ctx, req)
				if err != nil {
					return err
				}
				if !resp.Success {
					printError("scale_component %s rejected: %s", req.ComponentID, resp.Message)
					continue
				}
				printSuccess("scale_component %s -> %d instance(s)", req.ComponentID, req.MaxInstances)
			}
			for _, req := range m.StartProviderRequests() {
				resp, err := n.client.StartProvider(ctx, req)
				if err != nil {
					return err
				}
				if !resp.Success {
					printError("start_provider %s rejected: %s", req.ProviderID, resp.Message)
					continue
				}
				printSuccess("start_provider %s", req.ProviderID)
			}
			for _, link := range m.LinkDefinitions() {
				resp, err := n.client.PutLink(ctx, link)
				if err != nil {
					return err
				}
				if !resp.Success {
					printError("put_link %s->%s rejected: %s", link.SourceID, link.Target, resp.Message)
					continue
				}
				printSuccess("link %s -> %s (%s)", link.SourceID, link.Target, link.LinkName)
			}
			return nil
		},
	}
}

func splitKV(s string) (key, value string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
