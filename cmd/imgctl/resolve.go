package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tripsnap/api/pkg/backend"
	"github.com/tripsnap/api/pkg/cache"
	"github.com/tripsnap/api/pkg/config"
	"github.com/tripsnap/api/pkg/resolver"
)

type resolveOptions struct {
	configPath string
	viewer     string
	timeout    time.Duration
	asJSON     bool
}

type resolvedRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func newResolveCmd() *cobra.Command {
	opts := resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve <ref>...",
		Short: "Resolve references through the configured files API",
		Long: `Resolve looks up each reference the same way the API server does and prints
its display URL. Unresolvable references print an empty URL.

Configuration is read from --config-path and TRIPSNAP_* environment variables.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config-path", "", "Path to configuration file")
	cmd.Flags().StringVar(&opts.viewer, "viewer", "", "Identity to sign for when a file has no owner")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Overall deadline")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func runResolve(cmd *cobra.Command, opts resolveOptions, ids []string) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	// The CLI never shares a persistent cache with a running server
	store := cache.NewMemoryCache()
	defer store.Close()

	client := backend.NewClient(backend.Options{
		BaseURL:       cfg.Backend.BaseURL,
		LegacyBaseURL: cfg.Backend.LegacyBaseURL,
		Token:         cfg.Backend.Token,
		Timeout:       cfg.Backend.Timeout,
	})
	r := resolver.New(client, store, resolver.Options{
		LegacyEnabled: cfg.Images.LegacyEnabled,
		SignTTL:       cfg.Images.SignTTL(),
		DebugIDs:      cfg.Images.DebugIDs,
	})

	urls := r.Resolve(ctx, ids, opts.viewer)

	out := cmd.OutOrStdout()
	if opts.asJSON {
		refs := make([]resolvedRef, len(ids))
		for i, id := range ids {
			refs[i] = resolvedRef{ID: id, URL: urls[i]}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(refs)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REFERENCE\tURL")
	for i, id := range ids {
		fmt.Fprintf(w, "%s\t%s\n", id, urls[i])
	}
	return w.Flush()
}
