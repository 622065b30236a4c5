package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tripsnap/api/pkg/imageref"
)

func newClassifyCmd() *cobra.Command {
	var legacyBase string

	cmd := &cobra.Command{
		Use:   "classify <ref>...",
		Short: "Show how each reference would be resolved, without network access",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REFERENCE\tKIND\tLEGACY URL")
			for _, ref := range args {
				legacy := "-"
				if imageref.IsLegacy(ref) && legacyBase != "" {
					legacy = imageref.LegacyURL(legacyBase, ref)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", ref, imageref.Classify(ref), legacy)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&legacyBase, "legacy-base-url", "", "Base URL used to show legacy static-file URLs")
	return cmd
}
