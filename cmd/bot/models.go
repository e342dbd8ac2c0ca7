package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newModelsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Fetch the model catalog and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.catalog.Refresh(cmd.Context()); err != nil {
				logger.Warn("refresh failed, showing seed models", "error", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLABEL")
			for _, m := range a.catalog.Models() {
				fmt.Fprintf(w, "%s\t%s\n", m.ID, m.Label)
			}
			return w.Flush()
		},
	}
}
