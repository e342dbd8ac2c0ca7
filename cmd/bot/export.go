package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd(flags *globalFlags) *cobra.Command {
	var (
		userID int64
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the active chat of a user",
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

			export, err := a.chat.Export(cmd.Context(), userID, format)
			if err != nil {
				return err
			}

			switch out {
			case "-":
				_, err = cmd.OutOrStdout().Write(export.Data)
				return err
			case "":
				out = export.FileName
			}
			if err := os.WriteFile(out, export.Data, 0o600); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			logger.Info("history exported", "user_id", userID, "file", out, "bytes", len(export.Data))
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "Telegram user ID.")
	cmd.Flags().StringVar(&format, "format", "txt", "Export format: txt|json.")
	cmd.Flags().StringVar(&out, "out", "", "Output file; - for stdout (default: generated file name).")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
