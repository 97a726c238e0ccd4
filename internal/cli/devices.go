package cli

import (
	"fmt"

	"github.com/fmueller/voxtype/internal/capture"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDevicesCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List recording devices and backend diagnostics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			backends := app.captureBackends()
			if len(backends) == 0 {
				return fmt.Errorf("no capture backends for this platform")
			}

			selected, err := capture.SelectBackend(backends, app.settings.Capture.Backend)
			if err != nil {
				app.log().Warn("no usable capture backend", zap.Error(err))
			}

			for _, backend := range backends {
				marker := ""
				if selected != nil && backend.Name() == selected.Name() {
					marker = " (selected)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "== %s ==%s\n", backend.Name(), marker)
				if !backend.Available() {
					fmt.Fprintln(cmd.OutOrStdout(), "not available")
					fmt.Fprintln(cmd.OutOrStdout())
					continue
				}

				out, err := backend.ListDevices(cmd.Context())
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "failed to list devices: %v\n\n", err)
					continue
				}

				if out == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "no output")
					fmt.Fprintln(cmd.OutOrStdout())
					continue
				}

				fmt.Fprintln(cmd.OutOrStdout(), out)
				fmt.Fprintln(cmd.OutOrStdout())
			}

			return nil
		},
	}
}
