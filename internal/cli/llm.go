package cli

import (
	"fmt"
	"strings"

	"github.com/fmueller/voxtype/internal/refine"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLLMCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llm",
		Short: "Inspect the transcript refinement model",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Check whether the refinement endpoint is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.refineClient()
			if err != nil {
				return err
			}

			llm := app.settings.LLM
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "enabled:   %t\n", llm.Enabled)
			fmt.Fprintf(out, "provider:  %s\n", llm.Provider)
			fmt.Fprintf(out, "url:       %s\n", llm.URL)
			fmt.Fprintf(out, "model:     %s\n", llm.Model)
			fmt.Fprintf(out, "preset:    %s\n", llm.Preset)

			stopSpinner := startSpinner(app.progressEnabled(), "Checking")
			available := client.Available(cmd.Context())
			stopSpinner()
			if available {
				fmt.Fprintln(out, "available: yes")
			} else {
				fmt.Fprintln(out, "available: no")
			}
			return nil
		},
	}

	presets := &cobra.Command{
		Use:   "presets",
		Short: "Print the built-in refinement prompt templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, preset := range refine.Presets() {
				marker := " "
				if preset == app.settings.LLM.Preset {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, preset)

				template := preset.Template()
				if preset == refine.PresetCustom {
					template = app.settings.LLM.CustomPrompt
				}
				if strings.TrimSpace(template) == "" {
					fmt.Fprintln(out, "    (empty; falls back to default)")
				}
				for _, line := range strings.Split(strings.TrimSpace(template), "\n") {
					if line != "" {
						fmt.Fprintf(out, "    %s\n", line)
					}
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	refineCmd := &cobra.Command{
		Use:   "refine <text>",
		Short: "Refine a text with the configured preset and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.refineClient()
			if err != nil {
				return err
			}

			stopSpinner := startSpinner(app.progressEnabled(), "Refining")
			refined, err := client.Refine(cmd.Context(), strings.Join(args, " "), app.settings.LLM.PromptTemplate())
			stopSpinner()
			if err != nil {
				return fmt.Errorf("refine text: %w", err)
			}
			app.log().Debug("text refined", zap.String("preset", string(app.settings.LLM.Preset)))
			fmt.Fprintln(cmd.OutOrStdout(), refined)
			return nil
		},
	}

	cmd.AddCommand(status, presets, refineCmd)
	return cmd
}
