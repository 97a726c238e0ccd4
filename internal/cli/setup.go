package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fmueller/voxtype/internal/download"
	"github.com/fmueller/voxtype/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSetupCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Download and verify speech model assets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			modelDir, err := app.modelStorageDir()
			if err != nil {
				return err
			}

			resolved, err := whisper.ResolveModel(app.settings.Whisper.Model, modelDir)
			if err != nil {
				return err
			}
			if resolved.IsCustomPath {
				return fmt.Errorf("setup expects a named model; got custom path %s", resolved.Path)
			}

			fetcher := app.modelFetcher()
			if !resolved.NeedsDownload {
				verified, err := fetcher.Verify(cmd.Context(), resolved)
				switch {
				case errors.Is(err, download.ErrChecksumMismatch):
					app.log().Warn("model checksum verification failed; downloading fresh copy", zap.String("model", resolved.Name), zap.Error(err))
				case err != nil:
					return err
				default:
					note := ""
					if !verified {
						note = " (no pinned checksum, not verified)"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Model %s already present at %s%s\n", resolved.Name, resolved.Path, note)
					return nil
				}
			}

			if err := fetcher.Fetch(cmd.Context(), resolved); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Model %s installed at %s\n", resolved.Name, resolved.Path)
			return nil
		},
	}
}

func (a *appState) modelFetcher() *download.Fetcher {
	fetcher := download.NewFetcher(a.log())
	if a.progressEnabled() {
		fetcher.Progress = os.Stderr
	}
	return fetcher
}
