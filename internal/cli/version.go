package cli

import (
	"fmt"

	"github.com/fmueller/voxtype/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "voxtype v%s\n", version.Resolve())
			if info := version.BuildInfo(); info != "" {
				fmt.Fprintln(cmd.OutOrStdout(), info)
			}
			return nil
		},
	}
}
