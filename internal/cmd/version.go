package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/eyetrace/internal/buildinfo"
)

func newVersionCommand(rc *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := fmt.Fprintln(rc.stdout, versionString()); err != nil {
				return err
			}
			if commit := buildinfo.Commit(); commit != "" {
				_, err := fmt.Fprintf(rc.stdout, "commit %s\n", commit)
				return err
			}
			return nil
		},
	}
}
