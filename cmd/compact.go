package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCompactCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Compact the notes database to reclaim unused space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer a.closeStore()
			path := a.cfg.DatabasePath()

			// Get file size before
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			sizeBefore := info.Size()

			if err := store.Compact(); err != nil {
				return err
			}

			// Get file size after
			info, err = os.Stat(path)
			if err != nil {
				return err
			}
			sizeAfter := info.Size()

			fmt.Fprintf(cmd.OutOrStdout(), "Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
			return nil
		},
	}
}
