package main

import (
	"github.com/spf13/cobra"

	"github.com/Sternrassler/coda-tap/pkg/sink"
)

func newDiscoverCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Print the catalog of streams with their resolved schemas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			catalog := sink.NewRecorder()
			t, err := newTap(commandContext(cmd), cfg, catalog)
			if err != nil {
				return err
			}
			defer t.Close()

			if err := t.orchestrator.Discover(catalog); err != nil {
				return err
			}
			return sink.BuildCatalog(catalog).WriteJSON(cmd.OutOrStdout())
		},
	}
}
