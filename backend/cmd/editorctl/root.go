package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"autoformat-service/backend/config"
	"autoformat-service/backend/internal/persist"
	"autoformat-service/backend/internal/store"
)

type rootOptions struct {
	configDir string
	slot      string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "editorctl",
		Short: "Drive the auto-format engine from the command line",
		Long: `editorctl feeds text through the marker engine and inspects persisted slots.

Examples:
  editorctl type "# Title"              # keystroke by keystroke
  editorctl type "** red text" --paste  # one edit, like a paste
  editorctl type "*bold" --save         # also write to the configured slot
  editorctl show --slot default`,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}
	root.PersistentFlags().StringVar(&opts.configDir, "config", "", "directory containing autoformatConfig.yaml")
	root.PersistentFlags().StringVar(&opts.slot, "slot", "", "slot name (defaults to storage.slot)")

	root.AddCommand(newTypeCmd(opts), newShowCmd(opts))
	return root
}

func (o *rootOptions) load() (*config.Config, error) {
	if o.configDir != "" {
		return config.Load(o.configDir)
	}
	return config.Load()
}

func (o *rootOptions) slotName(cfg *config.Config) string {
	if o.slot != "" {
		return o.slot
	}
	return cfg.Storage.Slot
}

func openStore(ctx context.Context, cfg *config.Config) (persist.Store, func() error, error) {
	return store.Open(ctx, cfg.Storage.Backend, cfg.StoreOptions())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
