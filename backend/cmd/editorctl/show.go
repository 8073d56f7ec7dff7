package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"autoformat-service/backend/internal/decorate"
	"autoformat-service/backend/internal/persist"
)

func newShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the document stored in a slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			st, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			slot := root.slotName(cfg)
			doc, ok, err := persist.NewAdapter(st).Load(cmd.Context(), slot)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "slot %q is empty\n", slot)
				return nil
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"slot":        slot,
				"document":    persist.ToRaw(doc),
				"decorations": decorate.Default().Decorate(doc),
				"blockStyles": decorate.BlockStyles(doc),
			})
		},
	}
}
