package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"autoformat-service/backend/internal/collab"
	"autoformat-service/backend/internal/engine"
	"autoformat-service/backend/internal/persist"
)

func newTypeCmd(root *rootOptions) *cobra.Command {
	var paste, save bool
	cmd := &cobra.Command{
		Use:   "type <text>",
		Short: "Type text into a fresh document and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			table, err := cfg.MarkerTable()
			if err != nil {
				return err
			}

			var adapter *persist.Adapter
			if save {
				st, closeStore, err := openStore(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer closeStore()
				adapter = persist.NewAdapter(st)
			}

			svc := collab.NewInMemoryService(engine.New(table), nil, nil, nil, collab.Options{HistoryCap: cfg.History.Capacity})
			slot := root.slotName(cfg)
			if _, err := svc.Open(cmd.Context(), slot); err != nil {
				return err
			}

			var last collab.Commit
			submit := func(text string) error {
				c, err := svc.Submit(cmd.Context(), slot, collab.Edit{Kind: collab.EditInsertText, Text: text})
				if err != nil {
					return err
				}
				if c.Fired {
					fmt.Fprintf(cmd.ErrOrStderr(), "rev %d: marker %q fired\n", c.Revision, c.Rule.Marker)
				}
				last = c
				return nil
			}
			if paste {
				err = submit(args[0])
			} else {
				for _, r := range args[0] {
					if err = submit(string(r)); err != nil {
						break
					}
				}
			}
			if err != nil {
				return err
			}

			// 只保存最终结果，不保存每一次按键
			if adapter != nil {
				if err := adapter.Save(cmd.Context(), slot, last.Document, persist.RecordingOn); err != nil {
					return fmt.Errorf("save %s: %w", slot, err)
				}
			}
			return printJSON(cmd.OutOrStdout(), last.View())
		},
	}
	cmd.Flags().BoolVar(&paste, "paste", false, "submit the whole text as one edit")
	cmd.Flags().BoolVar(&save, "save", false, "write the result to the configured slot")
	return cmd
}
