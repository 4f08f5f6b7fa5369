package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nstogner/eastworld-studio/pkg/lore"
)

func (a *app) loreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lore",
		Short: "View and edit a game's shared lore",
		Long: "View and edit a game's shared lore. Entries are addressed by their index in the full list, " +
			"as printed by \"lore list\". Every edit saves the whole list and syncs live sessions.",
	}

	var (
		agents []string
		anyOf  bool
	)
	listCmd := &cobra.Command{
		Use:   "list <game>",
		Short: "List lore, optionally only what the given agents know",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := a.client.Games.Lore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			entries := lore.Visible(all, agents)
			if anyOf {
				entries = lore.VisibleAny(all, agents)
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					strconv.Itoa(e.Index),
					strconv.Itoa(e.Lore.Memory.Importance),
					strings.Join(e.Lore.KnownBy, ","),
					truncate(e.Lore.Memory.Description, 80),
				})
			}
			return a.printTable([]string{"INDEX", "IMPORTANCE", "KNOWN BY", "DESCRIPTION"}, rows)
		},
	}
	listCmd.Flags().StringSliceVar(&agents, "agent", nil, "Only lore known by this agent (repeatable)")
	listCmd.Flags().BoolVar(&anyOf, "any", false, "Match lore known by any of the agents instead of all")
	cmd.AddCommand(listCmd)

	var knownBy []string
	addCmd := &cobra.Command{
		Use:   "add <game> [description]",
		Short: "Add a lore entry at the top of the list",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ed, err := a.loreEditor(ctx, args[0])
			if err != nil {
				return err
			}
			ed.Add()
			desc := lore.NewDescription
			if len(args) == 2 {
				desc = args[1]
			}
			if err := ed.SetDescription(ctx, 0, desc); err != nil {
				return err
			}
			if len(knownBy) > 0 {
				return ed.SetKnownBy(ctx, 0, knownBy)
			}
			return nil
		},
	}
	addCmd.Flags().StringSliceVar(&knownBy, "known-by", nil, "Agent that knows the entry (repeatable)")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "edit <game> <index> <description>",
		Short: "Replace an entry's description",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}
			ed, err := a.loreEditor(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return ed.SetDescription(cmd.Context(), index, args[2])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "known-by <game> <index> [agent]...",
		Short: "Set which agents know an entry; no agents makes it known by none",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}
			ed, err := a.loreEditor(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return ed.SetKnownBy(cmd.Context(), index, args[2:])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <game> <index>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}
			ed, err := a.loreEditor(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return ed.Delete(cmd.Context(), index)
		},
	})

	return cmd
}

func (a *app) loreEditor(ctx context.Context, gameUUID string) (*lore.Editor, error) {
	existing, err := a.client.Games.Lore(ctx, gameUUID)
	if err != nil {
		return nil, err
	}
	return lore.NewEditor(existing, lore.GameSaver{Client: a.client, GameUUID: gameUUID}), nil
}
