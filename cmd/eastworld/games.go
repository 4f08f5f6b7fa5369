package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nstogner/eastworld-studio/pkg/content"
	"github.com/nstogner/eastworld-studio/pkg/editor"
	"github.com/nstogner/eastworld-studio/pkg/gamefile"
)

var errValidation = errors.New("validation failed")

func (a *app) gamesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "games",
		Short: "Manage games",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			games, err := a.client.Games.List(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(games))
			for _, g := range games {
				rows = append(rows, []string{g.UUID, g.Name, truncate(g.Description, 60)})
			}
			return a.printTable([]string{"UUID", "NAME", "DESCRIPTION"}, rows)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <game>",
		Short: "Print a game definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			game, err := a.client.Games.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(game)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			game, err := a.client.Games.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, game.UUID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <game>",
		Short: "Delete a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.client.Games.Delete(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <game> <field=value>...",
		Short: "Edit a game's name or description",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sets, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			game, err := a.client.Games.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			form := editor.NewGameForm(*game)
			for _, kv := range sets {
				if err := form.Set(kv[0], kv[1]); err != nil {
					return err
				}
			}
			ok, err := form.Save(cmd.Context(), a.client.Games, a.client.Sessions)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.out, form.Errors.String())
				return errValidation
			}
			return a.printJSON(form.Game)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export <game> [path]",
		Short: "Write a game to a JSON file",
		Long:  "Write a game to a JSON file. When path is a directory, or omitted, the file is named after the game.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 2 {
				path = args[1]
			}
			written, err := gamefile.Export(cmd.Context(), a.client.Games, args[0], path)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, written)
			return nil
		},
	})

	var syncImport bool
	importCmd := &cobra.Command{
		Use:   "import <pattern>",
		Short: "Import game files matching a glob (\"**\" allowed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sessions gamefile.Syncer
			if syncImport {
				sessions = a.client.Sessions
			}
			results, err := gamefile.ImportGlob(cmd.Context(), a.client.Games, sessions, args[0])
			if err != nil {
				return err
			}
			if len(results) == 0 {
				return fmt.Errorf("no files match %q", args[0])
			}
			rows := make([][]string, 0, len(results))
			failed := 0
			for _, r := range results {
				status := "ok"
				if r.Err != nil {
					status = r.Err.Error()
					failed++
				}
				rows = append(rows, []string{r.Path, r.Game.UUID, status})
			}
			if err := a.printTable([]string{"FILE", "GAME", "STATUS"}, rows); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d imports failed", failed, len(results))
			}
			return nil
		},
	}
	importCmd.Flags().BoolVar(&syncImport, "sync", false, "Sync live sessions after each import")
	cmd.AddCommand(importCmd)

	var syncWatch bool
	watchCmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Import game files from a directory whenever they change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := &gamefile.Watcher{
				Games: a.client.Games,
				Dir:   args[0],
				OnImport: func(r gamefile.Result) {
					if r.Err != nil {
						slog.Error("Import failed", "path", r.Path, "error", r.Err)
						return
					}
					slog.Info("Imported", "path", r.Path, "game", r.Game.UUID, "name", r.Game.Name)
				},
			}
			if syncWatch {
				w.Sessions = a.client.Sessions
			}
			return w.Run(cmd.Context())
		},
	}
	watchCmd.Flags().BoolVar(&syncWatch, "sync", true, "Sync live sessions after each import")
	cmd.AddCommand(watchCmd)

	return cmd
}

func (a *app) agentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Manage a game's agents",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <game>",
		Short: "List agents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agents, err := a.client.Agents.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(agents))
			for _, ag := range agents {
				rows = append(rows, []string{ag.UUID, ag.Name, strconv.FormatBool(ag.IsPlayable), strconv.Itoa(len(ag.Actions))})
			}
			return a.printTable([]string{"UUID", "NAME", "PLAYABLE", "ACTIONS"}, rows)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <game> <agent>",
		Short: "Print an agent definition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := a.client.Agents.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.printJSON(agent)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <game> <name>",
		Short: "Create an agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := a.client.Agents.Create(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, agent.UUID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <game> <agent>",
		Short: "Delete an agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.client.Agents.Delete(cmd.Context(), args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <game> <agent> <field=value>...",
		Short: "Edit an agent's fields",
		Long: "Edit an agent's fields. Playable characters have name, is_playable, description and instructions; " +
			"other agents also have core_facts and example_speech.",
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sets, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}
			agent, err := a.client.Agents.Get(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			form := editor.NewAgentForm(args[0], *agent)
			form.Rules = a.actionRules(cmd)
			for _, kv := range sets {
				if err := form.Set(kv[0], kv[1]); err != nil {
					return fmt.Errorf("%w (fields: %v)", err, form.Fields())
				}
			}
			ok, err := form.Save(ctx, a.client.Agents, a.client.Sessions)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.out, form.Errors.String())
				return errValidation
			}
			return a.printJSON(form.Agent)
		},
	})

	var actionsFile string
	actionsCmd := &cobra.Command{
		Use:   "actions <game> <agent> --file <actions.json>",
		Short: "Replace an agent's actions with a JSON array from a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := os.ReadFile(actionsFile)
			if err != nil {
				return err
			}
			var actions []content.Action
			if err := json.Unmarshal(data, &actions); err != nil {
				return fmt.Errorf("failed to parse %s: %w", actionsFile, err)
			}
			agent, err := a.client.Agents.Get(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			form := editor.NewAgentForm(args[0], *agent)
			form.Rules = a.actionRules(cmd)
			form.SetActions(actions)
			ok, err := form.Save(ctx, a.client.Agents, a.client.Sessions)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.out, form.Errors.String())
				return errValidation
			}
			return a.printJSON(form.Agent.Actions)
		},
	}
	actionsCmd.Flags().StringVarP(&actionsFile, "file", "f", "", "JSON file holding the action list")
	actionsCmd.MarkFlagRequired("file")
	cmd.AddCommand(actionsCmd)

	return cmd
}

// actionRules reads the published Action schema, falling back to the
// built-in rules when the service does not provide a usable one.
func (a *app) actionRules(cmd *cobra.Command) editor.ActionRules {
	doc, err := a.client.Util.ActionSchemaDocument(cmd.Context())
	if err == nil {
		rules, rerr := editor.RulesFromSchema(doc)
		if rerr == nil {
			return rules
		}
		err = rerr
	}
	slog.Debug("Using default action rules", "error", err)
	return editor.DefaultActionRules()
}
