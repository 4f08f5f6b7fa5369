package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nstogner/eastworld-studio/pkg/chat"
	"github.com/nstogner/eastworld-studio/pkg/config"
	"github.com/nstogner/eastworld-studio/pkg/content"
	"github.com/nstogner/eastworld-studio/pkg/transcript"
	"github.com/nstogner/eastworld-studio/pkg/tui"
)

func (a *app) chatCmd() *cobra.Command {
	var record bool
	cmd := &cobra.Command{
		Use:   "chat <game> <agent>",
		Short: "Chat with an agent in a fresh session",
		Long: "Chat with an agent in a fresh session. Pick a player character, talk to the agent, " +
			"inspect the prompt behind each reply (Ctrl+D) and ask feeling queries (Ctrl+Q).",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gameUUID, agentUUID := args[0], args[1]

			// The terminal belongs to the UI, so logs go to a file.
			logFile, err := a.openLogFile()
			if err != nil {
				return err
			}
			defer logFile.Close()

			agent, err := a.client.Agents.Get(ctx, gameUUID, agentUUID)
			if err != nil {
				return err
			}

			cfg := chat.Config{GameUUID: gameUUID, AgentUUID: agentUUID}.FromClient(a.client)
			if record {
				store, err := transcript.Open(a.cfg.TranscriptsDir)
				if err != nil {
					return err
				}
				defer store.Close()
				cfg.Recorder = store
			}

			slog.Info("Starting chat tester", "game", gameUUID, "agent", agentUUID, "record", record)
			return tui.Run(ctx, chat.New(cfg), agent.Name)
		},
	}
	cmd.Flags().BoolVar(&record, "record", true, "Record the transcript under transcripts_dir")
	return cmd
}

func (a *app) openLogFile() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.LogFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(a.cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	level, _ := config.ParseLevel(a.cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
	slog.Info("Logging initialized", "level", level)
	return f, nil
}

func (a *app) transcriptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcripts",
		Short: "Browse recorded chat transcripts",
	}

	var session string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List transcripts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := transcript.Open(a.cfg.TranscriptsDir)
			if err != nil {
				return err
			}
			defer store.Close()
			metas, err := store.List()
			if err != nil {
				return err
			}
			var rows [][]string
			for _, m := range metas {
				if session != "" && m.SessionUUID != session {
					continue
				}
				rows = append(rows, []string{
					m.ID,
					m.GameUUID,
					m.AgentUUID,
					m.PlayerUUID,
					strconv.Itoa(m.Turns),
					m.Modified.Local().Format("2006-01-02 15:04"),
				})
			}
			return a.printTable([]string{"ID", "GAME", "AGENT", "PLAYER", "TURNS", "MODIFIED"}, rows)
		},
	}
	listCmd.Flags().StringVar(&session, "session", "", "Only transcripts of this session")
	cmd.AddCommand(listCmd)

	var debug bool
	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := transcript.Open(a.cfg.TranscriptsDir)
			if err != nil {
				return err
			}
			defer store.Close()
			h, entries, err := store.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "# %s (game %s, agent %s, session %s)\n\n",
				h.ID, h.Chat.GameUUID, h.Chat.AgentUUID, h.Chat.SessionUUID)
			for _, e := range entries {
				speaker := "Agent"
				switch e.Turn.Role {
				case content.RoleUser:
					speaker = "You"
				case chat.RoleAction:
					speaker = "Agent (action)"
				}
				fmt.Fprintf(a.out, "[%d] %s: %s\n", e.Index, speaker, e.Turn.Content)
				if debug {
					for _, m := range e.Debug {
						fmt.Fprintf(a.out, "    %s: %s\n", m.Role, truncate(m.Content, 120))
					}
				}
			}
			return nil
		},
	}
	showCmd.Flags().BoolVar(&debug, "debug", false, "Include the prompt behind each reply")
	cmd.AddCommand(showCmd)

	return cmd
}
