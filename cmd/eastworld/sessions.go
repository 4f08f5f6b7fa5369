package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nstogner/eastworld-studio/pkg/client"
	"github.com/nstogner/eastworld-studio/pkg/content"
)

func (a *app) sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage game sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <game>",
		Short: "Create a session and print its uuid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.client.Sessions.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list <game>",
		Short: "List a game's session uuids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := a.client.Sessions.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(a.out, id)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "active <session>",
		Short: "Report whether a session is live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.client.Sessions.Active(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, strconv.FormatBool(ok))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sync <game>",
		Short: "Push the stored game definition into its live sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.client.Sessions.Sync(cmd.Context(), args[0])
		},
	})

	return cmd
}

func (a *app) queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <session> <agent> <question>...",
		Short: "Ask an agent feeling queries, e.g. \"How happy are you?\"",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, agent, questions := args[0], args[1], args[2:]
			call := client.Go(cmd.Context(), func(ctx context.Context) ([]content.Score, error) {
				return a.client.Sessions.Query(ctx, session, agent, questions)
			})
			scores, err := call.Wait()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(questions))
			for i, q := range questions {
				score := content.ScoreUnknown
				if i < len(scores) {
					score = scores[i]
				}
				rows = append(rows, []string{q, score.String()})
			}
			return a.printTable([]string{"QUESTION", "SCORE"}, rows)
		},
	}
}

func (a *app) guardrailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guardrail <session> <agent> <message>",
		Short: "Rate how appropriate a player message is, 1 to 5",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			call := client.Go(cmd.Context(), func(ctx context.Context) (content.Score, error) {
				return a.client.Sessions.Guardrail(ctx, args[0], args[1], args[2])
			})
			score, err := call.Wait()
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, score.String())
			return nil
		},
	}
}
