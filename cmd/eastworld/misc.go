package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nstogner/eastworld-studio/pkg/backend"
	"github.com/nstogner/eastworld-studio/pkg/backend/docker"
	"github.com/nstogner/eastworld-studio/pkg/config"
	"github.com/nstogner/eastworld-studio/pkg/server"
	"github.com/nstogner/eastworld-studio/pkg/transcript"
)

func (a *app) llmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llm",
		Short: "Call the service's model helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "embed <text>",
		Short: "Print the embedding of a text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vec, err := a.client.LLM.Embed(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(vec)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rate <question>",
		Short: "Have the model answer a 1 to 5 rating question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := a.client.LLM.Rate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, score.String())
			return nil
		},
	})
	return cmd
}

func (a *app) actionSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "action-schema",
		Short: "Print the JSON schema of agent actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.client.Util.ActionSchemaDocument(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(doc)
		},
	}
}

func (a *app) authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Check credentials",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Report whether the configured token is accepted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.client.Auth.Check(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("token rejected by %s", a.client.BaseURL())
			}
			fmt.Fprintln(a.out, "ok")
			return nil
		},
	})
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	var (
		addr      string
		target    string
		staticDir string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dev server: proxy /api, serve the editor and recorded transcripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := a.cfg.Serve
			flags := cmd.Flags()
			if flags.Changed("addr") {
				sc.Addr = addr
			}
			if flags.Changed("target") {
				sc.Target = target
			}
			if flags.Changed("static") {
				sc.StaticDir = staticDir
			}

			store, err := transcript.Open(a.cfg.TranscriptsDir)
			if err != nil {
				return err
			}
			defer store.Close()

			gin.SetMode(gin.ReleaseMode)
			s, err := server.New(server.Config{
				Target:      sc.Target,
				StaticDir:   sc.StaticDir,
				Transcripts: store,
				Registry:    a.registry,
			})
			if err != nil {
				return err
			}
			return s.Start(cmd.Context(), sc.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address")
	cmd.Flags().StringVar(&target, "target", "", "Content Service URL that /api forwards to")
	cmd.Flags().StringVar(&staticDir, "static", "", "Directory of the built editor")
	return cmd
}

func (a *app) backendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Run a local Content Service in Docker",
	}

	launcher := func() (backend.Launcher, error) {
		return docker.New(a.cfg.BackendOptions())
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Start the service and wait until it answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := launcher()
			if err != nil {
				return err
			}
			defer l.Close()
			url, err := l.Up(cmd.Context())
			if err != nil {
				return err
			}
			slog.Info("Content Service ready", "url", url)
			fmt.Fprintln(a.out, url)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Stop and remove the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := launcher()
			if err != nil {
				return err
			}
			defer l.Close()
			return l.Down(cmd.Context())
		},
	})

	return cmd
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			shown := *a.cfg
			if shown.Token != "" {
				shown.Token = strings.Repeat("*", 8)
			}
			data, err := yaml.Marshal(&shown)
			if err != nil {
				return err
			}
			_, err = a.out.Write(data)
			return err
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the effective configuration to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists, use --force to overwrite", path)
			}
			if err := a.cfg.SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintln(a.out, path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)

	return cmd
}
