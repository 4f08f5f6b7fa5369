// Command eastworld works with a Content Service from the terminal: it edits
// games, agents and lore, runs the chat tester, and serves the editor.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nstogner/eastworld-studio/pkg/client"
	"github.com/nstogner/eastworld-studio/pkg/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "eastworld"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app is shared by every command. It is filled in before a command runs.
type app struct {
	cfg      *config.Config
	client   *client.Client
	registry *prometheus.Registry
	out      io.Writer
}

func rootCmd() *cobra.Command {
	a := &app{}

	var (
		configFile string
		baseURL    string
		token      string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Author and test Eastworld games from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(config.Options{File: configFile})
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("base-url") {
				if cfg.Serve.Target == cfg.BaseURL {
					cfg.Serve.Target = baseURL
				}
				cfg.BaseURL = baseURL
			}
			if flags.Changed("token") {
				cfg.Token = token
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			level, _ := config.ParseLevel(cfg.LogLevel)
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			a.cfg = cfg
			a.out = cmd.OutOrStdout()
			a.registry = prometheus.NewRegistry()
			cc := cfg.ClientConfig()
			cc.Metrics = client.NewMetrics(a.registry)
			a.client = client.New(cc)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default "+config.DefaultPath()+")")
	pf.StringVar(&baseURL, "base-url", "", "Content Service base URL")
	pf.StringVar(&token, "token", "", "Bearer token for the Content Service")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		a.gamesCmd(),
		a.agentsCmd(),
		a.loreCmd(),
		a.sessionsCmd(),
		a.chatCmd(),
		a.queryCmd(),
		a.guardrailCmd(),
		a.transcriptsCmd(),
		a.llmCmd(),
		a.actionSchemaCmd(),
		a.authCmd(),
		a.serveCmd(),
		a.backendCmd(),
		a.configCmd(),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes tab separated rows aligned in columns.
func (a *app) printTable(header []string, rows [][]string) error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

// parseAssignments splits field=value arguments.
func parseAssignments(args []string) ([][2]string, error) {
	out := make([][2]string, 0, len(args))
	for _, arg := range args {
		field, value, ok := strings.Cut(arg, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		out = append(out, [2]string{field, value})
	}
	return out, nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
