package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/bnema/marlin/internal/config"
	"github.com/bnema/marlin/internal/logging"
	"github.com/bnema/marlin/internal/shell"
	"github.com/spf13/cobra"
)

// Build-time variables (set via ldflags).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "marlin",
		Short:         "Marlin browser shell",
		Long:          "Marlin is the state model behind the Marlin browser: tabs, omnibox, AI chat, and the new-tab page.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), stateCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "marlin %s (commit %s, built %s, %s)\n",
				version, commit, buildDate, runtime.Version())
		},
	}
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Dump the persisted shell state as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sh, err := openShell()
			if err != nil {
				return err
			}
			defer sh.Close()

			out := map[string]any{
				"tabs":          sh.Tabs.Tabs(),
				"activeTabId":   sh.Tabs.ActiveTabID(),
				"favorites":     sh.NTP.Favorites(),
				"conversations": sh.Chat.Conversations(),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cfg.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	})
	return cfg
}

func openShell() (*shell.Shell, error) {
	manager, err := config.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to init config: %w", err)
	}
	if err := manager.Load(); err != nil {
		return nil, err
	}
	cfg := manager.Get()

	logger := logging.New(logging.Config{
		Level:      logging.ParseLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		TimeFormat: time.RFC3339,
	})
	ctx := logging.WithContext(context.Background(), logger)

	return shell.New(ctx, shell.Options{Config: cfg})
}
