// Copyright 2025.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rivo/tview"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sshdeck/sshdeck/internal/adapters/config"
	"github.com/sshdeck/sshdeck/internal/adapters/data/sshconfig"
	"github.com/sshdeck/sshdeck/internal/adapters/flags"
	"github.com/sshdeck/sshdeck/internal/adapters/logger"
	"github.com/sshdeck/sshdeck/internal/adapters/sshclient"
	"github.com/sshdeck/sshdeck/internal/adapters/trust"
	"github.com/sshdeck/sshdeck/internal/adapters/ui"
	"github.com/sshdeck/sshdeck/internal/core/ports"
	"github.com/sshdeck/sshdeck/internal/core/services"
)

var (
	version   = "develop"
	gitCommit = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sshdeck",
		Short: "Multi-session SSH manager TUI",
	}
	rootCmd.SilenceUsage = true

	flagsProvider := flags.NewCobraFlags(rootCmd)
	rootCmd.Flags().String("connect", "", "Connect directly to the given alias and attach (bypasses the UI)")
	rootCmd.Flags().String("config-dir", "", "Config directory path (default: ~/.config/sshdeck)")
	rootCmd.Flags().String("ssh-config", "", "SSH config file holding the connection records (default: from app config)")
	rootCmd.Flags().String("known-hosts", "", "known_hosts file used for host key trust (default: from app config)")

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(flagsProvider)
	}

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run wires the adapters and services once the flags are parsed.
func run(flagsProvider ports.FlagsProvider) error {
	log, err := logger.New("SSHDECK", flagsProvider.IsDebug())
	if err != nil {
		return err
	}

	//nolint:errcheck // log.Sync may return an error which is safe to ignore here
	defer log.Sync()

	cfgProvider := config.NewOSConfig(flagsProvider.GetFlag("config-dir"))
	manager := config.NewManager(cfgProvider.ConfigPath("sshdeck.yaml"), cfgProvider.HomeDir())
	cfg, err := manager.Load()
	if err != nil {
		log.Warnw("app config load failed, using defaults", "error", err)
	}
	if path := flagsProvider.GetFlag("ssh-config"); path != "" {
		cfg.SSHConfigPath = path
	}
	if path := flagsProvider.GetFlag("known-hosts"); path != "" {
		cfg.KnownHostsPath = path
	}

	repo := sshconfig.NewRepository(log, cfg.SSHConfigPath, cfgProvider.ConfigPath("backups", "ssh_config.bak"))
	trustStore := trust.NewKnownHostsStore(log, cfg.KnownHostsPath)
	dialer := sshclient.NewDialer(log, cfg.ConnectTimeout(), cfg.KeepaliveInterval())
	tempRoot := filepath.Join(os.TempDir(), "sshdeck")

	if alias := flagsProvider.GetFlag("connect"); alias != "" {
		registry := services.NewRegistry(log, repo, trustStore, dialer, ui.NewTerminalPrompter(), tempRoot)
		return connectDirect(log, registry, alias)
	}

	app := tview.NewApplication()
	prompter := ui.NewPrompter(app)
	registry := services.NewRegistry(log, repo, trustStore, dialer, prompter, tempRoot)
	broadcaster := services.NewBroadcaster(log, registry)
	tui := ui.NewTUI(app, log, registry, broadcaster, prompter, cfg, version, gitCommit)

	stop, err := repo.Watch(tui.RefreshFromConfig)
	if err != nil {
		log.Warnw("config file watch unavailable", "error", err)
	} else {
		defer stop()
	}

	return tui.Run()
}

// connectDirect is the no-UI path: connect, attach, and tear down when the
// shell ends or the user detaches.
func connectDirect(log *zap.SugaredLogger, registry *services.Registry, alias string) error {
	log.Infow("direct connection requested", "alias", alias)
	fmt.Printf("Connecting to %s...\n", alias)

	ctx := context.Background()
	if err := registry.Connect(ctx, alias); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", alias, err)
	}
	defer registry.Disconnect(alias)

	terminal, err := registry.Terminal(alias)
	if err != nil {
		return err
	}
	return terminal.Attach(ctx)
}
