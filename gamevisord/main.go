// Copyright 2026 The Gamevisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gdamore/gamevisor"
	"github.com/gdamore/gamevisor/internal/config"
	"github.com/gdamore/gamevisor/internal/logging"
)

var (
	cfgFile  string
	logLevel string
)

// daemon is what every command needs: configuration, a logger that also
// feeds the in-memory log, and the instance.
type daemon struct {
	cfg    *config.Config
	logger zerolog.Logger
	ring   *gamevisor.Log
	inst   *gamevisor.Instance
}

func setup() (*daemon, error) {
	cfg, e := config.Load(cfgFile)
	if e != nil {
		return nil, e
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	d := &daemon{cfg: cfg, ring: gamevisor.NewLog(0)}
	d.logger = logging.New(cfg.Log.Level, cfg.Log.Pretty, d.ring)

	icfg, e := cfg.InstanceConfig()
	if e != nil {
		return nil, e
	}
	steam := &gamevisor.SteamCmd{
		Path:      cfg.SteamCmd.Path,
		ExtraArgs: cfg.SteamCmdArgs(),
	}
	d.inst, e = gamevisor.NewInstance(icfg,
		gamevisor.WithLogger(d.logger),
		gamevisor.WithSteamCmd(steam),
		gamevisor.WithAppInfoPath(cfg.SteamCmd.AppInfoPath))
	if e != nil {
		return nil, e
	}
	return d, nil
}

func (d *daemon) notifier() (gamevisor.Notifier, error) {
	if d.cfg.Webhook.URL == "" {
		d.logger.Debug().Msg("No webhook configured, notifications disabled")
		return gamevisor.NoopNotifier{}, nil
	}
	return gamevisor.NewWebhookNotifier(d.cfg.Webhook.URL, d.inst.Name(),
		d.logger.With().Str("component", "webhook").Logger())
}

func (d *daemon) manager(opts ...gamevisor.ManagerOption) (*gamevisor.Manager, error) {
	n, e := d.notifier()
	if e != nil {
		return nil, e
	}
	opts = append([]gamevisor.ManagerOption{
		gamevisor.WithNotifier(n),
		gamevisor.WithManagerLogger(d.logger),
		gamevisor.WithLog(d.ring),
		gamevisor.WithStopDelay(d.cfg.StopDelay()),
	}, opts...)
	return gamevisor.NewManager(d.inst, opts...), nil
}

// operation runs a single lifecycle operation.
func operation(op gamevisor.Operation) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		d, e := setup()
		if e != nil {
			return e
		}
		m, e := d.manager()
		if e != nil {
			return e
		}
		return m.Do(cmd.Context(), op)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gamevisord",
	Short: "Dedicated game server supervisor",
	Long: `gamevisord installs, updates, starts and stops a dedicated game server
distributed through SteamCMD, and can monitor it: tailing its logs,
sending webhook notifications and running scheduled updates and restarts.`,
	SilenceUsage: true,
}

var installPath string

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the server with SteamCMD",
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, e := setup()
		if e != nil {
			return e
		}
		if installPath != "" {
			return d.inst.InstallTo(cmd.Context(), installPath)
		}
		m, e := d.manager()
		if e != nil {
			return e
		}
		return m.Do(cmd.Context(), gamevisor.OpInstall)
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	RunE:  operation(gamevisor.OpStart),
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the server",
	RunE:  operation(gamevisor.OpStop),
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop the server and start it again",
	RunE:  operation(gamevisor.OpRestart),
}

var updateCheck bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the server if a new build is available",
	Long: `Update the server if a new build is available.  With --check nothing
is updated; the exit status is 1 if an update is available and 0 if not.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, e := setup()
		if e != nil {
			return e
		}
		if updateCheck {
			if d.inst.UpdateAvailable() {
				d.logger.Info().Msg("Update available")
				os.Exit(1)
			}
			d.logger.Info().Msg("Server is up to date")
			return nil
		}
		m, e := d.manager()
		if e != nil {
			return e
		}
		return m.Do(cmd.Context(), gamevisor.OpUpdate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./gamevisor.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	installCmd.Flags().StringVar(&installPath, "path", "", "install into this directory instead of the working directory")
	updateCmd.Flags().BoolVar(&updateCheck, "check", false, "only check whether an update is available")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(monitorCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	e := rootCmd.ExecuteContext(ctx)
	stop()
	if e != nil {
		os.Exit(1)
	}
}
