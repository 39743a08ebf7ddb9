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
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/gdamore/gamevisor"
	"github.com/gdamore/gamevisor/rest"
)

var (
	updateJob  bool
	restartJob bool
	listenAddr string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the server logs and run scheduled jobs",
	Long: `Monitor tails the server logs, sends notifications for configured
events, runs the scheduled update and restart jobs, and serves the control
API until interrupted.  The server itself keeps running when monitor exits.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&updateJob, "update-job", false, "check for updates on the auto-update schedule")
	monitorCmd.Flags().BoolVar(&restartJob, "restart-job", false, "restart the server on the restart schedule")
	monitorCmd.Flags().StringVar(&listenAddr, "listen", "", "control API listen address (empty for the configured one, \"-\" to disable)")
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	d, e := setup()
	if e != nil {
		return e
	}
	metrics := gamevisor.NewPrometheusMetrics("gamevisor")
	m, e := d.manager(gamevisor.WithMetrics(metrics))
	if e != nil {
		return e
	}

	if d.cfg.Webhook.URL != "" {
		rules, e := d.cfg.EventRules()
		if e != nil {
			return e
		}
		for _, er := range rules {
			if e := m.AddEventRule(er); e != nil {
				return e
			}
		}
	}

	sched := d.cfg.Schedule
	if updateJob || sched.AutoUpdate {
		// A bad schedule is logged by the scheduler; monitoring goes on.
		m.EnableAutoUpdate(sched.AutoUpdateSchedule)
	} else {
		d.logger.Debug().Msg("Auto-update job not enabled")
	}
	if restartJob || sched.Restart {
		m.EnableScheduledRestart(sched.RestartSchedule)
	} else {
		d.logger.Debug().Msg("Scheduled restart job not enabled")
	}

	if e := m.StartMonitoring(ctx); e != nil {
		return e
	}

	addr := listenAddr
	if addr == "" {
		addr = d.cfg.Listen
	}
	var srv *http.Server
	if addr != "-" {
		srv = &http.Server{Addr: addr, Handler: rest.NewHandler(m)}
		go func() {
			d.logger.Info().Str("addr", addr).Msg("Serving control API")
			if e := srv.ListenAndServe(); e != nil && !errors.Is(e, http.ErrServerClosed) {
				d.logger.Error().Err(e).Msg("Control API failed")
			}
		}()
	}

	<-ctx.Done()
	d.logger.Info().Msg("Shutting down")
	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		srv.Shutdown(sctx)
		cancel()
	}
	return m.Shutdown()
}
