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

// Package ui implements a terminal interface to a running gamevisord.
package ui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"
	"github.com/rs/zerolog"

	"github.com/gdamore/gamevisor/rest"
)

type App struct {
	app     *views.Application
	view    views.View
	panel   views.Widget
	help    *HelpPanel
	log     *LogPanel
	jobs    *JobsPanel
	main    *MainPanel
	client  *rest.Client
	server  string
	logger  zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	info    *rest.InstanceInfo
	err     error
	logInfo *rest.LogInfo
	logErr  error
	jobList []rest.JobInfo
	jobErr  error
	opMsg   string
	opErr   error
	busy    bool
	started sync.Once

	views.WidgetWatchers
}

func (a *App) show(w views.Widget) {
	if w != a.panel {
		a.panel.SetView(nil)
		a.panel = w
	}
	a.panel.SetView(a.view)
	a.panel.Resize()
	a.app.Refresh()
}

func (a *App) ShowHelp() {
	a.show(a.help)
}

func (a *App) ShowLog() {
	a.show(a.log)
}

func (a *App) ShowJobs() {
	go a.refreshJobs()
	a.show(a.jobs)
}

func (a *App) ShowMain() {
	a.show(a.main)
}

// Do asks the server to run an operation.  Only one runs at a time; the
// outcome is reported on the main panel.
func (a *App) Do(op string) {
	if a.busy {
		return
	}
	a.busy = true
	a.opMsg = fmt.Sprintf("Requested %s", op)
	a.opErr = nil
	a.logger.Info().Str("op", op).Msg("Requesting operation")
	go func() {
		e := a.client.Do(a.ctx, op)
		a.app.PostFunc(func() {
			a.busy = false
			a.opErr = e
			if e != nil {
				a.opMsg = fmt.Sprintf("Failed to %s: %v", op, e)
				a.logger.Warn().Err(e).Str("op", op).Msg("Operation failed")
			} else {
				a.opMsg = fmt.Sprintf("Completed %s", op)
			}
			a.app.Update()
		})
	}()
}

// ClearLog asks the daemon to empty its log.  The log panel picks up the
// change through its watch.
func (a *App) ClearLog() {
	go func() {
		e := a.client.ClearLog(a.ctx)
		a.app.PostFunc(func() {
			a.opErr = e
			if e != nil {
				a.opMsg = fmt.Sprintf("Failed to clear log: %v", e)
				a.logger.Warn().Err(e).Msg("Clear log failed")
			} else {
				a.opMsg = "Cleared log"
			}
			a.app.Update()
		})
	}()
}

func (a *App) Quit() {
	a.cancel()
	a.app.Quit()
}

func (a *App) SetLogger(logger zerolog.Logger) {
	a.logger = logger
}

func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		// Intercept a few control keys up front, for global handling.
		case tcell.KeyCtrlC:
			a.Quit()
			return true
		case tcell.KeyCtrlL:
			a.app.Refresh()
			return true
		}
	}

	if a.panel != nil {
		return a.panel.HandleEvent(ev)
	}
	return false
}

func (a *App) Draw() {
	// Polling starts once the screen is up, so no update is posted
	// before there is anything to post it to.
	a.started.Do(func() {
		go a.refresh()
		go a.refreshLog()
	})
	if a.panel != nil {
		a.panel.Draw()
	}
}

func (a *App) Resize() {
	if a.panel != nil {
		a.panel.Resize()
	}
}

func (a *App) SetView(view views.View) {
	a.view = view
	if a.panel != nil {
		a.panel.SetView(view)
	}
}

func (a *App) Size() (int, int) {
	if a.panel != nil {
		return a.panel.Size()
	}
	return 0, 0
}

func (a *App) GetClient() *rest.Client {
	return a.client
}

func (a *App) GetAppName() string {
	return "Gamevisor v1.0"
}

func (a *App) Server() string {
	return a.server
}

func NewApp(client *rest.Client, server string) *App {
	app := &App{
		app:    &views.Application{},
		client: client,
		server: server,
		logger: zerolog.Nop(),
	}
	app.ctx, app.cancel = context.WithCancel(context.Background())
	app.help = NewHelpPanel(app)
	app.log = NewLogPanel(app)
	app.jobs = NewJobsPanel(app)
	app.main = NewMainPanel(app)
	app.panel = app.main
	return app
}

// refresh keeps the instance state current, long polling the server.
func (a *App) refresh() {
	var last *rest.InstanceInfo
	for {
		info, e := a.client.WatchInstance(a.ctx, last)
		if a.ctx.Err() != nil {
			return
		}
		a.app.PostFunc(func() {
			a.info = info
			a.err = e
			a.app.Update()
		})
		if e != nil {
			a.logger.Debug().Err(e).Msg("Instance poll failed")
			last = nil
			time.Sleep(2 * time.Second)
			continue
		}
		if last == nil || info.Etag() != last.Etag() {
			// Jobs record their runs, which usually go with a state change.
			go a.refreshJobs()
		}
		last = info
	}
}

func (a *App) refreshLog() {
	var last *rest.LogInfo
	for {
		info, e := a.client.WatchLog(a.ctx, last)
		if a.ctx.Err() != nil {
			return
		}
		a.app.PostFunc(func() {
			a.logInfo = info
			a.logErr = e
			a.app.Update()
		})
		if e != nil {
			last = nil
			time.Sleep(2 * time.Second)
			continue
		}
		last = info
	}
}

func (a *App) refreshJobs() {
	jobs, e := a.client.Jobs(a.ctx)
	a.app.PostFunc(func() {
		a.jobList = jobs
		a.jobErr = e
		a.app.Update()
	})
}

// The getters below are called from Draw, on the application goroutine.

func (a *App) GetInstance() (*rest.InstanceInfo, error) {
	return a.info, a.err
}

func (a *App) GetLog() (*rest.LogInfo, error) {
	return a.logInfo, a.logErr
}

func (a *App) GetJobs() ([]rest.JobInfo, error) {
	return a.jobList, a.jobErr
}

// GetOperation reports the last operation requested, whether it is still
// running, and how it failed if it did.
func (a *App) GetOperation() (string, bool, error) {
	return a.opMsg, a.busy, a.opErr
}

func (a *App) Run() error {
	a.logger.Info().Str("server", a.server).Msg("Starting user interface")
	a.app.SetRootWidget(a)
	a.ShowMain()
	go func() {
		// Give us periodic updates, for the elapsed times.
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-a.ctx.Done():
				return
			case <-t.C:
				a.app.Update()
			}
		}
	}()
	e := a.app.Run()
	a.cancel()
	return e
}
