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

// Command gamevisor is a client for gamevisord's control API.
//
// The flags are
//
//	-a <address>	- the server address, default is
//			  http://127.0.0.1:8321
//	-u <user:pass>	- user name & password for basic auth
//
// Subcommands are
//
//	status          - show the instance state
//	start           - start the server
//	stop            - stop the server
//	restart         - restart the server
//	update [--check] - update the server, or only check for an update
//	install         - install or validate the server files
//	log [-f|--clear] - print the daemon log, optionally following it, or empty it
//	jobs            - list the scheduled jobs
//	ui              - the interactive interface (the default)
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gdamore/gamevisor/gamevisor/ui"
	"github.com/gdamore/gamevisor/gamevisor/util"
	"github.com/gdamore/gamevisor/rest"
)

var (
	addr     = "http://127.0.0.1:8321"
	auth     = ""
	debugLog = ""
)

func client() (*rest.Client, error) {
	c := rest.NewClient(nil, addr)
	if auth != "" {
		a := strings.SplitN(auth, ":", 2)
		if len(a) != 2 {
			return nil, errors.New("bad user:pass supplied")
		}
		c.SetAuth(a[0], a[1])
	}
	return c, nil
}

func showStatus(i *rest.InstanceInfo) {
	fmt.Printf("Name:       %s\n", i.Name)
	fmt.Printf("App ID:     %d\n", i.AppID)
	fmt.Printf("Compat:     %s\n", i.Compat)
	fmt.Printf("Directory:  %s\n", i.WorkingDir)
	if i.Running {
		fmt.Printf("State:      %s (pid %d)\n", util.Status(i), i.Pid)
	} else {
		fmt.Printf("State:      %s\n", util.Status(i))
	}
	fmt.Printf("Since:      %v\n", util.Since(i.TimeStamp))
	fmt.Printf("Status:     %s\n", i.Status)
	fmt.Printf("Monitoring: %v\n", i.Monitoring)
	if i.LastError != "" {
		fmt.Printf("Last error: %s\n", i.LastError)
	}
}

var rootCmd = &cobra.Command{
	Use:          "gamevisor",
	Short:        "Control a running gamevisord",
	SilenceUsage: true,
	RunE:         runUI,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the instance state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, e := client()
		if e != nil {
			return e
		}
		i, e := c.GetInstance(cmd.Context())
		if e != nil {
			return e
		}
		showStatus(i)
		return nil
	},
}

// operation posts op and waits for the server to finish it.
func operation(op, short string) *cobra.Command {
	return &cobra.Command{
		Use:   op,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, e := client()
			if e != nil {
				return e
			}
			return c.Do(cmd.Context(), op)
		},
	}
}

var updateCheck bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the server if a new build is available",
	Long: `Update the server if a new build is available.  With --check nothing
is updated; the exit status is 1 if an update is available and 0 if not.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, e := client()
		if e != nil {
			return e
		}
		if !updateCheck {
			return c.Update(cmd.Context())
		}
		u, e := c.CheckUpdate(cmd.Context())
		if e != nil {
			return e
		}
		fmt.Printf("Installed build: %s\n", u.CurrentBuildID)
		fmt.Printf("Latest build:    %s\n", u.LatestBuildID)
		if u.UpdateAvailable {
			fmt.Println("Update available")
			os.Exit(1)
		}
		fmt.Println("Up to date")
		return nil
	},
}

var (
	follow   bool
	clearLog bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Print the daemon log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, e := client()
		if e != nil {
			return e
		}
		ctx := cmd.Context()
		if clearLog {
			return c.ClearLog(ctx)
		}
		info, e := c.GetLog(ctx)
		if e != nil {
			return e
		}
		var last int64
		for {
			for _, r := range info.Records {
				if r.ID > last {
					fmt.Println(util.FormatRecord(r))
					last = r.ID
				}
			}
			if !follow {
				return nil
			}
			if info, e = c.WatchLog(ctx, info); e != nil {
				if ctx.Err() != nil {
					return nil
				}
				return e
			}
		}
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the scheduled jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, e := client()
		if e != nil {
			return e
		}
		jobs, e := c.Jobs(cmd.Context())
		if e != nil {
			return e
		}
		for _, j := range jobs {
			fmt.Println(util.FormatJob(j))
		}
		return nil
	},
}

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Run the interactive interface",
	Args:  cobra.NoArgs,
	RunE:  runUI,
}

func runUI(_ *cobra.Command, _ []string) error {
	c, e := client()
	if e != nil {
		return e
	}
	app := ui.NewApp(c, addr)
	if debugLog != "" {
		f, e := os.OpenFile(debugLog, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if e != nil {
			return e
		}
		defer f.Close()
		app.SetLogger(zerolog.New(f).With().Timestamp().Logger())
	}
	return app.Run()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&addr, "addr", "a", addr, "gamevisord address")
	rootCmd.PersistentFlags().StringVarP(&auth, "user", "u", auth, "user:pass authentication")
	rootCmd.PersistentFlags().StringVar(&debugLog, "debug-log", "", "write interface debug logs to this file")

	updateCmd.Flags().BoolVar(&updateCheck, "check", false, "only check whether an update is available")
	logCmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new records")
	logCmd.Flags().BoolVar(&clearLog, "clear", false, "empty the daemon log instead of printing it")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(operation("start", "Start the server"))
	rootCmd.AddCommand(operation("stop", "Stop the server"))
	rootCmd.AddCommand(operation("restart", "Stop the server and start it again"))
	rootCmd.AddCommand(operation("install", "Install or validate the server files"))
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(uiCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	e := rootCmd.ExecuteContext(ctx)
	stop()
	if e != nil {
		os.Exit(1)
	}
}
