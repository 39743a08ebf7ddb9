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

// Package config loads gamevisord configuration from a YAML file and the
// environment.  The environment variable names of the container images
// (STEAMCMD_PATH, AUTO_UPDATE, WEBHOOK_URL and so on) are honored, as are
// GAMEVISOR_ prefixed names for every key.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gdamore/gamevisor"
)

type Config struct {
	Instance InstanceConfig `mapstructure:"instance"`
	SteamCmd SteamCmdConfig `mapstructure:"steamcmd"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Log      LogConfig      `mapstructure:"log"`
	Listen   string         `mapstructure:"listen"`
	Events   []EventConfig  `mapstructure:"events"`
}

type InstanceConfig struct {
	// Manifest, if set, is a JSON instance manifest.  The fields below
	// override it, except Compat and WorkingDir, which only fill in what
	// the manifest leaves empty.
	Manifest    string   `mapstructure:"manifest"`
	AppID       uint32   `mapstructure:"app_id"`
	Name        string   `mapstructure:"name"`
	Command     string   `mapstructure:"command"`
	InstallArgs []string `mapstructure:"install_args"`
	LaunchArgs  []string `mapstructure:"launch_args"`
	Compat      string   `mapstructure:"compat"`
	WorkingDir  string   `mapstructure:"working_dir"`
}

type SteamCmdConfig struct {
	Path        string `mapstructure:"path"`
	AppInfoPath string `mapstructure:"appinfo_path"`
	// ExtraArgs is a whitespace separated list, optionally quoted as a
	// whole.
	ExtraArgs string `mapstructure:"extra_args"`
}

type ScheduleConfig struct {
	AutoUpdate         bool   `mapstructure:"-"`
	AutoUpdateSchedule string `mapstructure:"auto_update_schedule"`
	Restart            bool   `mapstructure:"-"`
	RestartSchedule    string `mapstructure:"restart_schedule"`
}

type WebhookConfig struct {
	URL string `mapstructure:"url"`
	// StopDelay is how many seconds a "stopping" notification precedes
	// a stop.
	StopDelay int `mapstructure:"stop_delay"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"-"`
}

// EventConfig describes a log line that triggers a notification.
type EventConfig struct {
	Name    string `mapstructure:"name"`
	Pattern string `mapstructure:"pattern"`
	Event   string `mapstructure:"event"`
	Message string `mapstructure:"message"`
	Stop    bool   `mapstructure:"stop"`
}

// env lists the variables bound to each key, in order of precedence.
var env = map[string][]string{
	"instance.manifest":             {"GAMEVISOR_MANIFEST"},
	"instance.app_id":               {"GAMEVISOR_APP_ID", "APP_ID"},
	"instance.name":                 {"GAMEVISOR_NAME", "NAME"},
	"instance.command":              {"GAMEVISOR_COMMAND"},
	"instance.compat":               {"GAMEVISOR_COMPAT"},
	"instance.working_dir":          {"GAMEVISOR_WORKING_DIR"},
	"steamcmd.path":                 {"GAMEVISOR_STEAMCMD_PATH", "STEAMCMD_PATH"},
	"steamcmd.appinfo_path":         {"GAMEVISOR_APPINFO_PATH", "STEAM_APPINFO_PATH"},
	"steamcmd.extra_args":           {"GAMEVISOR_STEAMCMD_ARGS", "ADDITIONAL_STEAMCMD_ARGS"},
	"schedule.auto_update":          {"GAMEVISOR_AUTO_UPDATE", "AUTO_UPDATE"},
	"schedule.auto_update_schedule": {"GAMEVISOR_AUTO_UPDATE_SCHEDULE", "AUTO_UPDATE_SCHEDULE"},
	"schedule.restart":              {"GAMEVISOR_SCHEDULED_RESTART", "SCHEDULED_RESTART"},
	"schedule.restart_schedule":     {"GAMEVISOR_RESTART_SCHEDULE", "SCHEDULED_RESTART_SCHEDULE"},
	"webhook.url":                   {"GAMEVISOR_WEBHOOK_URL", "WEBHOOK_URL"},
	"webhook.stop_delay":            {"GAMEVISOR_STOP_DELAY", "STOP_DELAY"},
	"log.level":                     {"GAMEVISOR_LOG_LEVEL", "LOG_LEVEL"},
	"log.pretty":                    {"GAMEVISOR_LOG_PRETTY"},
	"listen":                        {"GAMEVISOR_LISTEN", "LISTEN_ADDR"},
}

const (
	DefaultAutoUpdateSchedule = "0 3 * * *"
	DefaultRestartSchedule    = "0 4 * * *"
	DefaultListen             = "127.0.0.1:8321"
	DefaultWorkingDir         = "/home/steam/server"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("instance.compat", string(gamevisor.CompatNative))
	v.SetDefault("instance.working_dir", DefaultWorkingDir)
	v.SetDefault("steamcmd.path", gamevisor.DefaultSteamCmd)
	v.SetDefault("steamcmd.appinfo_path", gamevisor.DefaultAppInfoPath)
	v.SetDefault("schedule.auto_update_schedule", DefaultAutoUpdateSchedule)
	v.SetDefault("schedule.restart_schedule", DefaultRestartSchedule)
	v.SetDefault("log.level", "info")
	v.SetDefault("listen", DefaultListen)
}

// Truthy accepts the usual ways of saying yes in an environment variable.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	}
	return false
}

// Load reads the configuration.  If path is empty, gamevisor.yaml is
// looked for in the current directory and /etc/gamevisor, and a missing
// file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gamevisor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/gamevisor")
	}
	setDefaults(v)
	for key, names := range env {
		if e := v.BindEnv(append([]string{key}, names...)...); e != nil {
			return nil, fmt.Errorf("bind %s: %w", key, e)
		}
	}

	if e := v.ReadInConfig(); e != nil {
		if _, notFound := e.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return nil, fmt.Errorf("read config: %w", e)
		}
	}

	var cfg Config
	if e := v.Unmarshal(&cfg); e != nil {
		return nil, fmt.Errorf("unmarshal config: %w", e)
	}
	// Booleans come from the environment as free text.
	cfg.Schedule.AutoUpdate = Truthy(v.GetString("schedule.auto_update"))
	cfg.Schedule.Restart = Truthy(v.GetString("schedule.restart"))
	cfg.Log.Pretty = Truthy(v.GetString("log.pretty"))
	return &cfg, nil
}

// SteamCmdArgs splits ExtraArgs into arguments.
func (c *Config) SteamCmdArgs() []string {
	return strings.Fields(strings.Trim(strings.TrimSpace(c.SteamCmd.ExtraArgs), `"`))
}

// StopDelay is the webhook stop delay as a duration.  Without a webhook
// there is nobody to warn, so there is no delay.
func (c *Config) StopDelay() time.Duration {
	if c.Webhook.URL == "" || c.Webhook.StopDelay <= 0 {
		return 0
	}
	return time.Duration(c.Webhook.StopDelay) * time.Second
}

// InstanceConfig builds the instance configuration, merging in the JSON
// manifest if one is configured.
func (c *Config) InstanceConfig() (gamevisor.InstanceConfig, error) {
	ic := c.Instance
	var base gamevisor.InstanceConfig
	if ic.Manifest != "" {
		f, e := os.Open(ic.Manifest)
		if e != nil {
			return base, fmt.Errorf("open manifest: %w", e)
		}
		defer f.Close()
		m, e := gamevisor.ReadManifest(f)
		if e != nil {
			return base, e
		}
		base = gamevisor.NewConfigFromManifest(m)
	}
	if ic.AppID != 0 {
		base.AppID = ic.AppID
	}
	if ic.Name != "" {
		base.Name = ic.Name
	}
	if ic.Command != "" {
		base.Command = ic.Command
	}
	if len(ic.InstallArgs) != 0 {
		base.InstallArgs = ic.InstallArgs
	}
	if len(ic.LaunchArgs) != 0 {
		base.LaunchArgs = ic.LaunchArgs
	}
	if ic.Manifest == "" || base.WorkingDir == "" {
		base.WorkingDir = ic.WorkingDir
	}
	if ic.Manifest == "" || base.Compat == "" {
		mode, e := gamevisor.ParseCompatMode(ic.Compat)
		if e != nil {
			return base, e
		}
		base.Compat = mode
	}
	return base, nil
}

// EventRules converts the configured events.
func (c *Config) EventRules() ([]gamevisor.EventRule, error) {
	rv := make([]gamevisor.EventRule, 0, len(c.Events))
	for i, ev := range c.Events {
		kind, e := gamevisor.ParseEventKind(ev.Event)
		if ev.Event == "" {
			kind, e = gamevisor.EventCustom, nil
		}
		if e != nil {
			return nil, fmt.Errorf("event %d: %w", i, e)
		}
		name := ev.Name
		if name == "" {
			name = fmt.Sprintf("event%d", i+1)
		}
		rv = append(rv, gamevisor.EventRule{
			Name:    name,
			Pattern: ev.Pattern,
			Event:   kind,
			Message: ev.Message,
			Stop:    ev.Stop,
		})
	}
	return rv, nil
}
