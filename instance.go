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

package gamevisor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Instance is one managed game server.  All lifecycle operations on an
// Instance are serialized.
type Instance struct {
	cfg         InstanceConfig
	sup         *Supervisor
	steam       *SteamCmd
	appInfoPath string
	logger      zerolog.Logger
	mx          sync.Mutex
}

type instanceOptions struct {
	logger       zerolog.Logger
	table        ProcessTable
	resolver     *CompatResolver
	steam        *SteamCmd
	appInfoPath  string
	pollInterval time.Duration
}

// InstanceOption customizes an Instance.
type InstanceOption func(*instanceOptions)

func WithLogger(l zerolog.Logger) InstanceOption {
	return func(o *instanceOptions) { o.logger = l }
}

func WithProcessTable(t ProcessTable) InstanceOption {
	return func(o *instanceOptions) { o.table = t }
}

func WithResolver(r *CompatResolver) InstanceOption {
	return func(o *instanceOptions) { o.resolver = r }
}

func WithSteamCmd(s *SteamCmd) InstanceOption {
	return func(o *instanceOptions) { o.steam = s }
}

// WithAppInfoPath sets the file the latest build id is read from.
func WithAppInfoPath(path string) InstanceOption {
	return func(o *instanceOptions) { o.appInfoPath = path }
}

func WithPollInterval(d time.Duration) InstanceOption {
	return func(o *instanceOptions) { o.pollInterval = d }
}

// NewInstance returns an Instance for cfg.  The configuration is copied.
func NewInstance(cfg InstanceConfig, opts ...InstanceOption) (*Instance, error) {
	o := instanceOptions{
		logger:      zerolog.Nop(),
		appInfoPath: DefaultAppInfoPath,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg.InstallArgs = copyArray(cfg.InstallArgs)
	cfg.LaunchArgs = copyArray(cfg.LaunchArgs)
	if cfg.Compat == "" {
		cfg.Compat = CompatNative
	}
	if cfg.Name == "" {
		cfg.Name = cfg.ExecutableName()
	}
	if e := cfg.Validate(); e != nil {
		return nil, e
	}

	logger := o.logger.With().Str("instance", cfg.Name).Logger()
	i := &Instance{
		cfg:         cfg,
		appInfoPath: o.appInfoPath,
		logger:      logger,
	}
	i.sup = NewSupervisor(&i.cfg, o.resolver, o.table, logger)
	if o.pollInterval > 0 {
		i.sup.SetPollInterval(o.pollInterval)
	}
	if o.steam != nil {
		i.steam = o.steam
	} else {
		i.steam = &SteamCmd{}
	}
	i.steam.Logger = logger
	return i, nil
}

func (i *Instance) lock() {
	i.mx.Lock()
}

func (i *Instance) unlock() {
	i.mx.Unlock()
}

// Config returns a copy of the instance configuration.
func (i *Instance) Config() InstanceConfig {
	c := i.cfg
	c.InstallArgs = copyArray(c.InstallArgs)
	c.LaunchArgs = copyArray(c.LaunchArgs)
	return c
}

func (i *Instance) Name() string {
	return i.cfg.Name
}

// Install installs the server into its working directory.
func (i *Instance) Install(ctx context.Context) error {
	return i.InstallTo(ctx, i.cfg.WorkingDir)
}

// InstallTo installs the server into dir instead of the working directory.
func (i *Instance) InstallTo(ctx context.Context, dir string) error {
	i.lock()
	defer i.unlock()
	return i.steam.Install(ctx, i.cfg.AppID, dir, i.cfg.Compat.Foreign(), i.cfg.InstallArgs)
}

// Update brings the installation up to the latest build.
func (i *Instance) Update(ctx context.Context) error {
	i.lock()
	defer i.unlock()
	return i.update(ctx)
}

func (i *Instance) update(ctx context.Context) error {
	return i.steam.Update(ctx, i.cfg.AppID, i.cfg.WorkingDir, i.cfg.Compat.Foreign(), i.cfg.InstallArgs)
}

// CheckUpdate reads the installed and latest build ids.
func (i *Instance) CheckUpdate() (UpdateInfo, error) {
	return ReadUpdateInfo(i.cfg.ManifestFile(), i.appInfoPath)
}

// UpdateAvailable reports whether a newer build is published.  If either
// build id cannot be read, the answer is false.
func (i *Instance) UpdateAvailable() bool {
	info, e := i.CheckUpdate()
	if e != nil {
		i.logger.Error().Err(e).Msg("Failed to check for updates")
		return false
	}
	if info.UpdateAvailable() {
		i.logger.Info().Str("current", info.CurrentBuildID).
			Str("latest", info.LatestBuildID).Msg("Update available")
		return true
	}
	i.logger.Debug().Str("build", info.CurrentBuildID).Msg("Server is up to date")
	return false
}

// Start launches the server.
func (i *Instance) Start(ctx context.Context) (*Process, error) {
	i.lock()
	defer i.unlock()
	return i.sup.Start()
}

// Stop interrupts the server.
func (i *Instance) Stop(ctx context.Context) error {
	i.lock()
	defer i.unlock()
	return i.sup.Stop(ctx)
}

// Restart stops the server and starts it again.  If the stop fails the
// server is not started.
func (i *Instance) Restart(ctx context.Context) (*Process, error) {
	i.lock()
	defer i.unlock()
	if e := i.sup.Stop(ctx); e != nil {
		return nil, e
	}
	return i.sup.Start()
}

// Running reports whether the recorded server process is alive.
func (i *Instance) Running() bool {
	_, ok := i.sup.Running()
	return ok
}

// Pid returns the recorded pid if that process is alive.
func (i *Instance) Pid() (int, bool) {
	return i.sup.Running()
}

// AutoUpdate stops, updates and restarts the server if an update is
// available, all without letting other operations in between.  It returns
// whether an update was applied.
func (i *Instance) AutoUpdate(ctx context.Context) (bool, error) {
	i.lock()
	defer i.unlock()
	if !i.UpdateAvailable() {
		return false, nil
	}
	i.logger.Warn().Msg("Update available, stopping server")
	if e := i.sup.Stop(ctx); e != nil {
		return false, e
	}
	i.logger.Info().Msg("Updating server")
	if e := i.update(ctx); e != nil {
		return false, e
	}
	i.logger.Info().Msg("Starting server")
	if _, e := i.sup.Start(); e != nil {
		return true, e
	}
	return true, nil
}
