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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CompatMode says how the server executable is launched.  Anything other
// than CompatNative means the executable is a Windows binary, and also makes
// SteamCMD install the Windows build.
type CompatMode string

const (
	CompatNative   CompatMode = "native"
	CompatAuto     CompatMode = "auto"     // launcher, then proton, then wine
	CompatLauncher CompatMode = "launcher" // multi-runtime launcher only
	CompatProton   CompatMode = "proton"
	CompatWine     CompatMode = "wine"
)

// ParseCompatMode accepts the names above, case-insensitively.  The empty
// string means native.  "windows" is accepted as an alias for auto.
func ParseCompatMode(s string) (CompatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "native":
		return CompatNative, nil
	case "auto", "windows":
		return CompatAuto, nil
	case "launcher", "umu":
		return CompatLauncher, nil
	case "proton":
		return CompatProton, nil
	case "wine", "wine64":
		return CompatWine, nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadCompatMode, s)
}

// Foreign is true if the executable needs a compatibility layer.
func (m CompatMode) Foreign() bool {
	return m != CompatNative && m != ""
}

func (m *CompatMode) UnmarshalText(b []byte) error {
	v, e := ParseCompatMode(string(b))
	if e != nil {
		return e
	}
	*m = v
	return nil
}

// InstanceConfig identifies one server deployment.  It is treated as
// immutable once handed to NewInstance.
type InstanceConfig struct {
	AppID       uint32
	Name        string
	Command     string
	InstallArgs []string
	LaunchArgs  []string
	Compat      CompatMode
	WorkingDir  string
}

func (c *InstanceConfig) PIDFile() string {
	return filepath.Join(c.WorkingDir, "instance.pid")
}

func (c *InstanceConfig) LogDir() string {
	return filepath.Join(c.WorkingDir, "logs")
}

func (c *InstanceConfig) StdoutLog() string {
	return filepath.Join(c.LogDir(), "server.log")
}

func (c *InstanceConfig) StderrLog() string {
	return filepath.Join(c.LogDir(), "server.err")
}

// ManifestFile is the SteamCMD app manifest, which records the installed
// build id.
func (c *InstanceConfig) ManifestFile() string {
	return filepath.Join(c.WorkingDir, "steamapps",
		fmt.Sprintf("appmanifest_%d.acf", c.AppID))
}

// CompatDataDir is the per-instance Proton prefix.
func (c *InstanceConfig) CompatDataDir() string {
	return filepath.Join(c.WorkingDir, "compatdata")
}

// ExecutableName is the base name of Command, used for fuzzy process
// discovery.
func (c *InstanceConfig) ExecutableName() string {
	return filepath.Base(c.Command)
}

// Validate checks the invariants and makes sure the working directory
// exists, creating it if needed.
func (c *InstanceConfig) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return newError(KindConfig, "validate", ErrEmptyCommand)
	}
	if c.WorkingDir == "" {
		return newError(KindConfig, "validate",
			fmt.Errorf("working directory is not set"))
	}
	if _, e := ParseCompatMode(string(c.Compat)); e != nil {
		return newError(KindConfig, "validate", e)
	}
	if e := os.MkdirAll(c.WorkingDir, 0755); e != nil {
		return newError(KindIO, "validate", e)
	}
	return nil
}

// InstanceManifest is the on-disk JSON form of an InstanceConfig.
type InstanceManifest struct {
	AppID       uint32     `json:"appId"`
	Name        string     `json:"name"`
	Command     string     `json:"command"`
	InstallArgs []string   `json:"installArgs"`
	LaunchArgs  []string   `json:"launchArgs"`
	Compat      CompatMode `json:"compat"`
	WorkingDir  string     `json:"workingDir"`
}

func NewConfigFromManifest(m InstanceManifest) InstanceConfig {
	c := InstanceConfig{
		AppID:       m.AppID,
		Name:        m.Name,
		Command:     m.Command,
		InstallArgs: copyArray(m.InstallArgs),
		LaunchArgs:  copyArray(m.LaunchArgs),
		Compat:      m.Compat,
		WorkingDir:  m.WorkingDir,
	}
	if c.Compat == "" {
		c.Compat = CompatNative
	}
	if c.Name == "" {
		c.Name = c.ExecutableName()
	}
	return c
}

// ReadManifest decodes a JSON InstanceManifest.
func ReadManifest(r io.Reader) (InstanceManifest, error) {
	dec := json.NewDecoder(r)
	var m InstanceManifest
	if e := dec.Decode(&m); e != nil {
		return InstanceManifest{}, newError(KindConfig, "manifest", e)
	}
	return m, nil
}

// NewInstanceFromJSON reads an InstanceManifest and returns an Instance
// for it.
func NewInstanceFromJSON(r io.Reader, opts ...InstanceOption) (*Instance, error) {
	m, e := ReadManifest(r)
	if e != nil {
		return nil, e
	}
	return NewInstance(NewConfigFromManifest(m), opts...)
}

func copyArray(src []string) []string {
	rv := make([]string, 0, len(src))
	rv = append(rv, src...)
	return rv
}
