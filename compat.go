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
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultLauncher is the multi-runtime launcher looked up first when
// running Windows executables.
const DefaultLauncher = "umu-run"

// LaunchSpec is a resolved command line.  Args does not include Path.
type LaunchSpec struct {
	Layer string
	Path  string
	Args  []string
	Env   []string
}

// Probe looks for one kind of compatibility layer.  It returns false if the
// layer is not available.
type Probe interface {
	Name() string
	Probe(r *CompatResolver, target string, cfg *InstanceConfig) (*LaunchSpec, bool)
}

// CompatResolver walks an ordered chain of probes.  Nothing is cached; every
// call to Resolve looks at the filesystem and PATH again.
type CompatResolver struct {
	// LookPath finds executables on the search path.  Defaults to
	// exec.LookPath.
	LookPath func(string) (string, error)

	// HomeDir returns the user's home directory.  Defaults to
	// os.UserHomeDir.
	HomeDir func() (string, error)

	// ProtonDirs overrides the directories searched for Proton builds.
	ProtonDirs []string

	// Launcher is the launcher binary name; DefaultLauncher if empty.
	Launcher string
}

func (r *CompatResolver) lookPath(name string) (string, bool) {
	lp := r.LookPath
	if lp == nil {
		lp = exec.LookPath
	}
	p, e := lp(name)
	if e != nil || p == "" {
		return "", false
	}
	return p, true
}

func (r *CompatResolver) homeDir() string {
	hd := r.HomeDir
	if hd == nil {
		hd = os.UserHomeDir
	}
	if h, e := hd(); e == nil {
		return h
	}
	return ""
}

// protonDirs returns the directories that may hold Proton builds, home
// relative entries first.
func (r *CompatResolver) protonDirs() []string {
	if r.ProtonDirs != nil {
		return r.ProtonDirs
	}
	dirs := []string{}
	if home := r.homeDir(); home != "" {
		dirs = append(dirs,
			filepath.Join(home, ".steam", "steam", "steamapps", "common"),
			filepath.Join(home, ".steam", "root", "compatibilitytools.d"),
			filepath.Join(home, ".local", "share", "Steam", "steamapps", "common"),
			filepath.Join(home, ".local", "share", "Steam", "compatibilitytools.d"))
	}
	return append(dirs,
		"/usr/share/steam/compatibilitytools.d",
		"/home/steam/.steam/steam/steamapps/common")
}

// steamRoot guesses the Steam client directory that owns a Proton build.
func steamRoot(protonDir string) string {
	dir := filepath.Dir(protonDir)
	if filepath.Base(dir) == "common" {
		return filepath.Dir(filepath.Dir(dir))
	}
	return filepath.Dir(dir)
}

type launcherProbe struct{}

func (launcherProbe) Name() string { return "launcher" }

func (launcherProbe) Probe(r *CompatResolver, target string, cfg *InstanceConfig) (*LaunchSpec, bool) {
	name := r.Launcher
	if name == "" {
		name = DefaultLauncher
	}
	p, ok := r.lookPath(name)
	if !ok {
		return nil, false
	}
	ls := &LaunchSpec{Layer: "launcher", Path: p, Args: []string{target}}
	if cfg != nil {
		ls.Env = []string{"WINEPREFIX=" + filepath.Join(cfg.CompatDataDir(), "pfx")}
	}
	return ls, true
}

type protonProbe struct{}

func (protonProbe) Name() string { return "proton" }

func (protonProbe) Probe(r *CompatResolver, target string, cfg *InstanceConfig) (*LaunchSpec, bool) {
	best := ""
	bestName := ""
	for _, dir := range r.protonDirs() {
		matches, e := filepath.Glob(filepath.Join(dir, "Proton*"))
		if e != nil {
			continue
		}
		for _, m := range matches {
			name := filepath.Base(m)
			if fi, e := os.Stat(m); e != nil || !fi.IsDir() {
				continue
			}
			// Lexical order approximates "newest version".
			if name > bestName {
				best = m
				bestName = name
			}
		}
	}
	if best == "" {
		return nil, false
	}
	ls := &LaunchSpec{
		Layer: "proton",
		Path:  filepath.Join(best, "proton"),
		Args:  []string{"run", target},
		Env: []string{
			"STEAM_COMPAT_CLIENT_INSTALL_PATH=" + steamRoot(best),
		},
	}
	if cfg != nil {
		ls.Env = append(ls.Env, "STEAM_COMPAT_DATA_PATH="+cfg.CompatDataDir())
	}
	return ls, true
}

type wineProbe struct{}

func (wineProbe) Name() string { return "wine" }

func (wineProbe) Probe(r *CompatResolver, target string, cfg *InstanceConfig) (*LaunchSpec, bool) {
	for _, name := range []string{"wine64", "wine"} {
		if p, ok := r.lookPath(name); ok {
			return &LaunchSpec{Layer: "wine", Path: p, Args: []string{target}}, true
		}
	}
	return nil, false
}

// Probes returns the probe chain for a compatibility mode, in priority
// order.  Native has no probes.
func Probes(mode CompatMode) []Probe {
	switch mode {
	case CompatAuto:
		return []Probe{launcherProbe{}, protonProbe{}, wineProbe{}}
	case CompatLauncher:
		return []Probe{launcherProbe{}}
	case CompatProton:
		return []Probe{protonProbe{}}
	case CompatWine:
		return []Probe{wineProbe{}}
	}
	return nil
}

// Resolve returns the command line that runs target under mode.  For a
// native mode the target itself is returned.  When no probe succeeds the
// error wraps ErrNoCompatLayer; there is no fallback to running a foreign
// binary natively.
func (r *CompatResolver) Resolve(mode CompatMode, target string, cfg *InstanceConfig) (*LaunchSpec, error) {
	if !mode.Foreign() {
		return &LaunchSpec{Layer: "native", Path: target}, nil
	}
	probes := Probes(mode)
	if probes == nil {
		return nil, newError(KindConfig, "resolve", ErrBadCompatMode)
	}
	for _, p := range probes {
		if ls, ok := p.Probe(r, target, cfg); ok {
			return ls, nil
		}
	}
	names := make([]string, 0, len(probes))
	for _, p := range probes {
		names = append(names, p.Name())
	}
	return nil, newError(KindUnknown, "resolve",
		wrapf(ErrNoCompatLayer, "tried %s", strings.Join(names, ", ")))
}
