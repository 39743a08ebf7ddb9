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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultSteamCmd is the SteamCMD executable used when none is configured.
const DefaultSteamCmd = "steamcmd"

// Runner runs a command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// SteamCmd drives the SteamCMD package manager.  It is an opaque external
// tool to us; we only know its directive grammar.
type SteamCmd struct {
	// Path is the SteamCMD executable; DefaultSteamCmd if empty.
	Path string

	// ExtraArgs are appended to every install and update, after the
	// instance's own install arguments.
	ExtraArgs []string

	// Stdout and Stderr receive the output of installs.  They default to
	// the standard streams.
	Stdout io.Writer
	Stderr io.Writer

	Runner Runner
	Logger zerolog.Logger
}

func (s *SteamCmd) path() string {
	if s.Path == "" {
		return DefaultSteamCmd
	}
	return s.Path
}

func (s *SteamCmd) runner() Runner {
	if s.Runner == nil {
		return execRunner{}
	}
	return s.Runner
}

// Args returns the SteamCMD arguments that install or update appID into
// dir.  The platform override has to come before the login directive.
func (s *SteamCmd) Args(appID uint32, dir string, windows bool, extra []string) []string {
	args := []string{}
	if windows {
		args = append(args, "+@sSteamCmdForcePlatformType", "windows")
	}
	args = append(args,
		"+force_install_dir", dir,
		"+login", "anonymous",
		"+app_update", fmt.Sprint(appID), "validate")
	args = append(args, extra...)
	args = append(args, s.ExtraArgs...)
	return append(args, "+quit")
}

func exitStatus(e error) int {
	var ec interface{ ExitCode() int }
	if errors.As(e, &ec) {
		return ec.ExitCode()
	}
	return -1
}

// Install runs an install, streaming SteamCMD output to Stdout/Stderr.
func (s *SteamCmd) Install(ctx context.Context, appID uint32, dir string, windows bool, extra []string) error {
	stdout, stderr := s.Stdout, s.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	args := s.Args(appID, dir, windows, extra)
	s.Logger.Info().Uint32("app_id", appID).Str("dir", dir).Msg("Installing app")
	s.Logger.Debug().Str("steamcmd", s.path()).Strs("args", args).
		Msg("Launching install command")

	if e := s.runner().Run(ctx, s.path(), args, stdout, stderr); e != nil {
		err := newError(KindInstall, "install", e)
		err.ExitStatus = exitStatus(e)
		return err
	}
	return nil
}

// Update runs an update, capturing SteamCMD output into our log.
func (s *SteamCmd) Update(ctx context.Context, appID uint32, dir string, windows bool, extra []string) error {
	args := s.Args(appID, dir, windows, extra)
	s.Logger.Info().Uint32("app_id", appID).Str("dir", dir).Msg("Updating app")
	s.Logger.Debug().Str("steamcmd", s.path()).Strs("args", args).
		Msg("Executing update command")

	var out bytes.Buffer
	e := s.runner().Run(ctx, s.path(), args, &out, &out)
	s.logOutput(&out)
	if e != nil {
		err := newError(KindUpdate, "update", e)
		err.ExitStatus = exitStatus(e)
		return err
	}
	s.Logger.Info().Msg("Update successful")
	return nil
}

func (s *SteamCmd) logOutput(r io.Reader) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimRight(line, "\r\n"); len(line) != 0 {
			s.Logger.Debug().Str("source", "steamcmd").Msg(line)
		}
		if err != nil {
			return
		}
	}
}
