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
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is how often a fallback stop checks whether the
// matched processes are gone.
const DefaultPollInterval = 5 * time.Second

// Process is a handle to a server process started by a Supervisor.  The
// process runs detached from us, but while we are alive we still reap it.
type Process struct {
	cmd  *exec.Cmd
	pid  int
	err  error
	done chan struct{}
	once sync.Once
}

func (p *Process) Pid() int {
	return p.pid
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exits, and returns its exit error.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Kill forcibly terminates the process.
func (p *Process) Kill() error {
	return p.cmd.Process.Kill()
}

func (p *Process) doWait() {
	e := p.cmd.Wait()
	p.once.Do(func() {
		p.err = e
		close(p.done)
	})
}

// Supervisor starts and stops the server process of one InstanceConfig,
// keeping track of it through the PID record.  Supervisor itself does no
// locking; Instance serializes calls.
type Supervisor struct {
	cfg          *InstanceConfig
	resolver     *CompatResolver
	table        ProcessTable
	pollInterval time.Duration
	logger       zerolog.Logger
}

func NewSupervisor(cfg *InstanceConfig, resolver *CompatResolver, table ProcessTable, logger zerolog.Logger) *Supervisor {
	if resolver == nil {
		resolver = &CompatResolver{}
	}
	if table == nil {
		table = SystemProcessTable()
	}
	return &Supervisor{
		cfg:          cfg,
		resolver:     resolver,
		table:        table,
		pollInterval: DefaultPollInterval,
		logger:       logger,
	}
}

// SetPollInterval changes the fallback stop poll interval.
func (s *Supervisor) SetPollInterval(d time.Duration) {
	if d > 0 {
		s.pollInterval = d
	}
}

// Command builds the launch command, without starting it.  Output is not
// redirected yet.
func (s *Supervisor) Command() (*exec.Cmd, *LaunchSpec, error) {
	ls, e := s.resolver.Resolve(s.cfg.Compat, s.cfg.Command, s.cfg)
	if e != nil {
		return nil, nil, e
	}
	args := append(copyArray(ls.Args), s.cfg.LaunchArgs...)
	cmd := exec.Command(ls.Path, args...)
	cmd.Dir = s.cfg.WorkingDir
	if len(ls.Env) != 0 {
		cmd.Env = append(os.Environ(), ls.Env...)
	}
	return cmd, ls, nil
}

func (s *Supervisor) createLogs() (*os.File, *os.File, error) {
	if e := os.MkdirAll(s.cfg.LogDir(), 0755); e != nil {
		return nil, nil, e
	}
	stdout, e := os.Create(s.cfg.StdoutLog())
	if e != nil {
		return nil, nil, e
	}
	stderr, e := os.Create(s.cfg.StderrLog())
	if e != nil {
		stdout.Close()
		return nil, nil, e
	}
	return stdout, stderr, nil
}

// Start launches the server in the background with fresh log files and
// records its pid.  If the PID record cannot be written the process is
// killed again, so no stale record is ever left behind.
func (s *Supervisor) Start() (*Process, error) {
	if e := s.cfg.Validate(); e != nil {
		return nil, e
	}
	cmd, ls, e := s.Command()
	if e != nil {
		return nil, e
	}
	if ls.Layer != "native" {
		if e := os.MkdirAll(s.cfg.CompatDataDir(), 0755); e != nil {
			return nil, newError(KindIO, "start", e)
		}
	}
	stdout, stderr, e := s.createLogs()
	if e != nil {
		return nil, newError(KindIO, "start", e)
	}
	// The child holds its own descriptors once started.
	defer stdout.Close()
	defer stderr.Close()

	cmd.Stdout = stdout
	cmd.Stderr = stderr
	detach(cmd)

	s.logger.Debug().
		Str("layer", ls.Layer).
		Str("path", cmd.Path).
		Strs("args", cmd.Args[1:]).
		Str("dir", cmd.Dir).
		Msg("Launching server")

	if e := cmd.Start(); e != nil {
		return nil, newError(KindProcess, "start", e)
	}
	p := &Process{cmd: cmd, pid: cmd.Process.Pid, done: make(chan struct{})}
	go p.doWait()

	if e := writePID(s.cfg.PIDFile(), p.pid); e != nil {
		s.logger.Error().Err(e).Int("pid", p.pid).
			Msg("Failed to record pid, killing server")
		p.Kill()
		p.Wait()
		os.Remove(s.cfg.PIDFile())
		return nil, newError(KindIO, "start", e)
	}
	s.logger.Info().Int("pid", p.pid).Str("layer", ls.Layer).
		Msg("Server started")
	return p, nil
}

func writePID(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644)
}

// ParsePID parses the contents of a PID record.
func ParsePID(text string) (int, error) {
	pid, e := strconv.Atoi(strings.TrimSpace(text))
	if e != nil {
		return 0, wrapf(ErrInvalidPID, "%v", e)
	}
	if pid <= 0 {
		return 0, wrapf(ErrInvalidPID, "%d", pid)
	}
	return pid, nil
}

// ReadPID returns the recorded pid.  The boolean is false when there is no
// PID record.
func (s *Supervisor) ReadPID() (int, bool, error) {
	b, e := os.ReadFile(s.cfg.PIDFile())
	if errors.Is(e, fs.ErrNotExist) {
		return 0, false, nil
	}
	if e != nil {
		return 0, false, newError(KindIO, "pid", e)
	}
	pid, e := ParsePID(string(b))
	if e != nil {
		return 0, true, newError(KindParse, "pid", e)
	}
	return pid, true, nil
}

// Running reports whether the recorded pid is alive.
func (s *Supervisor) Running() (int, bool) {
	pid, ok, e := s.ReadPID()
	if e != nil || !ok {
		return 0, false
	}
	return pid, s.table.Exists(pid)
}

// Stop interrupts the server.  With a PID record, exactly that pid is
// interrupted and the record removed.  Without one, every process whose
// name resembles the executable is interrupted, and Stop waits (without
// a deadline) until none are left.
func (s *Supervisor) Stop(ctx context.Context) error {
	pid, ok, e := s.ReadPID()
	if e != nil {
		return e
	}
	if ok {
		return s.stopPID(pid)
	}
	return s.stopByName(ctx)
}

func (s *Supervisor) stopPID(pid int) error {
	s.logger.Info().Int("pid", pid).Msg("Sending interrupt to server")
	if e := s.table.Interrupt(pid); e != nil {
		if s.table.Exists(pid) {
			return newError(KindProcess, "stop", e)
		}
		// The record is stale.  Drop it so the next stop falls
		// back to discovery.
		s.logger.Warn().Int("pid", pid).Msg("Recorded server pid is not running")
		os.Remove(s.cfg.PIDFile())
		return newError(KindProcess, "stop", wrapf(ErrNotRunning, "pid %d", pid))
	}
	if e := os.Remove(s.cfg.PIDFile()); e != nil && !errors.Is(e, fs.ErrNotExist) {
		return newError(KindIO, "stop", e)
	}
	return nil
}

func (s *Supervisor) stopByName(ctx context.Context) error {
	name := s.cfg.ExecutableName()
	matches, e := FindProcesses(s.table, name)
	if e != nil {
		return newError(KindProcess, "stop", e)
	}
	if len(matches) == 0 {
		return newError(KindProcess, "stop", wrapf(ErrProcessNotFound, "%s", name))
	}
	s.logger.Info().Str("executable", name).Int("matches", len(matches)).
		Msg("No PID record, interrupting matching processes")
	for _, m := range matches {
		if e := s.table.Interrupt(m.Pid); e != nil {
			s.logger.Error().Err(e).Int("pid", m.Pid).Str("name", m.Name).
				Msg("Failed to send interrupt")
			continue
		}
		s.logger.Info().Int("pid", m.Pid).Str("name", m.Name).
			Float64("score", m.Score).Msg("Sent interrupt")
	}

	timer := time.NewTimer(s.pollInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return newError(KindProcess, "stop", ctx.Err())
		case <-timer.C:
		}
		matches, e = FindProcesses(s.table, name)
		if e != nil {
			return newError(KindProcess, "stop", e)
		}
		if len(matches) == 0 {
			s.logger.Info().Str("executable", name).Msg("Server processes have stopped")
			return nil
		}
		s.logger.Debug().Int("remaining", len(matches)).
			Msg("Server processes still running")
		timer.Reset(s.pollInterval)
	}
}
