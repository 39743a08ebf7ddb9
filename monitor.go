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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// TailInterval is how long a LogMonitor sleeps when it has caught up
// with the file.
const TailInterval = 100 * time.Millisecond

// LogMonitor follows log files and feeds each complete line through its
// RuleSet.
type LogMonitor struct {
	rules    *RuleSet
	interval time.Duration
	metrics  MetricsCollector
	logger   zerolog.Logger
}

func NewLogMonitor(rules *RuleSet, logger zerolog.Logger) *LogMonitor {
	if rules == nil {
		rules = NewRuleSet()
	}
	return &LogMonitor{
		rules:    rules,
		interval: TailInterval,
		metrics:  NoopMetrics{},
		logger:   logger,
	}
}

func (m *LogMonitor) Rules() *RuleSet {
	return m.rules
}

// AddRule is a shorthand for Rules().Add.
func (m *LogMonitor) AddRule(match Matcher, action Action, stop bool, ranking *int) Rule {
	return m.rules.Add(match, action, stop, ranking)
}

func (m *LogMonitor) SetInterval(d time.Duration) {
	if d > 0 {
		m.interval = d
	}
}

func (m *LogMonitor) SetMetrics(mc MetricsCollector) {
	if mc != nil {
		m.metrics = mc
	}
}

func (m *LogMonitor) process(source, line string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Str("source", source).
				Str("panic", fmt.Sprint(r)).
				Msg("Log rule panicked")
		}
	}()
	m.metrics.LineProcessed(source)
	for _, r := range m.rules.Evaluate(line) {
		m.metrics.RuleFired(r.Name)
	}
}

// shrunk reports whether the file at path is no longer the one we are
// reading from, or is shorter than what we have already read.
func shrunk(f *os.File, path string, offset int64) bool {
	disk, e := os.Stat(path)
	if e != nil {
		return false
	}
	if disk.Size() < offset {
		return true
	}
	open, e := f.Stat()
	return e == nil && !os.SameFile(open, disk)
}

// Run follows path from its current end until ctx is cancelled.  Only
// lines appended after Run starts are evaluated.  When the file shrinks
// (or is replaced) it is reopened and read from the start.  Failure to
// open the file initially ends Run with an error.
func (m *LogMonitor) Run(ctx context.Context, path string) error {
	source := filepath.Base(path)
	log := m.logger.With().Str("file", path).Logger()

	f, e := os.Open(path)
	if e != nil {
		log.Error().Err(e).Msg("Failed to open log file")
		return newError(KindIO, "monitor", e)
	}
	defer func() { f.Close() }()

	offset, e := f.Seek(0, io.SeekEnd)
	if e != nil {
		log.Error().Err(e).Msg("Failed to seek log file")
		return newError(KindIO, "monitor", e)
	}
	reader := bufio.NewReader(f)
	partial := ""

	log.Info().Msg("Monitoring log file")
	for {
		if ctx.Err() != nil {
			return nil
		}
		chunk, e := reader.ReadString('\n')
		offset += int64(len(chunk))
		if strings.HasSuffix(chunk, "\n") {
			line := strings.TrimRight(partial+chunk, "\r\n")
			partial = ""
			m.process(source, line)
			continue
		}
		partial += chunk
		if e != nil && e != io.EOF {
			log.Warn().Err(e).Msg("Failed to read log file")
		}

		if shrunk(f, path, offset) {
			nf, e := os.Open(path)
			if e != nil {
				log.Warn().Err(e).Msg("Failed to reopen log file")
			} else {
				log.Debug().Msg("Log file truncated, reading from start")
				f.Close()
				f = nf
				reader.Reset(f)
				offset = 0
				partial = ""
				m.metrics.LogReopened(source)
				continue
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.interval):
		}
	}
}

// RunInstance follows both server log files of cfg until ctx is
// cancelled.  A file that cannot be opened does not stop the other.
func (m *LogMonitor) RunInstance(ctx context.Context, cfg *InstanceConfig) error {
	var g errgroup.Group
	for _, path := range []string{cfg.StdoutLog(), cfg.StderrLog()} {
		path := path
		g.Go(func() error {
			return m.Run(ctx, path)
		})
	}
	return g.Wait()
}
