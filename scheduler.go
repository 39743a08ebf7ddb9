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
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Cron expressions have a seconds field.  Classic five field expressions
// are accepted and run at second zero.
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NormalizeCronExpr prefixes a five field expression with a zero seconds
// field.  Anything else is returned unchanged.
func NormalizeCronExpr(expr string) string {
	if len(strings.Fields(expr)) == 5 {
		return "0 " + expr
	}
	return expr
}

type job struct {
	name     string
	expr     string
	schedule cron.Schedule
	action   func()
	next     time.Time
	last     time.Time
	runs     int
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name    string    `json:"name"`
	Expr    string    `json:"expr"`
	Next    time.Time `json:"next"`
	LastRun time.Time `json:"lastRun"`
	Runs    int       `json:"runs"`
}

// Scheduler runs each registered job in its own goroutine, at the times
// given by its cron expression, until Stop is called.
type Scheduler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	jobs    []*job
	metrics MetricsCollector
	logger  zerolog.Logger
	wg      sync.WaitGroup
	mx      sync.Mutex
}

func NewScheduler(ctx context.Context, logger zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		ctx:     ctx,
		cancel:  cancel,
		metrics: NoopMetrics{},
		logger:  logger,
	}
}

func (s *Scheduler) SetMetrics(mc MetricsCollector) {
	if mc != nil {
		s.metrics = mc
	}
}

// RegisterJob parses expr and starts running action on that schedule.
// An expression that does not parse is logged and returned, and nothing
// is registered.
func (s *Scheduler) RegisterJob(name, expr string, action func()) error {
	norm := NormalizeCronExpr(expr)
	sched, e := cronParser.Parse(norm)
	if e != nil {
		s.logger.Error().Err(e).Str("job", name).Str("expr", expr).
			Msg("Invalid cron expression, job not scheduled")
		return newError(KindConfig, "schedule", wrapf(e, "%s", expr))
	}
	j := &job{name: name, expr: norm, schedule: sched, action: action}

	s.mx.Lock()
	s.jobs = append(s.jobs, j)
	s.mx.Unlock()

	s.logger.Info().Str("job", name).Str("expr", norm).Msg("Job scheduled")
	s.wg.Add(1)
	go s.loop(j)
	return nil
}

func (s *Scheduler) loop(j *job) {
	defer s.wg.Done()
	for {
		next := j.schedule.Next(time.Now())
		if next.IsZero() {
			s.logger.Warn().Str("job", j.name).Msg("Job has no further runs")
			return
		}
		s.mx.Lock()
		j.next = next
		s.mx.Unlock()

		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.run(j)
	}
}

func (s *Scheduler) run(j *job) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.logger.Error().Str("job", j.name).Err(err).Msg("Job panicked")
		}
		s.mx.Lock()
		j.runs++
		j.last = time.Now()
		s.mx.Unlock()
		s.metrics.JobRun(j.name, err)
	}()
	s.logger.Debug().Str("job", j.name).Msg("Running job")
	j.action()
}

// Jobs returns the registered jobs, soonest first.
func (s *Scheduler) Jobs() []JobInfo {
	s.mx.Lock()
	rv := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		rv = append(rv, JobInfo{
			Name:    j.name,
			Expr:    j.expr,
			Next:    j.next,
			LastRun: j.last,
			Runs:    j.runs,
		})
	}
	s.mx.Unlock()
	sort.SliceStable(rv, func(i, j int) bool {
		return rv[i].Next.Before(rv[j].Next)
	})
	return rv
}

// Stop cancels all jobs and waits for their goroutines.  A job that is
// running is allowed to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}
