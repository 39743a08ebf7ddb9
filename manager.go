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
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Operation is a lifecycle operation a Manager can perform.
type Operation string

const (
	OpStart      Operation = "start"
	OpStop       Operation = "stop"
	OpRestart    Operation = "restart"
	OpUpdate     Operation = "update"
	OpInstall    Operation = "install"
	OpAutoUpdate Operation = "auto-update"
)

func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToLower(s)); op {
	case OpStart, OpStop, OpRestart, OpUpdate, OpInstall, OpAutoUpdate:
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
}

const (
	AutoUpdateJob       = "auto-update"
	ScheduledRestartJob = "scheduled-restart"
)

// DefaultWatchInterval is how often the Manager checks whether the server
// process is still alive.  It is a "prime" number of milliseconds, to keep
// clock events more or less evenly distributed.
const DefaultWatchInterval = 587 * time.Millisecond

// InstanceStatus is a consistent snapshot of a managed instance.
type InstanceStatus struct {
	Name       string
	AppID      uint32
	Compat     CompatMode
	WorkingDir string
	Running    bool
	Pid        int
	Monitoring bool
	Status     string
	TimeStamp  time.Time
	LastError  string
	Serial     int64
	CreateTime time.Time
}

// Manager runs one Instance for the long haul: it tails the server logs
// through a RuleSet, runs scheduled jobs, keeps a Log of recent activity,
// and tracks a serial number that changes whenever anything interesting
// happens, so that clients can wait for changes.
type Manager struct {
	inst       *Instance
	rules      *RuleSet
	monitor    *LogMonitor
	sched      *Scheduler
	log        *Log
	notifier   Notifier
	metrics    MetricsCollector
	logger     zerolog.Logger
	stopDelay  time.Duration
	interval   time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	group      errgroup.Group
	pending    sync.WaitGroup
	monitoring bool
	running    bool
	pid        int
	serial     int64
	status     string
	stamp      time.Time
	lastErr    string
	createTime time.Time
	mx         sync.Mutex
	cvs        map[*sync.Cond]bool
}

type ManagerOption func(*Manager)

func WithNotifier(n Notifier) ManagerOption {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

func WithMetrics(mc MetricsCollector) ManagerOption {
	return func(m *Manager) {
		if mc != nil {
			m.metrics = mc
		}
	}
}

func WithManagerLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithLog makes the Manager serve records from l.  Usually l is also one
// of the logger's outputs.
func WithLog(l *Log) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithStopDelay announces a stop this long before it happens.
func WithStopDelay(d time.Duration) ManagerOption {
	return func(m *Manager) { m.stopDelay = d }
}

func WithWatchInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

func NewManager(inst *Instance, opts ...ManagerOption) *Manager {
	// The serial starts at the current time in nsec, so that clients
	// notice when we restart.
	now := time.Now()
	m := &Manager{
		inst:       inst,
		notifier:   NoopNotifier{},
		metrics:    NoopMetrics{},
		logger:     zerolog.Nop(),
		interval:   DefaultWatchInterval,
		serial:     now.UnixNano(),
		status:     "Idle",
		stamp:      now,
		createTime: now,
		cvs:        make(map[*sync.Cond]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = NewLog(0)
	}
	m.logger = m.logger.With().Str("instance", inst.Name()).Logger()
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.rules = DefaultRuleSet(m.logger.With().Str("source", SourceServer).Logger(), nil)
	m.monitor = NewLogMonitor(m.rules, m.logger.With().Str("component", "monitor").Logger())
	m.monitor.SetMetrics(m.metrics)
	m.sched = NewScheduler(m.ctx, m.logger.With().Str("component", "scheduler").Logger())
	m.sched.SetMetrics(m.metrics)
	m.pid, m.running = inst.Pid()
	return m
}

func (m *Manager) lock() {
	m.mx.Lock()
}

func (m *Manager) unlock() {
	m.mx.Unlock()
}

// bumpSerial increments the serial and wakes watchers.  Call with lock
// held, or watchers may miss the new value.
func (m *Manager) bumpSerial() int64 {
	m.serial++
	for cv := range m.cvs {
		cv.Broadcast()
	}
	return m.serial
}

func (m *Manager) setStatus(status string, err error) {
	m.lock()
	m.status = status
	m.stamp = time.Now()
	if err != nil {
		m.lastErr = err.Error()
	}
	m.bumpSerial()
	m.unlock()
}

// WatchSerial waits until the serial differs from old, or until expire
// elapses, and returns the serial.  An expire of zero just polls.
func (m *Manager) WatchSerial(old int64, expire time.Duration) int64 {
	expired := false
	cv := sync.NewCond(&m.mx)
	var timer *time.Timer
	if expire > 0 {
		timer = time.AfterFunc(expire, func() {
			m.lock()
			expired = true
			cv.Broadcast()
			m.unlock()
		})
	} else {
		expired = true
	}

	m.lock()
	m.cvs[cv] = true
	for m.serial == old && !expired {
		cv.Wait()
	}
	delete(m.cvs, cv)
	rv := m.serial
	m.unlock()
	if timer != nil {
		timer.Stop()
	}
	return rv
}

func (m *Manager) Serial() int64 {
	m.lock()
	defer m.unlock()
	return m.serial
}

func (m *Manager) Instance() *Instance {
	return m.inst
}

func (m *Manager) Rules() *RuleSet {
	return m.rules
}

func (m *Manager) Metrics() MetricsCollector {
	return m.metrics
}

// Info returns a consistent snapshot of the instance state.
func (m *Manager) Info() InstanceStatus {
	cfg := m.inst.Config()
	m.lock()
	defer m.unlock()
	return InstanceStatus{
		Name:       cfg.Name,
		AppID:      cfg.AppID,
		Compat:     cfg.Compat,
		WorkingDir: cfg.WorkingDir,
		Running:    m.running,
		Pid:        m.pid,
		Monitoring: m.monitoring,
		Status:     m.status,
		TimeStamp:  m.stamp,
		LastError:  m.lastErr,
		Serial:     m.serial,
		CreateTime: m.createTime,
	}
}

func (m *Manager) GetLog(last int64) ([]LogRecord, int64) {
	return m.log.GetRecords(last)
}

func (m *Manager) WatchLog(last int64, expire time.Duration) int64 {
	return m.log.Watch(last, expire)
}

// ClearLog empties the in-memory log.  Log watchers see the change.
func (m *Manager) ClearLog() {
	m.log.Clear()
	m.logger.Info().Msg("Log cleared")
}

func (m *Manager) Jobs() []JobInfo {
	return m.sched.Jobs()
}

func (m *Manager) CheckUpdate() (UpdateInfo, error) {
	return m.inst.CheckUpdate()
}

// AddJob runs fn on the cron schedule expr.
func (m *Manager) AddJob(name, expr string, fn func()) error {
	return m.sched.RegisterJob(name, expr, fn)
}

// EnableAutoUpdate checks for updates on schedule expr, and if there is
// one stops, updates and restarts the server.
func (m *Manager) EnableAutoUpdate(expr string) error {
	return m.AddJob(AutoUpdateJob, expr, func() {
		m.Do(m.ctx, OpAutoUpdate)
	})
}

// EnableScheduledRestart restarts the server on schedule expr.
func (m *Manager) EnableScheduledRestart(expr string) error {
	return m.AddJob(ScheduledRestartJob, expr, func() {
		m.Do(m.ctx, OpRestart)
	})
}

// AddEventRule adds a rule that sends an Event when a server log line
// matches.
func (m *Manager) AddEventRule(er EventRule) error {
	r, e := er.Compile(m.notifyAsync)
	if e != nil {
		return e
	}
	m.rules.AddRule(r, er.Ranking)
	return nil
}

func (m *Manager) notify(ctx context.Context, ev Event) {
	if e := m.notifier.Notify(ctx, ev); e != nil {
		m.logger.Warn().Err(e).Str("event", string(ev.Kind)).
			Msg("Notification failed")
	}
}

// notifyAsync keeps rule actions from blocking the log monitor.
func (m *Manager) notifyAsync(ev Event) {
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		m.notify(m.ctx, ev)
	}()
}

// Do performs op and records the outcome in the status.
func (m *Manager) Do(ctx context.Context, op Operation) error {
	start := time.Now()
	m.setStatus(fmt.Sprintf("Running %s", op), nil)
	m.logger.Info().Str("op", string(op)).Msg("Operation started")

	var err error
	switch op {
	case OpStart:
		if _, err = m.inst.Start(ctx); err == nil {
			m.notify(ctx, Event{Kind: EventStarted})
		}
	case OpStop:
		err = m.stop(ctx)
	case OpRestart:
		if _, err = m.inst.Restart(ctx); err == nil {
			m.notify(ctx, Event{Kind: EventStarted})
		}
	case OpInstall:
		err = m.inst.Install(ctx)
	case OpUpdate:
		if m.inst.UpdateAvailable() {
			m.notify(ctx, Event{Kind: EventUpdating})
			if err = m.inst.Update(ctx); err == nil {
				m.notify(ctx, Event{Kind: EventUpdated})
			}
		}
	case OpAutoUpdate:
		var updated bool
		if updated, err = m.inst.AutoUpdate(ctx); updated && err == nil {
			m.notify(ctx, Event{Kind: EventUpdated})
			m.notify(ctx, Event{Kind: EventStarted})
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	m.metrics.OperationCompleted(op, time.Since(start), err)

	if err != nil {
		m.logger.Error().Err(err).Str("op", string(op)).Msg("Operation failed")
		m.setStatus(fmt.Sprintf("Failed to %s", op), err)
	} else {
		m.logger.Info().Str("op", string(op)).Dur("elapsed", time.Since(start)).
			Msg("Operation complete")
		m.setStatus(fmt.Sprintf("Completed %s", op), nil)
	}
	m.refresh()
	return err
}

func (m *Manager) stop(ctx context.Context) error {
	if m.stopDelay > 0 {
		m.notify(ctx, Event{Kind: EventStopping})
		m.logger.Info().Dur("delay", m.stopDelay).Msg("Waiting before stop")
		select {
		case <-ctx.Done():
			return newError(KindProcess, "stop", ctx.Err())
		case <-time.After(m.stopDelay):
		}
	}
	if e := m.inst.Stop(ctx); e != nil {
		return e
	}
	m.notify(ctx, Event{Kind: EventStopped})
	return nil
}

// refresh updates the running state, bumping the serial if it changed.
func (m *Manager) refresh() {
	pid, running := m.inst.Pid()
	m.metrics.ServerRunning(running)
	m.lock()
	if running != m.running || pid != m.pid {
		m.running = running
		m.pid = pid
		m.stamp = time.Now()
		m.bumpSerial()
	}
	m.unlock()
}

func (m *Manager) watch(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		m.refresh()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// touch creates path if it does not exist, without truncating it.
func touch(path string) error {
	f, e := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if e != nil {
		return e
	}
	return f.Close()
}

// StartMonitoring starts tailing the server logs and watching the server
// process.  Monitoring ends when ctx is done or Shutdown is called.
func (m *Manager) StartMonitoring(ctx context.Context) error {
	m.lock()
	if m.monitoring {
		m.unlock()
		return nil
	}
	m.monitoring = true
	m.bumpSerial()
	m.unlock()

	cfg := m.inst.Config()
	if e := os.MkdirAll(cfg.LogDir(), 0755); e != nil {
		return newError(KindIO, "monitor", e)
	}
	for _, path := range []string{cfg.StdoutLog(), cfg.StderrLog()} {
		if e := touch(path); e != nil {
			return newError(KindIO, "monitor", e)
		}
	}

	mctx, cancel := context.WithCancel(m.ctx)
	stop := context.AfterFunc(ctx, cancel)
	m.logger.Info().Msg("Monitoring started")

	m.group.Go(func() error {
		defer stop()
		return m.monitor.RunInstance(mctx, &cfg)
	})
	m.group.Go(func() error {
		return m.watch(mctx)
	})
	m.group.Go(func() error {
		<-mctx.Done()
		m.lock()
		m.monitoring = false
		m.bumpSerial()
		m.unlock()
		m.logger.Info().Msg("Monitoring stopped")
		return nil
	})
	return nil
}

// Wait blocks until monitoring has ended, and returns the first error of
// the background goroutines.
func (m *Manager) Wait() error {
	return m.group.Wait()
}

// Shutdown stops monitoring and all jobs, and waits for them.  The server
// process itself is left alone.
func (m *Manager) Shutdown() error {
	m.cancel()
	m.sched.Stop()
	e := m.group.Wait()
	m.pending.Wait()
	if e != nil {
		m.logger.Error().Err(e).Msg("Monitoring ended with error")
	}
	m.logger.Info().Msg("Manager shut down")
	return e
}
