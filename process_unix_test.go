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

//go:build !windows

package gamevisor

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestProcessStartStop(t *testing.T) {
	sleep, e := exec.LookPath("sleep")
	if e != nil {
		t.Skip("no sleep command")
	}
	Convey("Start and stop a real process", t, func() {
		cfg := &InstanceConfig{
			Command:    sleep,
			LaunchArgs: []string{"3600"},
			WorkingDir: t.TempDir(),
			Compat:     CompatNative,
		}
		s := NewSupervisor(cfg, nil, nil, testLogger(t))

		p, e := s.Start()
		So(e, ShouldBeNil)
		So(p, ShouldNotBeNil)
		defer p.Kill()

		b, e := os.ReadFile(cfg.PIDFile())
		So(e, ShouldBeNil)
		So(strings.TrimSpace(string(b)), ShouldEqual, strconv.Itoa(p.Pid()))

		pid, running := s.Running()
		So(running, ShouldBeTrue)
		So(pid, ShouldEqual, p.Pid())

		// Log files are created fresh.
		_, e = os.Stat(cfg.StdoutLog())
		So(e, ShouldBeNil)
		_, e = os.Stat(cfg.StderrLog())
		So(e, ShouldBeNil)

		So(s.Stop(context.Background()), ShouldBeNil)
		select {
		case <-p.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("process did not exit")
		}
		_, e = os.Stat(cfg.PIDFile())
		So(os.IsNotExist(e), ShouldBeTrue)
	})
}

func TestProcessStartFailure(t *testing.T) {
	Convey("Starting a missing executable fails cleanly", t, func() {
		cfg := &InstanceConfig{
			Command:    "/nonexistent/server",
			WorkingDir: t.TempDir(),
		}
		s := NewSupervisor(cfg, nil, &fakeTable{}, testLogger(t))
		_, e := s.Start()
		So(IsKind(e, KindProcess), ShouldBeTrue)
		_, err := os.Stat(cfg.PIDFile())
		So(os.IsNotExist(err), ShouldBeTrue)
	})
}

func TestManagerStartNotifies(t *testing.T) {
	sleep, e := exec.LookPath("sleep")
	if e != nil {
		t.Skip("no sleep command")
	}
	Convey("Starting through the manager announces the server", t, func() {
		inst, e := NewInstance(InstanceConfig{
			Command:    sleep,
			LaunchArgs: []string{"3600"},
			WorkingDir: t.TempDir(),
		}, WithLogger(testLogger(t)))
		So(e, ShouldBeNil)
		notifier := &fakeNotifier{}
		m := NewManager(inst, WithNotifier(notifier))
		defer m.Shutdown()
		ctx := context.Background()

		So(m.Do(ctx, OpStart), ShouldBeNil)
		defer func() {
			if inst.Running() {
				inst.Stop(ctx)
			}
		}()
		So(notifier.Kinds(), ShouldResemble, []EventKind{EventStarted})
		So(m.Info().Running, ShouldBeTrue)

		So(m.Do(ctx, OpRestart), ShouldBeNil)
		So(notifier.Kinds(), ShouldResemble, []EventKind{EventStarted, EventStarted})

		So(m.Do(ctx, OpStop), ShouldBeNil)
		So(notifier.Kinds(), ShouldResemble, []EventKind{EventStarted, EventStarted, EventStopped})
		So(m.Info().Running, ShouldBeFalse)
	})

	Convey("A failed start sends nothing", t, func() {
		inst, e := NewInstance(InstanceConfig{
			Command:    "/nonexistent/server",
			WorkingDir: t.TempDir(),
		}, WithProcessTable(&fakeTable{}))
		So(e, ShouldBeNil)
		notifier := &fakeNotifier{}
		m := NewManager(inst, WithNotifier(notifier))
		defer m.Shutdown()

		So(m.Do(context.Background(), OpStart), ShouldNotBeNil)
		So(notifier.Kinds(), ShouldBeEmpty)
	})
}
