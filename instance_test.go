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
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

// testInstance returns an Instance in a fresh directory, with a fake
// process table and SteamCMD runner.
func testInstance(t *testing.T, table *fakeTable, runner *fakeRunner) *Instance {
	dir := t.TempDir()
	steam := &SteamCmd{Runner: runner, Stdout: io.Discard, Stderr: io.Discard}
	inst, e := NewInstance(InstanceConfig{
		AppID:       2278520,
		Command:     filepath.Join(dir, "enshrouded_server.exe"),
		InstallArgs: []string{"-beta", "public"},
		LaunchArgs:  []string{"-log"},
		WorkingDir:  filepath.Join(dir, "server"),
		Compat:      CompatNative,
	},
		WithLogger(testLogger(t)),
		WithProcessTable(table),
		WithSteamCmd(steam),
		WithAppInfoPath(filepath.Join(dir, "appinfo.vdf")),
		WithPollInterval(5*time.Millisecond))
	if e != nil {
		t.Fatalf("NewInstance: %v", e)
	}
	return inst
}

// setBuilds writes the installed and latest build ids.
func setBuilds(inst *Instance, current, latest string) error {
	cfg := inst.Config()
	if e := os.MkdirAll(filepath.Dir(cfg.ManifestFile()), 0755); e != nil {
		return e
	}
	if e := os.WriteFile(cfg.ManifestFile(), []byte(`"buildid" "`+current+`"`), 0644); e != nil {
		return e
	}
	return os.WriteFile(inst.appInfoPath, []byte(`"buildid" "`+latest+`"`), 0644)
}

func TestNewInstance(t *testing.T) {
	Convey("Creating instances", t, func() {
		dir := t.TempDir()

		Convey("An empty command is rejected", func() {
			_, e := NewInstance(InstanceConfig{Command: "  ", WorkingDir: dir})
			So(IsKind(e, KindConfig), ShouldBeTrue)
			So(errors.Is(e, ErrEmptyCommand), ShouldBeTrue)
		})

		Convey("A missing working directory is created", func() {
			wd := filepath.Join(dir, "a", "b")
			inst, e := NewInstance(InstanceConfig{Command: "/srv/PalServer.sh", WorkingDir: wd})
			So(e, ShouldBeNil)
			fi, e := os.Stat(wd)
			So(e, ShouldBeNil)
			So(fi.IsDir(), ShouldBeTrue)
			So(inst.Name(), ShouldEqual, "PalServer.sh")
			So(inst.Config().Compat, ShouldEqual, CompatNative)
		})

		Convey("The configuration is copied", func() {
			args := []string{"-port", "8211"}
			inst, e := NewInstance(InstanceConfig{Command: "srv", WorkingDir: dir, LaunchArgs: args})
			So(e, ShouldBeNil)
			args[1] = "9999"
			cfg := inst.Config()
			So(cfg.LaunchArgs, ShouldResemble, []string{"-port", "8211"})
			cfg.LaunchArgs[0] = "x"
			So(inst.Config().LaunchArgs[0], ShouldEqual, "-port")
		})

		Convey("Manifests are read from JSON", func() {
			js := `{"appId": 2394010, "command": "PalServer.sh", "compat": "native",
				"workingDir": "` + filepath.ToSlash(dir) + `", "launchArgs": ["-useperfthreads"]}`
			inst, e := NewInstanceFromJSON(strings.NewReader(js))
			So(e, ShouldBeNil)
			cfg := inst.Config()
			So(cfg.AppID, ShouldEqual, 2394010)
			So(cfg.LaunchArgs, ShouldResemble, []string{"-useperfthreads"})
			So(cfg.Name, ShouldEqual, "PalServer.sh")

			_, e = NewInstanceFromJSON(strings.NewReader(`{"compat": "dosbox"}`))
			So(IsKind(e, KindConfig), ShouldBeTrue)
		})
	})
}

func TestInstanceOperations(t *testing.T) {
	Convey("Given an instance", t, func() {
		table := &fakeTable{exit: true}
		runner := &fakeRunner{}
		inst := testInstance(t, table, runner)
		cfg := inst.Config()
		ctx := context.Background()

		Convey("Install passes the install arguments", func() {
			So(inst.Install(ctx), ShouldBeNil)
			args := runner.args[0]
			So(args, ShouldContain, cfg.WorkingDir)
			So(args[len(args)-3:], ShouldResemble, []string{"-beta", "public", "+quit"})

			Convey("And can target another directory", func() {
				So(inst.InstallTo(ctx, "/elsewhere"), ShouldBeNil)
				So(runner.args[1], ShouldContain, "/elsewhere")
			})
		})

		Convey("Without build ids there is no update", func() {
			_, e := inst.CheckUpdate()
			So(e, ShouldNotBeNil)
			So(inst.UpdateAvailable(), ShouldBeFalse)
		})

		Convey("With equal builds auto-update does nothing", func() {
			So(setBuilds(inst, "10", "10"), ShouldBeNil)
			updated, e := inst.AutoUpdate(ctx)
			So(e, ShouldBeNil)
			So(updated, ShouldBeFalse)
			So(runner.args, ShouldBeEmpty)
		})

		Convey("With a new build", func() {
			So(setBuilds(inst, "10", "11"), ShouldBeNil)
			So(inst.UpdateAvailable(), ShouldBeTrue)

			Convey("Auto-update stops first, and gives up if that fails", func() {
				updated, e := inst.AutoUpdate(ctx)
				So(errors.Is(e, ErrProcessNotFound), ShouldBeTrue)
				So(updated, ShouldBeFalse)
				So(runner.args, ShouldBeEmpty)
			})

			Convey("Update runs SteamCMD", func() {
				So(inst.Update(ctx), ShouldBeNil)
				So(len(runner.args), ShouldEqual, 1)
			})
		})

		Convey("Restart does not start when stop fails", func() {
			_, e := inst.Restart(ctx)
			So(errors.Is(e, ErrProcessNotFound), ShouldBeTrue)
			_, err := os.Stat(cfg.PIDFile())
			So(os.IsNotExist(err), ShouldBeTrue)
		})

		Convey("Running follows the PID record", func() {
			So(inst.Running(), ShouldBeFalse)
			table.procs = []ProcInfo{{Pid: 4242, Name: "enshrouded_server.exe"}}
			So(writePID(cfg.PIDFile(), 4242), ShouldBeNil)
			So(inst.Running(), ShouldBeTrue)
			pid, ok := inst.Pid()
			So(ok, ShouldBeTrue)
			So(pid, ShouldEqual, 4242)

			So(inst.Stop(ctx), ShouldBeNil)
			So(table.Interrupted(), ShouldResemble, []int{4242})
			So(inst.Running(), ShouldBeFalse)
		})
	})
}

func TestInstanceExclusion(t *testing.T) {
	Convey("Lifecycle operations wait for a stop in progress", t, func() {
		// The process ignores the interrupt, so the stop keeps polling.
		table := &fakeTable{procs: []ProcInfo{{Pid: 31, Name: "enshrouded_server.exe"}}}
		runner := &fakeRunner{}
		inst := testInstance(t, table, runner)

		sctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		stopped := make(chan error, 1)
		go func() { stopped <- inst.Stop(sctx) }()
		So(waitFor(func() bool { return len(table.Interrupted()) == 1 }), ShouldBeTrue)

		ctx := context.Background()
		done := make(chan string, 3)
		go func() {
			inst.Update(ctx)
			done <- "update"
		}()
		go func() {
			inst.Install(ctx)
			done <- "install"
		}()
		go func() {
			inst.Start(ctx)
			done <- "start"
		}()

		select {
		case op := <-done:
			t.Fatalf("%s ran during a stop", op)
		case <-time.After(50 * time.Millisecond):
		}

		cancel()
		select {
		case e := <-stopped:
			So(IsKind(e, KindProcess), ShouldBeTrue)
			So(errors.Is(e, context.Canceled), ShouldBeTrue)
		case <-time.After(5 * time.Second):
			t.Fatal("stop did not return")
		}

		ops := []string{}
		for len(ops) < 3 {
			select {
			case op := <-done:
				ops = append(ops, op)
			case <-time.After(5 * time.Second):
				t.Fatalf("operations still blocked after %v", ops)
			}
		}
		So(ops, ShouldContain, "update")
		So(ops, ShouldContain, "install")
		So(ops, ShouldContain, "start")
		So(len(runner.args), ShouldEqual, 2)
	})
}
