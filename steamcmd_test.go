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
	"io"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type exitError int

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", int(e)) }
func (e exitError) ExitCode() int { return int(e) }

// fakeRunner records its invocations and prints output.
type fakeRunner struct {
	name   string
	args   [][]string
	output string
	err    error
}

func (r *fakeRunner) Run(_ context.Context, name string, args []string, stdout, _ io.Writer) error {
	r.name = name
	r.args = append(r.args, args)
	io.WriteString(stdout, r.output)
	return r.err
}

func TestSteamCmdArgs(t *testing.T) {
	Convey("SteamCMD arguments", t, func() {
		s := &SteamCmd{}

		Convey("Native install", func() {
			So(s.Args(2278520, "/srv/game", false, nil), ShouldResemble, []string{
				"+force_install_dir", "/srv/game",
				"+login", "anonymous",
				"+app_update", "2278520", "validate",
				"+quit",
			})
		})

		Convey("Windows platform override comes first", func() {
			args := s.Args(2278520, "/srv/game", true, []string{"-beta", "public"})
			So(args[:2], ShouldResemble, []string{"+@sSteamCmdForcePlatformType", "windows"})
			So(args[2], ShouldEqual, "+force_install_dir")
			So(args[len(args)-3:], ShouldResemble, []string{"-beta", "public", "+quit"})
		})

		Convey("Extra arguments follow the install arguments", func() {
			s.ExtraArgs = []string{"+@NoPromptForPassword", "1"}
			args := s.Args(1, "/d", false, []string{"-beta", "x"})
			So(args[len(args)-5:], ShouldResemble,
				[]string{"-beta", "x", "+@NoPromptForPassword", "1", "+quit"})
		})
	})
}

func TestSteamCmdRun(t *testing.T) {
	Convey("Given a SteamCmd with a fake runner", t, func() {
		r := &fakeRunner{output: "Update state (0x61) downloading\nSuccess! App '1' fully installed.\n"}
		s := &SteamCmd{Path: "/opt/steamcmd", Runner: r, Stdout: io.Discard, Stderr: io.Discard, Logger: testLogger(t)}
		ctx := context.Background()

		Convey("Install runs SteamCMD", func() {
			So(s.Install(ctx, 1, "/d", false, nil), ShouldBeNil)
			So(r.name, ShouldEqual, "/opt/steamcmd")
			So(len(r.args), ShouldEqual, 1)
		})

		Convey("Update runs SteamCMD", func() {
			So(s.Update(ctx, 1, "/d", true, nil), ShouldBeNil)
			So(r.args[0][0], ShouldEqual, "+@sSteamCmdForcePlatformType")
		})

		Convey("Failures carry the exit status", func() {
			r.err = exitError(8)
			e := s.Install(ctx, 1, "/d", false, nil)
			So(IsKind(e, KindInstall), ShouldBeTrue)
			So(e.(*Error).ExitStatus, ShouldEqual, 8)

			e = s.Update(ctx, 1, "/d", false, nil)
			So(IsKind(e, KindUpdate), ShouldBeTrue)
			So(e.Error(), ShouldContainSubstring, "exit status 8")
		})

		Convey("The default path is steamcmd", func() {
			s.Path = ""
			So(s.Update(ctx, 1, "/d", false, nil), ShouldBeNil)
			So(r.name, ShouldEqual, DefaultSteamCmd)
		})
	})
}
