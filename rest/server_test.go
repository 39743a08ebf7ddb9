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

package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/gdamore/gamevisor"
)

// emptyTable is a process table with nothing in it.
type emptyTable struct{}

func (emptyTable) Processes() ([]gamevisor.ProcInfo, error) { return nil, nil }
func (emptyTable) Interrupt(int) error                      { return errors.New("no such process") }
func (emptyTable) Exists(int) bool                          { return false }

func testManager(t *testing.T, opts ...gamevisor.ManagerOption) *gamevisor.Manager {
	dir := t.TempDir()
	inst, e := gamevisor.NewInstance(gamevisor.InstanceConfig{
		AppID:      896660,
		Name:       "valheim",
		Command:    filepath.Join(dir, "valheim_server.x86_64"),
		WorkingDir: dir,
	},
		gamevisor.WithProcessTable(emptyTable{}),
		gamevisor.WithAppInfoPath(filepath.Join(dir, "appinfo.vdf")))
	if e != nil {
		t.Fatalf("NewInstance: %v", e)
	}
	ring := gamevisor.NewLog(0)
	opts = append([]gamevisor.ManagerOption{
		gamevisor.WithLog(ring),
		gamevisor.WithManagerLogger(zerolog.New(ring)),
	}, opts...)
	return gamevisor.NewManager(inst, opts...)
}

func TestRest(t *testing.T) {
	Convey("Given a server and client", t, func() {
		metrics := gamevisor.NewPrometheusMetrics("")
		m := testManager(t, gamevisor.WithMetrics(metrics))
		defer m.Shutdown()
		srv := httptest.NewServer(NewHandler(m))
		defer srv.Close()
		c := NewClient(nil, srv.URL)
		ctx := context.Background()

		Convey("The instance can be read", func() {
			info, e := c.GetInstance(ctx)
			So(e, ShouldBeNil)
			So(info.Name, ShouldEqual, "valheim")
			So(info.AppID, ShouldEqual, 896660)
			So(info.Compat, ShouldEqual, gamevisor.CompatNative)
			So(info.Running, ShouldBeFalse)
			So(info.Etag(), ShouldNotBeEmpty)

			Convey("And watched for changes", func() {
				go func() {
					time.Sleep(20 * time.Millisecond)
					m.Do(ctx, gamevisor.OpStop)
				}()
				next, e := c.WatchInstance(ctx, info)
				So(e, ShouldBeNil)
				So(next.Etag(), ShouldNotEqual, info.Etag())
			})
		})

		Convey("Unknown operations are not found", func() {
			e := c.Do(ctx, "explode")
			var re *Error
			So(errors.As(e, &re), ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Stopping a stopped server conflicts", func() {
			e := c.Stop(ctx)
			var re *Error
			So(errors.As(e, &re), ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusConflict)
			So(re.Message, ShouldContainSubstring, "No running process")

			info, e := c.GetInstance(ctx)
			So(e, ShouldBeNil)
			So(info.Status, ShouldEqual, "Failed to stop")
			So(info.LastError, ShouldNotBeEmpty)
		})

		Convey("Update checks need build ids", func() {
			_, e := c.CheckUpdate(ctx)
			var re *Error
			So(errors.As(e, &re), ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("Jobs are listed", func() {
			jobs, e := c.Jobs(ctx)
			So(e, ShouldBeNil)
			So(jobs, ShouldBeEmpty)

			So(m.EnableAutoUpdate("0 3 * * *"), ShouldBeNil)
			jobs, e = c.Jobs(ctx)
			So(e, ShouldBeNil)
			So(len(jobs), ShouldEqual, 1)
			So(jobs[0].Name, ShouldEqual, gamevisor.AutoUpdateJob)
			So(jobs[0].Expr, ShouldEqual, "0 0 3 * * *")
		})

		Convey("The log is served", func() {
			m.Do(ctx, gamevisor.OpStop)
			l, e := c.GetLog(ctx)
			So(e, ShouldBeNil)
			So(l.Records, ShouldNotBeEmpty)
			So(l.Etag(), ShouldNotBeEmpty)

			Convey("And watched", func() {
				go func() {
					time.Sleep(20 * time.Millisecond)
					m.Do(ctx, gamevisor.OpStop)
				}()
				next, e := c.WatchLog(ctx, l)
				So(e, ShouldBeNil)
				So(next.Etag(), ShouldNotEqual, l.Etag())
				So(len(next.Records), ShouldBeGreaterThan, len(l.Records))
			})
		})

		Convey("The log can be cleared", func() {
			m.Do(ctx, gamevisor.OpStop)
			l, e := c.GetLog(ctx)
			So(e, ShouldBeNil)
			So(len(l.Records), ShouldBeGreaterThan, 1)

			So(c.ClearLog(ctx), ShouldBeNil)
			next, e := c.GetLog(ctx)
			So(e, ShouldBeNil)
			So(next.Etag(), ShouldNotEqual, l.Etag())
			So(len(next.Records), ShouldEqual, 1)
			So(next.Records[0].Text, ShouldStartWith, "Log cleared")
			So(next.Records[0].ID, ShouldBeGreaterThan, l.Records[len(l.Records)-1].ID)
		})

		Convey("Metrics are exported", func() {
			m.Do(ctx, gamevisor.OpStop)
			res, e := http.Get(srv.URL + "/metrics")
			So(e, ShouldBeNil)
			defer res.Body.Close()
			So(res.StatusCode, ShouldEqual, http.StatusOK)
			b, _ := io.ReadAll(res.Body)
			So(string(b), ShouldContainSubstring, "gamevisor_operation_duration_seconds")
			So(string(b), ShouldContainSubstring, "gamevisor_server_running")
		})
	})

	Convey("Without Prometheus there are no metrics", t, func() {
		m := testManager(t)
		defer m.Shutdown()
		srv := httptest.NewServer(NewHandler(m))
		defer srv.Close()
		res, e := http.Get(srv.URL + "/metrics")
		So(e, ShouldBeNil)
		res.Body.Close()
		So(res.StatusCode, ShouldEqual, http.StatusNotFound)
	})
}
