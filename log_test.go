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
	"testing"
	"time"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLog(t *testing.T) {
	Convey("Given a small log", t, func() {
		l := NewLog(3)
		_, start := l.GetRecords(0)

		Convey("Multi-line text becomes several records", func() {
			l.Append(SourceServer, "info", "one\ntwo\n")
			recs, id := l.GetRecords(start)
			So(id, ShouldNotEqual, start)
			So(len(recs), ShouldEqual, 2)
			So(recs[0].Text, ShouldEqual, "one")
			So(recs[1].Text, ShouldEqual, "two")
			So(recs[1].ID, ShouldBeGreaterThan, recs[0].ID)
			So(recs[0].Source, ShouldEqual, SourceServer)

			Convey("An unchanged log returns nothing", func() {
				recs, same := l.GetRecords(id)
				So(recs, ShouldBeNil)
				So(same, ShouldEqual, id)
			})
		})

		Convey("Old records fall off", func() {
			for _, s := range []string{"a", "b", "c", "d", "e"} {
				l.Append(SourceSupervisor, "", s)
			}
			recs, _ := l.GetRecords(0)
			So(len(recs), ShouldEqual, 3)
			So(recs[0].Text, ShouldEqual, "c")
			So(recs[2].Text, ShouldEqual, "e")
		})

		Convey("Clear empties the log and changes the id", func() {
			l.Append(SourceSupervisor, "", "x")
			_, id := l.GetRecords(0)
			l.Clear()
			recs, nid := l.GetRecords(0)
			So(recs, ShouldBeEmpty)
			So(nid, ShouldNotEqual, id)
		})

		Convey("zerolog output is parsed", func() {
			logger := zerolog.New(l).With().Timestamp().Logger()
			logger.Warn().Int("pid", 7).Str("a", "b").Msg("hello")
			logger.Info().Str("source", SourceServer).Str("instance", "x").Msg("Server listening")

			recs, _ := l.GetRecords(0)
			So(len(recs), ShouldEqual, 2)
			So(recs[0].Source, ShouldEqual, SourceSupervisor)
			So(recs[0].Level, ShouldEqual, "warn")
			So(recs[0].Text, ShouldEqual, "hello a=b pid=7")
			So(recs[1].Source, ShouldEqual, SourceServer)
			So(recs[1].Level, ShouldEqual, "info")
			So(recs[1].Text, ShouldEqual, "Server listening")
		})

		Convey("Non-JSON writes are kept verbatim", func() {
			l.Write([]byte("not json\n"))
			recs, _ := l.GetRecords(0)
			So(recs[0].Text, ShouldEqual, "not json")
		})

		Convey("Watch wakes on append", func() {
			go func() {
				time.Sleep(20 * time.Millisecond)
				l.Append(SourceSupervisor, "", "wake")
			}()
			id := l.Watch(start, 5*time.Second)
			So(id, ShouldNotEqual, start)
		})

		Convey("Watch times out", func() {
			So(l.Watch(start, 10*time.Millisecond), ShouldEqual, start)
			So(l.Watch(start, 0), ShouldEqual, start)
		})
	})
}
