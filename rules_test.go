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
	"bytes"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRuleSet(t *testing.T) {
	Convey("Given a rule set", t, func() {
		rs := NewRuleSet()
		var ran []string
		record := func(name string) Action {
			return func(string) { ran = append(ran, name) }
		}

		Convey("Unranked rules run in registration order", func() {
			rs.AddRule(Rule{Name: "A", Action: record("A")}, nil)
			rs.AddRule(Rule{Name: "B", Action: record("B")}, nil)
			fired := rs.Evaluate("anything")
			So(ran, ShouldResemble, []string{"A", "B"})
			So(len(fired), ShouldEqual, 2)
		})

		Convey("A stop rule ends the chain after running", func() {
			rs.AddRule(Rule{Name: "A", Action: record("A")}, nil)
			rs.AddRule(Rule{Name: "B", Action: record("B"), Stop: true}, nil)
			rs.AddRule(Rule{Name: "C", Action: record("C")}, nil)
			fired := rs.Evaluate("line")
			So(ran, ShouldResemble, []string{"A", "B"})
			So(fired[len(fired)-1].Name, ShouldEqual, "B")
		})

		Convey("Non matching stop rules do not stop", func() {
			rs.AddRule(Rule{Name: "A", Match: Contains("x"), Action: record("A"), Stop: true}, nil)
			rs.AddRule(Rule{Name: "B", Action: record("B")}, nil)
			rs.Evaluate("no match here")
			So(ran, ShouldResemble, []string{"B"})
		})

		Convey("Explicit rankings order the chain", func() {
			ten, five := 10, 5
			rs.AddRule(Rule{Name: "late", Action: record("late")}, &ten)
			rs.AddRule(Rule{Name: "early", Action: record("early")}, &five)
			rs.AddRule(Rule{Name: "unranked", Action: record("unranked")}, nil)
			rs.Evaluate("line")
			So(ran, ShouldResemble, []string{"unranked", "early", "late"})
		})

		Convey("Equal rankings keep registration order", func() {
			one := 1
			rs.AddRule(Rule{Name: "first", Action: record("first")}, &one)
			rs.AddRule(Rule{Name: "second", Action: record("second")}, &one)
			rs.Evaluate("line")
			So(ran, ShouldResemble, []string{"first", "second"})
		})

		Convey("The catch-all only fires when nothing stopped", func() {
			stop := DefaultStopRanking
			rs.AddRule(CatchAll(record("default")), &stop)
			rs.AddRule(Rule{Name: "hit", Match: Contains("hit"), Action: record("hit"), Stop: true}, nil)
			rs.Evaluate("a hit")
			So(ran, ShouldResemble, []string{"hit"})
			ran = nil
			rs.Evaluate("a miss")
			So(ran, ShouldResemble, []string{"default"})
		})

		Convey("Missing parts get defaults", func() {
			r := rs.Add(nil, nil, false, nil)
			So(r.Name, ShouldEqual, "rule1")
			So(rs.Len(), ShouldEqual, 1)
			So(len(rs.Evaluate("x")), ShouldEqual, 1)
		})

		Convey("Regexp matchers", func() {
			rs.Add(Regexp(regexp.MustCompile(`^Player (\w+) joined$`)), record("re"), false, nil)
			rs.Evaluate("Player bob joined")
			rs.Evaluate("Player bob left")
			So(ran, ShouldResemble, []string{"re"})
		})
	})
}

func TestDefaultRuleSet(t *testing.T) {
	Convey("The default rules log by severity", t, func() {
		var buf bytes.Buffer
		type entry struct {
			level zerolog.Level
			line  string
		}
		var got []entry
		rs := DefaultRuleSet(zerolog.New(&buf), func(l zerolog.Level, line string) {
			got = append(got, entry{l, line})
		})

		rs.Evaluate("server ready")
		rs.Evaluate("WARNING: low memory")
		rs.Evaluate("ERROR: crashed")
		rs.Evaluate("ERROR and WARNING")

		So(got, ShouldResemble, []entry{
			{zerolog.InfoLevel, "server ready"},
			{zerolog.WarnLevel, "WARNING: low memory"},
			{zerolog.ErrorLevel, "ERROR: crashed"},
			{zerolog.WarnLevel, "ERROR and WARNING"},
		})
		So(buf.String(), ShouldContainSubstring, `"level":"warn"`)
		So(buf.String(), ShouldContainSubstring, `"message":"ERROR: crashed"`)
	})
}

func TestRuleSetConcurrency(t *testing.T) {
	Convey("Rules can be added while lines are evaluated", t, func() {
		rs := NewRuleSet()
		var runs atomic.Int64
		count := func(string) { runs.Add(1) }

		const adders, evaluators, per = 4, 4, 200
		var wg sync.WaitGroup
		bad := make(chan string, evaluators*per)
		for i := 0; i < adders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < per; j++ {
					rs.Add(Contains("line"), count, false, nil)
				}
			}()
		}
		for i := 0; i < evaluators; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < per; j++ {
					fired := rs.Evaluate("a line")
					for k, r := range fired {
						if r.Name == "" || r.Match == nil || r.Action == nil {
							bad <- "incomplete rule"
						}
						if k > 0 && fired[k-1].Ranking > r.Ranking {
							bad <- "out of order"
						}
					}
				}
			}()
		}
		wg.Wait()
		close(bad)

		problems := []string{}
		for p := range bad {
			problems = append(problems, p)
		}
		So(problems, ShouldBeEmpty)
		So(rs.Len(), ShouldEqual, adders*per)

		// Every rule is seen by a line evaluated afterwards.
		before := runs.Load()
		So(len(rs.Evaluate("last line")), ShouldEqual, adders*per)
		So(runs.Load()-before, ShouldEqual, adders*per)
	})
}
