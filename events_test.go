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
	"regexp"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPlayerName(t *testing.T) {
	Convey("Player names are captured", t, func() {
		line := "[Session] 'Bob' logged in with Permissions: 0x1"
		So(PlayerName(regexp.MustCompile(`'(\w+)' logged in`), line), ShouldEqual, "Bob")
		So(PlayerName(regexp.MustCompile(`\[(\w+)\] '(?P<player>\w+)'`), line), ShouldEqual, "Bob")
		So(PlayerName(regexp.MustCompile(`logged in`), line), ShouldEqual, "")
		So(PlayerName(regexp.MustCompile(`logged out`), line), ShouldEqual, "")
	})
}

func TestEventRule(t *testing.T) {
	Convey("Given an event sink", t, func() {
		var events []Event
		emit := func(ev Event) { events = append(events, ev) }

		Convey("A join rule emits the player", func() {
			r, e := EventRule{
				Name:    "joined",
				Pattern: `Player (\S+) connected`,
				Event:   EventPlayerJoined,
			}.Compile(emit)
			So(e, ShouldBeNil)
			So(r.Name, ShouldEqual, "joined")
			So(r.Match("Player alice connected"), ShouldBeTrue)
			So(r.Match("Player alice left"), ShouldBeFalse)
			r.Action("Player alice connected")
			So(events, ShouldResemble, []Event{{Kind: EventPlayerJoined, Player: "alice"}})
		})

		Convey("Custom events default to the line", func() {
			r, e := EventRule{Pattern: `crash`}.Compile(emit)
			So(e, ShouldBeNil)
			r.Action("server crash detected")
			So(events[0].Kind, ShouldEqual, EventCustom)
			So(events[0].Message, ShouldEqual, "server crash detected")
		})

		Convey("A bad pattern is a config error", func() {
			_, e := EventRule{Name: "bad", Pattern: `(`}.Compile(emit)
			So(IsKind(e, KindConfig), ShouldBeTrue)
		})
	})
}

func TestEvents(t *testing.T) {
	Convey("Event kinds parse", t, func() {
		k, e := ParseEventKind("joined")
		So(e, ShouldBeNil)
		So(k, ShouldEqual, EventPlayerJoined)
		k, e = ParseEventKind(" Player_Left ")
		So(e, ShouldBeNil)
		So(k, ShouldEqual, EventPlayerLeft)
		_, e = ParseEventKind("exploded")
		So(e, ShouldNotBeNil)
	})

	Convey("Events describe themselves", t, func() {
		ev := Event{Kind: EventPlayerJoined, Player: "Bob"}
		So(ev.Title("Valhalla"), ShouldEqual, "Valhalla: Player Joined")
		So(ev.Description(), ShouldEqual, "Player Bob has joined the adventure!")
		So(Event{Kind: EventStarted}.Description(), ShouldEqual, "The server has started successfully.")
		So(Event{Kind: EventCustom, Message: "hi"}.Title("S"), ShouldEqual, "S")
		So(Event{Kind: EventCustom, Message: "hi"}.Description(), ShouldEqual, "hi")
	})
}
