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
)

// EventRule turns server log lines into Events.  Pattern is a regular
// expression; a capture group named "player" (or else the first group)
// fills Event.Player.
type EventRule struct {
	Name    string
	Pattern string
	Event   EventKind
	Message string
	Stop    bool
	Ranking *int
}

// PlayerName returns the player captured by re in line, if any.
func PlayerName(re *regexp.Regexp, line string) string {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	if i := re.SubexpIndex("player"); i > 0 {
		return m[i]
	}
	if len(m) > 1 {
		return m[1]
	}
	return ""
}

// Compile returns a Rule that passes the matching Event to emit.
func (er EventRule) Compile(emit func(Event)) (Rule, error) {
	re, e := regexp.Compile(er.Pattern)
	if e != nil {
		return Rule{}, newError(KindConfig, "rule", wrapf(e, "%s", er.Name))
	}
	kind := er.Event
	if kind == "" {
		kind = EventCustom
	}
	return Rule{
		Name:  er.Name,
		Match: Regexp(re),
		Action: func(line string) {
			ev := Event{
				Kind:    kind,
				Player:  PlayerName(re, line),
				Message: er.Message,
			}
			if kind == EventCustom && ev.Message == "" {
				ev.Message = line
			}
			emit(ev)
		},
		Stop: er.Stop,
	}, nil
}
