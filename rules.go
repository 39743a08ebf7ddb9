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
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultStopRanking is the ranking of the catch-all rule.  Rules added
// without a ranking are placed below it, in registration order.
const DefaultStopRanking = 99999

// Matcher decides whether a rule applies to a log line.
type Matcher func(line string) bool

// Action is run for each line a rule matches.
type Action func(line string)

// Rule pairs a Matcher with an Action.  Rules are evaluated in ascending
// Ranking order.  If Stop is set, a matching rule ends evaluation for the
// line once its own Action has run.
type Rule struct {
	Name    string
	Match   Matcher
	Action  Action
	Ranking int
	Stop    bool

	seq int
}

// RuleSet is the set of rules applied by one LogMonitor.  Rules may be added
// while lines are being evaluated; each line sees a consistent snapshot.
type RuleSet struct {
	rules []Rule
	seq   int
	mx    sync.RWMutex
}

func NewRuleSet() *RuleSet {
	return &RuleSet{}
}

// Add registers a rule.  If ranking is nil the rule is ranked by its
// registration position, so earlier rules are evaluated first.
func (rs *RuleSet) Add(match Matcher, action Action, stop bool, ranking *int) Rule {
	return rs.AddRule(Rule{Match: match, Action: action, Stop: stop}, ranking)
}

// AddRule registers r, ignoring r.Ranking when ranking is nil.
func (rs *RuleSet) AddRule(r Rule, ranking *int) Rule {
	rs.mx.Lock()
	defer rs.mx.Unlock()
	if ranking != nil {
		r.Ranking = *ranking
	} else {
		r.Ranking = len(rs.rules) - DefaultStopRanking
	}
	if r.Match == nil {
		r.Match = Always()
	}
	if r.Action == nil {
		r.Action = func(string) {}
	}
	rs.seq++
	r.seq = rs.seq
	if r.Name == "" {
		r.Name = "rule" + strconv.Itoa(r.seq)
	}
	rs.rules = append(rs.rules, r)
	return r
}

// Len returns the number of registered rules.
func (rs *RuleSet) Len() int {
	rs.mx.RLock()
	defer rs.mx.RUnlock()
	return len(rs.rules)
}

// Snapshot returns a copy of the rules sorted by ranking.  Rules with equal
// ranking keep their registration order.
func (rs *RuleSet) Snapshot() []Rule {
	rs.mx.RLock()
	rules := make([]Rule, len(rs.rules))
	copy(rules, rs.rules)
	rs.mx.RUnlock()

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Ranking != rules[j].Ranking {
			return rules[i].Ranking < rules[j].Ranking
		}
		return rules[i].seq < rules[j].seq
	})
	return rules
}

// Evaluate applies the rules to line and returns the rules that fired.
func (rs *RuleSet) Evaluate(line string) []Rule {
	var fired []Rule
	for _, r := range rs.Snapshot() {
		if !r.Match(line) {
			continue
		}
		r.Action(line)
		fired = append(fired, r)
		if r.Stop {
			break
		}
	}
	return fired
}

func Always() Matcher {
	return func(string) bool { return true }
}

func Contains(substr string) Matcher {
	return func(line string) bool { return strings.Contains(line, substr) }
}

func Regexp(re *regexp.Regexp) Matcher {
	return re.MatchString
}

// CatchAll returns the rule that fires when nothing more specific stopped
// the chain.
func CatchAll(action Action) Rule {
	return Rule{
		Name:    "default",
		Match:   Always(),
		Action:  action,
		Ranking: DefaultStopRanking,
		Stop:    true,
	}
}

// DefaultRuleSet logs every line of server output.  Lines containing
// WARNING or ERROR are logged at that level, and everything else at info.
// If sink is not nil, every line also goes to it.
func DefaultRuleSet(logger zerolog.Logger, sink func(level zerolog.Level, line string)) *RuleSet {
	emit := func(level zerolog.Level) Action {
		return func(line string) {
			logger.WithLevel(level).Msg(line)
			if sink != nil {
				sink(level, line)
			}
		}
	}
	rs := NewRuleSet()
	stop := DefaultStopRanking
	rs.AddRule(CatchAll(emit(zerolog.InfoLevel)), &stop)
	rs.AddRule(Rule{Name: "warning", Match: Contains("WARNING"),
		Action: emit(zerolog.WarnLevel), Stop: true}, nil)
	rs.AddRule(Rule{Name: "error", Match: Contains("ERROR"),
		Action: emit(zerolog.ErrorLevel), Stop: true}, nil)
	return rs
}
