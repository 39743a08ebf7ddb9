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
	"sort"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/xrash/smetrics"
)

// MatchThreshold is the Jaro-Winkler similarity a process name must exceed
// to be treated as the server during fallback discovery.
const MatchThreshold = 0.75

// ProcInfo is one entry of the OS process table.
type ProcInfo struct {
	Pid  int
	Name string
}

// ProcessTable is the view of the operating system the supervisor needs.
type ProcessTable interface {
	Processes() ([]ProcInfo, error)
	Interrupt(pid int) error
	Exists(pid int) bool
}

// SystemProcessTable returns the ProcessTable of the running host.
func SystemProcessTable() ProcessTable {
	return gopsutilTable{}
}

type gopsutilTable struct{}

func (gopsutilTable) Processes() ([]ProcInfo, error) {
	procs, e := process.Processes()
	if e != nil {
		return nil, e
	}
	rv := make([]ProcInfo, 0, len(procs))
	for _, p := range procs {
		name, e := p.Name()
		if e != nil {
			// Processes come and go while we scan.
			continue
		}
		rv = append(rv, ProcInfo{Pid: int(p.Pid), Name: name})
	}
	return rv, nil
}

func (gopsutilTable) Interrupt(pid int) error {
	p, e := process.NewProcess(int32(pid))
	if e != nil {
		return e
	}
	return p.SendSignal(syscall.SIGINT)
}

func (gopsutilTable) Exists(pid int) bool {
	ok, e := process.PidExists(int32(pid))
	return e == nil && ok
}

// Match is a process that resembles the server executable.
type Match struct {
	ProcInfo
	Score float64
}

// Similarity is the Jaro-Winkler similarity of two names, ignoring case.
func Similarity(a, b string) float64 {
	return smetrics.JaroWinkler(strings.ToLower(a), strings.ToLower(b), 0.7, 4)
}

// FindProcesses returns the processes whose name scores above
// MatchThreshold against executable, best match first.
func FindProcesses(table ProcessTable, executable string) ([]Match, error) {
	procs, e := table.Processes()
	if e != nil {
		return nil, e
	}
	rv := []Match{}
	for _, p := range procs {
		if score := Similarity(executable, p.Name); score > MatchThreshold {
			rv = append(rv, Match{ProcInfo: p, Score: score})
		}
	}
	sort.SliceStable(rv, func(i, j int) bool {
		return rv[i].Score > rv[j].Score
	})
	return rv, nil
}
