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
	"time"

	"github.com/gdamore/gamevisor"
)

const (
	mimeJson = "application/json; charset=UTF-8"

	// PollEtagHeader carries the Etag a client wants to wait on, and
	// PollTimeHeader the number of seconds it is willing to wait for the
	// resource to change from it.
	PollEtagHeader = "X-Gamevisor-Poll-Etag"
	PollTimeHeader = "X-Gamevisor-Poll-Time"

	// MaxPollTime caps how long the server holds a long poll.
	MaxPollTime = 300
)

var ok struct{}

type InstanceInfo struct {
	Name       string               `json:"name"`
	AppID      uint32               `json:"appId"`
	Compat     gamevisor.CompatMode `json:"compat"`
	WorkingDir string               `json:"workingDir"`
	Running    bool                 `json:"running"`
	Pid        int                  `json:"pid,omitempty"`
	Monitoring bool                 `json:"monitoring"`
	Status     string               `json:"status"`
	TimeStamp  time.Time            `json:"tstamp"`
	LastError  string               `json:"lastError,omitempty"`
	CreateTime time.Time            `json:"created"`

	etag string
}

// Etag is the version of the instance state this info describes.
func (i *InstanceInfo) Etag() string {
	return i.etag
}

type UpdateInfo struct {
	CurrentBuildID  string `json:"currentBuildId"`
	LatestBuildID   string `json:"latestBuildId"`
	UpdateAvailable bool   `json:"updateAvailable"`
}

type LogRecord = gamevisor.LogRecord

type JobInfo = gamevisor.JobInfo

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}
