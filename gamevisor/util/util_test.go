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

package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gdamore/gamevisor/rest"
)

func TestStatus(t *testing.T) {
	assert.Equal(t, "running", Status(&rest.InstanceInfo{Running: true}))
	assert.Equal(t, "running", Status(&rest.InstanceInfo{Running: true, LastError: "x"}))
	assert.Equal(t, "failed", Status(&rest.InstanceInfo{LastError: "x"}))
	assert.Equal(t, "stopped", Status(&rest.InstanceInfo{}))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:00:00", FormatDuration(0))
	assert.Equal(t, "0:01:05", FormatDuration(65*time.Second))
	assert.Equal(t, "26:03:04", FormatDuration(26*time.Hour+3*time.Minute+4*time.Second))
}

func TestSince(t *testing.T) {
	assert.Equal(t, time.Duration(0), Since(time.Now().Add(time.Hour)))
	d := Since(time.Now().Add(-90 * time.Second))
	assert.Equal(t, time.Duration(0), d%time.Second)
	assert.GreaterOrEqual(t, d, 90*time.Second)
}

func TestFormatRecord(t *testing.T) {
	r := rest.LogRecord{
		Time:   time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
		Source: "server",
		Level:  "warn",
		Text:   "disk low",
	}
	assert.Equal(t, "Mar  1 12:30:00.000 server    WARN  disk low", FormatRecord(r))
}

func TestFormatJob(t *testing.T) {
	j := rest.JobInfo{
		Name: "auto-update",
		Expr: "0 0 3 * * *",
		Next: time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC),
	}
	s := FormatJob(j)
	assert.Contains(t, s, "next 2026-03-02 03:00:00")
	assert.Contains(t, s, "last -")
	assert.Contains(t, s, "runs 0")
}
