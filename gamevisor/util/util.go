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

// Package util is used for internal implementation bits in the CLI/UI.
package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/gamevisor/rest"
)

// Status is a one word summary of the instance state.
func Status(i *rest.InstanceInfo) string {
	if i.Running {
		return "running"
	}
	if i.LastError != "" {
		return "failed"
	}
	return "stopped"
}

func FormatDuration(d time.Duration) string {

	sec := int((d % time.Minute) / time.Second)
	min := int((d % time.Hour) / time.Minute)
	hour := int(d / time.Hour)

	return fmt.Sprintf("%d:%02d:%02d", hour, min, sec)
}

// Since is the time elapsed from t, truncated to seconds.
func Since(t time.Time) time.Duration {
	d := time.Since(t)
	if d < 0 {
		return 0
	}
	return d - d%time.Second
}

// FormatRecord renders a log record on one line.
func FormatRecord(r rest.LogRecord) string {
	return fmt.Sprintf("%s %-9s %-5s %s", r.Time.Format(time.StampMilli),
		r.Source, strings.ToUpper(r.Level), r.Text)
}

// FormatJob renders a scheduled job on one line.  Jobs that have not
// run show a dash for the last run.
func FormatJob(j rest.JobInfo) string {
	last := "-"
	if !j.LastRun.IsZero() {
		last = j.LastRun.Format(time.DateTime)
	}
	next := "-"
	if !j.Next.IsZero() {
		next = j.Next.Format(time.DateTime)
	}
	return fmt.Sprintf("%-20s %-16s next %s  last %s  runs %d",
		j.Name, j.Expr, next, last, j.Runs)
}
