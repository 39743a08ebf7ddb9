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

import "time"

// MetricsCollector receives the events worth counting.  Implementations
// must be safe for concurrent use.
type MetricsCollector interface {
	LineProcessed(source string)
	RuleFired(rule string)
	LogReopened(source string)
	OperationCompleted(op Operation, d time.Duration, err error)
	JobRun(job string, err error)
	ServerRunning(running bool)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) LineProcessed(string)                               {}
func (NoopMetrics) RuleFired(string)                                   {}
func (NoopMetrics) LogReopened(string)                                 {}
func (NoopMetrics) OperationCompleted(Operation, time.Duration, error) {}
func (NoopMetrics) JobRun(string, error)                               {}
func (NoopMetrics) ServerRunning(bool)                                 {}
