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
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	MaxLogRecords = 1000

	// SourceServer marks lines read from the server's output.
	SourceServer = "server"
	// SourceSupervisor marks our own log output.
	SourceSupervisor = "gamevisor"
)

type LogRecord struct {
	ID     int64     `json:"id,string"`
	Time   time.Time `json:"time"`
	Source string    `json:"source"`
	Level  string    `json:"level,omitempty"`
	Text   string    `json:"text"`
}

// Log is a bounded ring of recent records.  Its ID changes with every
// append, and can be used as an Etag.
type Log struct {
	records    []LogRecord
	numRecords int
	maxRecords int
	id         int64
	cvs        map[*sync.Cond]bool
	mx         sync.Mutex
}

func (log *Log) lock() {
	log.mx.Lock()
}

func (log *Log) unlock() {
	log.mx.Unlock()
}

// Append adds one record per line of text.
func (log *Log) Append(source, level, text string) {
	now := time.Now()
	text = strings.Trim(text, "\n")
	log.lock()
	for _, line := range strings.Split(text, "\n") {
		idx := log.numRecords % log.maxRecords
		log.id++
		log.records[idx] = LogRecord{
			ID:     log.id,
			Time:   now,
			Source: source,
			Level:  level,
			Text:   line,
		}
		// numRecords keeps counting past maxRecords; it is the
		// next write position, not the fill level.
		log.numRecords++
	}
	for cv := range log.cvs {
		cv.Broadcast()
	}
	log.unlock()
}

// Write lets the Log receive zerolog output.  JSON events are reduced to
// their message, with any other fields appended as key=value.  The
// "source" field, if present, becomes the record source.  Records of
// server output carry only the message.
func (log *Log) Write(b []byte) (int, error) {
	var ev map[string]interface{}
	if e := json.Unmarshal(b, &ev); e != nil {
		log.Append(SourceSupervisor, "", string(b))
		return len(b), nil
	}
	source := SourceSupervisor
	if s, ok := ev["source"].(string); ok && s != "" {
		source = s
	}
	level, _ := ev[zerolog.LevelFieldName].(string)
	msg, _ := ev[zerolog.MessageFieldName].(string)
	if source == SourceServer {
		// Server output is kept as the server wrote it.
		log.Append(source, level, msg)
		return len(b), nil
	}
	for _, k := range []string{"source", zerolog.LevelFieldName,
		zerolog.MessageFieldName, zerolog.TimestampFieldName} {
		delete(ev, k)
	}
	keys := make([]string, 0, len(ev))
	for k := range ev {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, ev[k])
	}
	log.Append(source, level, sb.String())
	return len(b), nil
}

// Clear drops every record and changes the log ID.
func (log *Log) Clear() {
	log.lock()
	log.numRecords = 0
	// IDs stay unique as long as we never append faster than once
	// per nanosecond.
	log.id = time.Now().UnixNano()
	for cv := range log.cvs {
		cv.Broadcast()
	}
	log.unlock()
}

// GetRecords returns the stored records, oldest first, and an ID that
// identifies this state of the log.  If last is already the current ID,
// nil is returned without copying anything.
func (log *Log) GetRecords(last int64) ([]LogRecord, int64) {
	log.lock()
	defer log.unlock()
	if log.id == last {
		return nil, last
	}
	cnt := log.numRecords
	if cnt > log.maxRecords {
		cnt = log.maxRecords
	}
	recs := make([]LogRecord, 0, cnt)
	index := log.numRecords - cnt
	for j := 0; j < cnt; j++ {
		recs = append(recs, log.records[index%log.maxRecords])
		index++
	}
	return recs, log.id
}

// Watch waits until the log ID differs from last, or expire elapses, and
// returns the current ID.  An expire of zero just polls.
func (log *Log) Watch(last int64, expire time.Duration) int64 {
	expired := false
	var timer *time.Timer
	cv := sync.NewCond(&log.mx)
	if expire > 0 {
		timer = time.AfterFunc(expire, func() {
			log.lock()
			expired = true
			cv.Broadcast()
			log.unlock()
		})
	} else {
		expired = true
	}

	log.lock()
	log.cvs[cv] = true
	for log.id == last && !expired {
		cv.Wait()
	}
	delete(log.cvs, cv)
	last = log.id
	log.unlock()
	if timer != nil {
		timer.Stop()
	}
	return last
}

// NewLog returns a Log holding at most max records, or MaxLogRecords if
// max is not positive.
func NewLog(max int) *Log {
	if max <= 0 {
		max = MaxLogRecords
	}
	return &Log{
		records:    make([]LogRecord, max),
		maxRecords: max,
		id:         time.Now().UnixNano(),
		cvs:        make(map[*sync.Cond]bool),
	}
}
