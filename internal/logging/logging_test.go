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

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) []map[string]any {
	var rv []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		rv = append(rv, m)
	}
	return rv
}

func TestExtraWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", false, &buf)
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())

	logger.Info().Str("op", "start").Msg("Started")
	events := decode(t, &buf)
	require.Len(t, events, 1)
	assert.Equal(t, "info", events[0]["level"])
	assert.Equal(t, "Started", events[0]["message"])
	assert.Equal(t, "start", events[0]["op"])
	assert.Contains(t, events[0], "time")
}

func TestLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", false, &buf)
	logger.Info().Msg("quiet")
	logger.Warn().Msg("loud")
	events := decode(t, &buf)
	require.Len(t, events, 1)
	assert.Equal(t, "loud", events[0]["message"])

	assert.Equal(t, zerolog.InfoLevel, New("", false).GetLevel())
}

func TestUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("chatty", false, &buf)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	events := decode(t, &buf)
	require.Len(t, events, 1)
	assert.Equal(t, "warn", events[0]["level"])
	assert.Equal(t, "chatty", events[0]["requested"])
	assert.Equal(t, "Unknown log level, using info", events[0]["message"])
}
