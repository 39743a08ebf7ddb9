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

// Package logging builds the zerolog loggers used by the commands.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing JSON to stderr, or human readable text if
// pretty is set.  Every event is also written, as JSON, to each of extra.
// An unknown level falls back to info.
func New(level string, pretty bool, extra ...io.Writer) zerolog.Logger {
	lvl, e := zerolog.ParseLevel(level)
	if e != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	if len(extra) != 0 {
		out = zerolog.MultiLevelWriter(append([]io.Writer{out}, extra...)...)
	}
	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	if e != nil {
		logger.Warn().Str("requested", level).Msg("Unknown log level, using info")
	}
	return logger
}
