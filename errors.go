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
	"errors"
	"fmt"
)

var (
	ErrEmptyCommand      = errors.New("Instance command is empty")
	ErrInvalidPID        = errors.New("PID record does not hold a positive integer")
	ErrProcessNotFound   = errors.New("No running process matches the server executable")
	ErrNoCompatLayer     = errors.New("No suitable compatibility layer found")
	ErrBuildIDNotFound   = errors.New("No buildid found")
	ErrNotRunning        = errors.New("Server is not running")
	ErrUnknownOperation  = errors.New("Unknown instance operation")
	ErrBadCompatMode     = errors.New("Bad compatibility mode")
	ErrInvalidWebhookURL = errors.New("Invalid webhook URL")
)

// Kind classifies an Error.
type Kind int

const (
	KindUnknown Kind = iota
	KindInstall
	KindUpdate
	KindProcess
	KindConfig
	KindParse
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindInstall:
		return "install"
	case KindUpdate:
		return "update"
	case KindProcess:
		return "process"
	case KindConfig:
		return "config"
	case KindParse:
		return "parse"
	case KindIO:
		return "io"
	}
	return "unknown"
}

// Error is returned by every Instance operation.  Op names the operation
// that failed (e.g. "stop"), and Err carries the underlying cause, which can
// be inspected with errors.Is and errors.As.  ExitStatus is only meaningful
// for KindInstall and KindUpdate, where it holds the SteamCMD exit code.
type Error struct {
	Kind       Kind
	Op         string
	Err        error
	ExitStatus int
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Kind == KindInstall || e.Kind == KindUpdate {
		if e.ExitStatus != 0 {
			msg = fmt.Sprintf("%s (exit status %d)", msg, e.ExitStatus)
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func wrapf(err error, format string, v ...interface{}) error {
	return fmt.Errorf("%w: %s", err, fmt.Sprintf(format, v...))
}
