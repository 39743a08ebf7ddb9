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

// Package gamevisor supervises a single dedicated game server installed
// with SteamCMD.
//
// An Instance ties together the pieces needed to run one server: its
// configuration, the compatibility layer chosen for its executable
// (native, Wine or Proton), a Supervisor that starts the server in the
// background and stops it again later, even from another process, and
// the update check that compares the installed build with the latest
// one SteamCMD knows about.
//
// A Manager adds what a long running daemon needs on top of that: a
// LogMonitor tailing the server's output through a RuleSet, a Scheduler
// for the auto-update and restart jobs, webhook notifications, an
// in-memory Log and a status that clients can long poll through the
// rest package.
package gamevisor
