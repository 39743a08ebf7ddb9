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
	"os"
	"regexp"
)

// DefaultAppInfoPath is where the Steam client caches app info, including
// the latest published build id.
const DefaultAppInfoPath = "/home/steam/Steam/appcache/appinfo.vdf"

var buildIDPattern = regexp.MustCompile(`"buildid"\s+"(\d+)"`)

// UpdateInfo compares the installed build with the latest one.
type UpdateInfo struct {
	CurrentBuildID string `json:"currentBuildId"`
	LatestBuildID  string `json:"latestBuildId"`
}

// UpdateAvailable is a plain string comparison of the two build ids.
// "0100" and "100" count as different builds.
func (u UpdateInfo) UpdateAvailable() bool {
	return u.CurrentBuildID != u.LatestBuildID
}

// ExtractBuildID returns the first buildid value in text.
func ExtractBuildID(text string) (string, error) {
	m := buildIDPattern.FindStringSubmatch(text)
	if m == nil {
		return "", ErrBuildIDNotFound
	}
	return m[1], nil
}

func readBuildID(path string) (string, error) {
	b, e := os.ReadFile(path)
	if e != nil {
		return "", newError(KindIO, "buildid", e)
	}
	id, e := ExtractBuildID(string(b))
	if e != nil {
		return "", newError(KindParse, "buildid", wrapf(e, "%s", path))
	}
	return id, nil
}

// ReadUpdateInfo reads the installed build id from the app manifest and
// the latest one from the version info cache.
func ReadUpdateInfo(manifestPath, versionInfoPath string) (UpdateInfo, error) {
	var info UpdateInfo
	var e error
	if info.CurrentBuildID, e = readBuildID(manifestPath); e != nil {
		return UpdateInfo{}, e
	}
	if info.LatestBuildID, e = readBuildID(versionInfoPath); e != nil {
		return UpdateInfo{}, e
	}
	return info, nil
}
