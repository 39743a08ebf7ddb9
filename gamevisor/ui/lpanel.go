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

package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/gdamore/gamevisor/gamevisor/util"
)

// LogPanel shows the daemon's recent log, which carries the server's
// own output as well.
type LogPanel struct {
	text *views.TextArea

	Panel
}

func NewLogPanel(app *App) *LogPanel {
	p := &LogPanel{}

	p.Panel.Init(app)
	p.SetTitle("Log")
	p.SetKeys([]string{"[ESC] Main", "[C] Clear", "[H] Help"})

	p.text = views.NewTextArea()
	p.text.EnableCursor(false)
	p.text.SetStyle(StyleNormal)
	p.SetContent(p.text)

	return p
}

func (p *LogPanel) Draw() {
	p.update()
	p.Panel.Draw()
}

func (p *LogPanel) HandleEvent(ev tcell.Event) bool {
	if ev, isKey := ev.(*tcell.EventKey); isKey && ev.Key() == tcell.KeyRune {
		switch ev.Rune() {
		case 'C', 'c':
			p.app.ClearLog()
			return true
		}
	}
	return p.handleCommon(ev)
}

func (p *LogPanel) update() {
	info, err := p.app.GetLog()
	if info == nil {
		if err != nil {
			p.SetStatus(fmt.Sprintf("No data: %v", err))
			p.SetError()
		} else {
			p.SetStatus("Loading ...")
			p.SetNormal()
		}
		p.text.SetLines([]string{""})
		return
	}
	if err != nil {
		p.SetStatus(fmt.Sprintf("Stale: %v", err))
		p.SetWarn()
	} else {
		p.SetStatus(fmt.Sprintf("%d records", len(info.Records)))
		p.SetNormal()
	}

	lines := make([]string, 0, len(info.Records))
	for _, r := range info.Records {
		lines = append(lines, util.FormatRecord(r))
	}
	p.text.SetLines(lines)
}
