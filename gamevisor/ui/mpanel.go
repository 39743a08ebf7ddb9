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
	"github.com/gdamore/gamevisor/rest"
)

var (
	StyleNormal = tcell.StyleDefault.
			Foreground(tcell.ColorSilver).
			Background(tcell.ColorBlack)
	StyleGood = tcell.StyleDefault.
			Foreground(tcell.ColorGreen).
			Background(tcell.ColorBlack)
	StyleWarn = tcell.StyleDefault.
			Foreground(tcell.ColorYellow).
			Background(tcell.ColorBlack)
	StyleError = tcell.StyleDefault.
			Foreground(tcell.ColorMaroon).
			Background(tcell.ColorBlack)
)

// MainPanel shows the state of the instance, and takes the keys that
// start, stop, restart and update it.
type MainPanel struct {
	content *views.CellView
	info    *rest.InstanceInfo
	width   int
	cury    int
	lines   []string
	styles  []tcell.Style

	Panel
}

// mainModel provides the model for a CellView.
type mainModel struct {
	m *MainPanel
}

func NewMainPanel(app *App) *MainPanel {
	m := &MainPanel{}

	m.Panel.Init(app)
	m.content = views.NewCellView()
	m.SetContent(m.content)

	m.content.SetModel(&mainModel{m})
	m.content.SetStyle(StyleNormal)

	m.SetTitle("Instance")
	m.SetKeys([]string{"[Q] Quit"})

	return m
}

func (m *MainPanel) Draw() {
	m.update()
	m.Panel.Draw()
}

func (m *MainPanel) HandleEvent(ev tcell.Event) bool {
	app := m.App()
	info := m.info
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyF1:
			app.ShowHelp()
			return true
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'Q', 'q':
				app.Quit()
				return true
			case 'H', 'h':
				app.ShowHelp()
				return true
			case 'L', 'l':
				app.ShowLog()
				return true
			case 'J', 'j':
				app.ShowJobs()
				return true
			case 'S', 's':
				if info != nil && !info.Running {
					app.Do("start")
					return true
				}
			case 'T', 't':
				if info != nil && info.Running {
					app.Do("stop")
					return true
				}
			case 'R', 'r':
				if info != nil {
					app.Do("restart")
					return true
				}
			case 'U', 'u':
				if info != nil {
					app.Do("update")
					return true
				}
			}
		}
	}
	return m.Panel.HandleEvent(ev)
}

func (model *mainModel) GetCell(x, y int) (rune, tcell.Style, []rune, int) {
	m := model.m
	if y < 0 || y >= len(m.lines) {
		return ' ', StyleNormal, nil, 1
	}
	ch := ' '
	if x >= 0 && x < len(m.lines[y]) {
		ch = rune(m.lines[y][x])
	}
	return ch, m.styles[y], nil, 1
}

func (model *mainModel) GetBounds() (int, int) {
	m := model.m
	return m.width, len(m.lines)
}

func (model *mainModel) GetCursor() (int, int, bool, bool) {
	return 0, model.m.cury, false, false
}

func (model *mainModel) MoveCursor(offx, offy int) {
	model.SetCursor(0, model.m.cury+offy)
}

func (model *mainModel) SetCursor(_, y int) {
	m := model.m
	if y > len(m.lines)-1 {
		y = len(m.lines) - 1
	}
	if y < 0 {
		y = 0
	}
	m.cury = y
}

func (m *MainPanel) add(style tcell.Style, label string, format string, v ...interface{}) {
	line := fmt.Sprintf("%-12s %s", label+":", fmt.Sprintf(format, v...))
	if len(line) > m.width {
		m.width = len(line)
	}
	m.lines = append(m.lines, line)
	m.styles = append(m.styles, style)
}

// update is called to update content, e.g. in response to Draw().  It
// runs on the application goroutine.
func (m *MainPanel) update() {
	info, err := m.App().GetInstance()
	m.info = info
	m.lines = m.lines[:0]
	m.styles = m.styles[:0]
	m.width = 0

	words := []string{"[Q] Quit", "[H] Help", "[L] Log", "[J] Jobs"}

	if info == nil {
		m.SetTitle("Instance")
		if err != nil {
			m.SetError()
			m.SetStatus(fmt.Sprintf("Cannot load instance: %v", err))
		} else {
			m.SetNormal()
			m.SetStatus("Loading ...")
		}
		m.SetKeys(words)
		return
	}

	m.SetTitle(info.Name)
	state := util.Status(info)
	style := StyleWarn
	switch state {
	case "running":
		style = StyleGood
		state = fmt.Sprintf("running (pid %d)", info.Pid)
	case "failed":
		style = StyleError
	}

	m.add(StyleNormal, "Name", "%s", info.Name)
	m.add(StyleNormal, "App ID", "%d", info.AppID)
	m.add(StyleNormal, "Compat", "%s", info.Compat)
	m.add(StyleNormal, "Directory", "%s", info.WorkingDir)
	m.add(style, "State", "%s", state)
	m.add(StyleNormal, "Since", "%s", util.FormatDuration(util.Since(info.TimeStamp)))
	m.add(StyleNormal, "Status", "%s", info.Status)
	if info.Monitoring {
		m.add(StyleGood, "Monitoring", "yes")
	} else {
		m.add(StyleWarn, "Monitoring", "no")
	}
	if info.LastError != "" {
		m.add(StyleError, "Last error", "%s", info.LastError)
	}
	m.add(StyleNormal, "Daemon up", "%s", util.FormatDuration(util.Since(info.CreateTime)))

	msg, busy, opErr := m.App().GetOperation()
	switch {
	case err != nil:
		m.SetError()
		m.SetStatus(fmt.Sprintf("Connection lost: %v", err))
	case opErr != nil:
		m.SetError()
		m.SetStatus(msg)
	case busy:
		m.SetWarn()
		m.SetStatus(msg + " ...")
	case info.Running:
		m.SetGood()
		m.SetStatus(msg)
	default:
		m.SetWarn()
		m.SetStatus(msg)
	}

	if !busy {
		if info.Running {
			words = append(words, "[T] Stop", "[R] Restart")
		} else {
			words = append(words, "[S] Start")
		}
		words = append(words, "[U] Update")
	}
	m.SetKeys(words)
}
