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
	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"
)

type HelpPanel struct {
	text *views.TextArea

	Panel
}

func NewHelpPanel(app *App) *HelpPanel {
	h := &HelpPanel{}

	h.Panel.Init(app)
	h.SetTitle("Help")
	h.SetKeys([]string{"[ESC] Main"})

	h.text = views.NewTextArea()
	h.text.EnableCursor(false)
	h.text.SetStyle(StyleNormal)
	h.text.SetLines([]string{
		"Supported keys (not all keys available in all contexts)",
		"",
		"  <ESC>          : return to main screen",
		"  <CTRL-C>       : quit",
		"  <CTRL-L>       : refresh the screen",
		"  <H>            : show this help",
		"  <UP>, <DOWN>   : scroll",
		"  <S>            : start the server",
		"  <T>            : stop the server",
		"  <R>            : restart the server",
		"  <U>            : update the server, if a new build is out",
		"  <L>            : view the log",
		"  <J>            : view the scheduled jobs",
		"  <C>            : clear the log (log view)",
		"",
		"This program is distributed under the Apache 2.0 License",
		"Copyright 2026 The Gamevisor Authors",
	})
	h.SetContent(h.text)

	return h
}

func (h *HelpPanel) HandleEvent(ev tcell.Event) bool {
	return h.handleCommon(ev)
}
