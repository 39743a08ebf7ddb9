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

type JobsPanel struct {
	text *views.TextArea

	Panel
}

func NewJobsPanel(app *App) *JobsPanel {
	p := &JobsPanel{}

	p.Panel.Init(app)
	p.SetTitle("Scheduled Jobs")
	p.SetKeys([]string{"[ESC] Main", "[H] Help"})

	p.text = views.NewTextArea()
	p.text.EnableCursor(false)
	p.text.SetStyle(StyleNormal)
	p.SetContent(p.text)

	return p
}

func (p *JobsPanel) Draw() {
	p.update()
	p.Panel.Draw()
}

func (p *JobsPanel) HandleEvent(ev tcell.Event) bool {
	return p.handleCommon(ev)
}

func (p *JobsPanel) update() {
	jobs, err := p.app.GetJobs()
	if err != nil {
		p.SetStatus(fmt.Sprintf("Cannot load jobs: %v", err))
		p.SetError()
		p.text.SetLines([]string{""})
		return
	}
	if len(jobs) == 0 {
		p.SetStatus("No jobs scheduled")
		p.SetWarn()
		p.text.SetLines([]string{""})
		return
	}
	p.SetStatus(fmt.Sprintf("%d jobs", len(jobs)))
	p.SetNormal()
	lines := make([]string, 0, len(jobs))
	for _, j := range jobs {
		lines = append(lines, util.FormatJob(j))
	}
	p.text.SetLines(lines)
}
