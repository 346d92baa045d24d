package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"resource-downloader/planner"
	"resource-downloader/progress"
	"resource-downloader/ui"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type progressMsg progress.Event

type planMsg planner.Plan

type summaryMsg updateSummary

type workErrMsg struct{ err error }

// UpdateModel controls the UI for the update command.
type UpdateModel struct {
	spinner spinner.Model

	status    string
	phases    map[string]progress.Phase
	versions  map[string]string
	completed []string
	errors    []string
	conflicts []string
	summary   string
	err       error
	done      bool
}

func initialUpdateModel() UpdateModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return UpdateModel{
		spinner:  s,
		status:   "Resolving versions...",
		phases:   make(map[string]progress.Phase),
		versions: make(map[string]string),
	}
}

func (m UpdateModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m UpdateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.done {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		m.phases[msg.ProjectID] = msg.Phase
		if msg.Version != "" {
			m.versions[msg.ProjectID] = msg.Version
		}
		switch msg.Phase {
		case progress.Installed:
			m.completed = append(m.completed, fmt.Sprintf("%s %s", msg.ProjectID, msg.Version))
		case progress.Failed:
			m.errors = append(m.errors, fmt.Sprintf("%s: %v", msg.ProjectID, msg.Err))
		}

	case planMsg:
		plan := planner.Plan(msg)
		for _, e := range plan.Entries {
			switch e.Action {
			case planner.Conflict, planner.Failed:
				m.conflicts = append(m.conflicts, fmt.Sprintf("%s %s: %s", ui.Action(e.Action, 0), e.ProjectID, e.Reason))
			}
		}
		m.status = fmt.Sprintf("Downloading %d of %d projects...",
			plan.Count(planner.Install)+plan.Count(planner.Update), len(plan.Entries))

	case summaryMsg:
		m.summary = updateSummary(msg).String()
		m.status = "Finished"
		m.done = true
		return m, tea.Quit

	case workErrMsg:
		m.err = msg.err
		m.status = "Failed"
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

// active lists projects between resolving and a final phase, sorted.
func (m UpdateModel) active() []string {
	var out []string
	for id, phase := range m.phases {
		if phase == progress.Downloading || phase == progress.Verifying {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (m UpdateModel) View() string {
	symbol := m.spinner.View()
	if m.done {
		symbol = ui.Check()
	}

	var s strings.Builder
	fmt.Fprintf(&s, "\n %s %s\n\n", symbol, m.status)

	if active := m.active(); len(active) > 0 {
		s.WriteString(ui.Bold.Render("In progress:") + "\n")
		for _, id := range active {
			fmt.Fprintf(&s, "  • %s %s %s\n", id, m.versions[id], ui.Phase(m.phases[id]))
		}
		s.WriteString("\n")
	}

	if len(m.conflicts) > 0 {
		s.WriteString(ui.Bold.Render("Needs attention:") + "\n")
		for _, c := range m.conflicts {
			fmt.Fprintf(&s, "  • %s\n", c)
		}
		s.WriteString("\n")
	}

	if len(m.errors) > 0 {
		s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("Errors:") + "\n")
		for _, e := range m.errors {
			fmt.Fprintf(&s, "  • %s\n", e)
		}
		s.WriteString("\n")
	}

	if len(m.completed) > 0 {
		s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("Completed:") + "\n")
		start := 0
		if len(m.completed) > 5 && !m.done {
			start = len(m.completed) - 5
		}
		for _, c := range m.completed[start:] {
			fmt.Fprintf(&s, "  • %s\n", c)
		}
		s.WriteString("\n")
	}

	if m.err != nil {
		fmt.Fprintf(&s, "%s %v\n", ui.Bold.Render("Error:"), m.err)
	}
	if m.done && m.summary != "" {
		s.WriteString(ui.Bold.Render(m.summary) + "\n")
	}
	return s.String()
}

// applyTUI runs planning and execution behind the interactive view.
func applyTUI(ctx context.Context, a *app, desired []planner.Desired) (updateSummary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(initialUpdateModel())
	sink := func(e progress.Event) { p.Send(progressMsg(e)) }

	var summary updateSummary
	var workErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		plan, err := planUpdate(ctx, a, desired, sink)
		if err != nil {
			workErr = err
			p.Send(workErrMsg{err})
			return
		}
		p.Send(planMsg(plan))
		summary = executePlan(ctx, a, plan, sink, nil)
		p.Send(summaryMsg(summary))
	}()

	_, err := p.Run()
	// Quitting early cancels whatever has not committed yet.
	cancel()
	<-done
	if err != nil {
		return summary, err
	}
	if workErr != nil {
		return summary, workErr
	}
	return summary, summary.err()
}
