package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/llehouerou/framesync/internal/errmsg"
	"github.com/llehouerou/framesync/internal/mediasync"
	"github.com/llehouerou/framesync/internal/orchestrator"
)

var (
	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const (
	tickInterval = time.Second / 30
	seekStep     = 5.0
	rateStep     = 0.25
	volumeStep   = 0.1
)

type tickMsg time.Time

type tickResultMsg struct {
	report orchestrator.Report
	err    error
}

type backgroundErrorMsg orchestrator.ErrorEvent

type model struct {
	app   *app
	sub   *orchestrator.Subscription
	last  orchestrator.Report
	ticks int
	seeks int
	err   string
	width int
}

func newModel(a *app) model {
	return model{app: a, sub: a.orch.Subscribe()}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitForError(m.sub))
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) runTick() tea.Cmd {
	orch := m.app.orch
	return func() tea.Msg {
		rep, err := orch.Tick(context.Background())
		return tickResultMsg{report: rep, err: err}
	}
}

func waitForError(sub *orchestrator.Subscription) tea.Cmd {
	return func() tea.Msg {
		select {
		case e := <-sub.Errors:
			return backgroundErrorMsg(e)
		case <-sub.Done:
			return nil
		}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m, m.runTick()

	case tickResultMsg:
		m.ticks++
		m.last = msg.report
		if msg.report.Action == orchestrator.ActionSeek || msg.report.Sync.Step == mediasync.StateSeeking {
			m.seeks++
		}
		if msg.err != nil {
			m.err = errmsg.FormatWith(errmsg.OpSyncToFrame, strconv.Itoa(msg.report.Frame), msg.err)
		}
		return m, tickCmd()

	case backgroundErrorMsg:
		op := errmsg.OpSeekToFrame
		if msg.Operation == "play" {
			op = errmsg.OpPlaybackStart
		}
		m.err = errmsg.FormatWith(op, strconv.Itoa(msg.Frame), msg.Err)
		return m, waitForError(m.sub)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	tl := m.app.tl
	switch msg.String() {
	case "q", "ctrl+c":
		m.app.orch.Unsubscribe(m.sub)
		return m, tea.Quit
	case " ":
		tl.Toggle()
	case "left":
		tl.SeekTo(tl.CurrentTime() - seekStep)
	case "right":
		tl.SeekTo(tl.CurrentTime() + seekStep)
	case "home":
		tl.SeekTo(0)
	case "+", "=":
		tl.SetRate(tl.Rate() + rateStep)
	case "-":
		tl.SetRate(tl.Rate() - rateStep)
	case "up":
		m.app.video.SetVolume(m.app.video.Volume() + volumeStep)
	case "down":
		m.app.video.SetVolume(m.app.video.Volume() - volumeStep)
	case "m":
		m.app.video.SetMuted(!m.app.video.Muted())
	case "c":
		m.err = ""
	}
	return m, nil
}

func (m model) View() string {
	a := m.app
	rep := m.last

	status := "▶"
	if a.tl.Paused() {
		status = "⏸"
	}

	rows := []string{
		row("timeline", fmt.Sprintf("%s %s / %s  x%s",
			status,
			formatSeconds(rep.TimelineTime),
			formatSeconds(a.tl.Duration()),
			humanize.Ftoa(a.tl.Rate()))),
		row("media", fmt.Sprintf("%s / %s  speed x%s  rate x%s",
			formatSeconds(a.ctrl.CurrentTime()),
			formatSeconds(a.ctrl.Duration()),
			humanize.FtoaWithDigits(rep.Speed, 2),
			humanize.FtoaWithDigits(a.ctrl.PlaybackRate(), 3))),
		row("frame", fmt.Sprintf("%s of %s  action %s",
			humanize.Comma(int64(rep.Frame)),
			humanize.Comma(int64(a.ctrl.MaximumFrameNumber())),
			rep.Action)),
	}
	if rep.Action == orchestrator.ActionSync {
		rows = append(rows, row("sync", fmt.Sprintf("%s  drift %+d", rep.Sync.Step, rep.Drift())))
	} else {
		rows = append(rows, row("sync", a.ctrl.State().String()))
	}
	rows = append(rows, row("ticks", fmt.Sprintf("%s  seeks %s",
		humanize.Comma(int64(m.ticks)), humanize.Comma(int64(m.seeks)))))
	if a.store != nil {
		rows = append(rows, row("session", a.store.Session()))
	}
	volume := fmt.Sprintf("%d%%", int(a.video.Volume()*100))
	if a.video.Muted() {
		volume = "muted"
	}
	rows = append(rows, row("volume", volume))

	content := strings.Join(rows, "\n")
	if m.err != "" {
		content += "\n" + errorStyle.Render(m.err)
	}

	panel := panelStyle
	if m.width > 4 {
		panel = panel.Width(m.width - 2)
	}
	view := panel.Render(content)
	view += "\n" + helpStyle.Render("space play/pause  ←/→ seek  +/- speed  ↑/↓ volume  m mute  c clear  q quit")
	return view
}

func row(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-9s", label)) + value
}

func formatSeconds(s float64) string {
	d := time.Duration(s * float64(time.Second))
	m := int(d.Minutes())
	sec := d.Seconds() - float64(m*60)
	return fmt.Sprintf("%d:%06.3f", m, sec)
}
