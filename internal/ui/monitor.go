package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/dreamfocus/internal/focuser"
)

// snapshotMsg delivers a state snapshot from the poll loop to the model.
type snapshotMsg focuser.Snapshot

// abortDoneMsg reports the outcome of an abort requested from the UI.
type abortDoneMsg struct{ err error }

// Monitor is a live status display for a connected focuser. Snapshots
// arrive through the running program (see RunMonitor); the model itself
// never talks to the serial port except for the abort key.
type Monitor struct {
	session     *focuser.Session
	maxPosition int32

	width    int
	snap     focuser.Snapshot
	haveSnap bool
	gauge    progress.Model
	aborting bool
	abortErr error
}

// NewMonitor creates a monitor model. maxPosition scales the travel
// gauge; non-positive values disable it.
func NewMonitor(session *focuser.Session, maxPosition int32) Monitor {
	return Monitor{
		session:     session,
		maxPosition: maxPosition,
		width:       GetTerminalWidth(),
		gauge: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
	}
}

// Init implements tea.Model
func (m Monitor) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if m.width < MinTerminalWidth {
			m.width = MinTerminalWidth
		}
		if m.width > MaxContentWidth {
			m.width = MaxContentWidth
		}
		barWidth := m.width - 24
		if barWidth < 20 {
			barWidth = 20
		}
		m.gauge = progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(barWidth),
			progress.WithoutPercentage(),
		)
		return m, nil

	case snapshotMsg:
		m.snap = focuser.Snapshot(msg)
		m.haveSnap = true
		return m, nil

	case abortDoneMsg:
		m.aborting = false
		m.abortErr = msg.err
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "a":
			if m.aborting {
				return m, nil
			}
			m.aborting = true
			m.abortErr = nil
			session := m.session
			return m, func() tea.Msg {
				return abortDoneMsg{err: session.Abort()}
			}
		}
	}

	return m, nil
}

// View implements tea.Model
func (m Monitor) View() string {
	if !m.haveSnap {
		return SubtitleStyle.Render("Waiting for first status...") + "\n"
	}

	var b strings.Builder

	title := TitleStyle.Render("DREAMFOCUS MONITOR")
	subtitle := SubtitleStyle.Render(m.subtitle())
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, title, subtitle))
	b.WriteString("\n\n")

	b.WriteString(m.renderField("Position", m.positionValue()))
	if m.maxPosition > 0 {
		b.WriteString(LabelStyle.Render("") + m.gauge.ViewAs(m.travelFraction()) + "\n")
	}
	b.WriteString(m.renderField("Motion", m.motionValue()))
	b.WriteString(m.renderField("Mode", m.modeValue()))
	b.WriteString(m.renderField("Temperature", m.temperatureValue()))
	b.WriteString(m.renderField("Humidity", m.humidityValue()))
	if m.snap.Park == focuser.Parked {
		b.WriteString(m.renderField("Park", SettledStyle.Render("parked")))
	} else if m.snap.Park == focuser.ParkFailed {
		b.WriteString(m.renderField("Park", DegradedStyle.Render("park failed")))
	}
	if m.abortErr != nil {
		b.WriteString(m.renderField("Abort", DegradedStyle.Render(m.abortErr.Error())))
	}

	content := b.String()
	bordered := BorderStyle(m.width).Render(strings.TrimRight(content, "\n"))

	help := HelpStyle.Render("a abort · q quit")
	return bordered + "\n" + help + "\n"
}

func (m Monitor) subtitle() string {
	if m.snap.FirmwareVersion == "" {
		return "firmware unknown"
	}
	return fmt.Sprintf("firmware %s", m.snap.FirmwareVersion)
}

func (m Monitor) renderField(label, value string) string {
	return LabelStyle.Render(label+":") + " " + value + "\n"
}

func (m Monitor) positionValue() string {
	value := ValueStyle.Render(fmt.Sprintf("%d", m.snap.Position))
	if m.snap.PositionDegraded || m.snap.Degraded {
		return value + " " + DegradedStyle.Render(DegradedMarker+" stale")
	}
	return value
}

// travelFraction maps the signed position range [-max, +max] onto the
// gauge's 0..1.
func (m Monitor) travelFraction() float64 {
	if m.maxPosition <= 0 {
		return 0
	}
	f := (float64(m.snap.Position) + float64(m.maxPosition)) / (2 * float64(m.maxPosition))
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return f
}

func (m Monitor) motionValue() string {
	if m.aborting {
		return MovingStyle.Render("aborting...")
	}
	if m.snap.Degraded {
		return DegradedStyle.Render(DegradedMarker + " status unavailable")
	}
	if m.snap.Moving {
		return MovingStyle.Render(MovingMarker + " moving")
	}
	if m.snap.Settled {
		return SettledStyle.Render(SettledMarker + " settled")
	}
	return ValueStyle.Render("idle")
}

func (m Monitor) modeValue() string {
	if m.snap.Absolute {
		return ValueStyle.Render("absolute")
	}
	return ValueStyle.Render("relative (uncalibrated)")
}

func (m Monitor) temperatureValue() string {
	if m.snap.EnvDegraded {
		return DegradedStyle.Render(DegradedMarker + " sensor unavailable")
	}
	return ValueStyle.Render(fmt.Sprintf("%.1f °C", m.snap.TemperatureCelsius()))
}

func (m Monitor) humidityValue() string {
	if m.snap.EnvDegraded {
		return DegradedStyle.Render(DegradedMarker + " sensor unavailable")
	}
	return ValueStyle.Render(fmt.Sprintf("%.1f %%", m.snap.HumidityPercent))
}

// RunMonitor runs the live monitor until the user quits. The session's
// poll loop must be running; every emitted snapshot is forwarded into
// the program.
func RunMonitor(session *focuser.Session, maxPosition int32) error {
	p := tea.NewProgram(NewMonitor(session, maxPosition), tea.WithAltScreen())

	session.OnUpdate(func(snap focuser.Snapshot) {
		p.Send(snapshotMsg(snap))
	})

	_, err := p.Run()
	return err
}
