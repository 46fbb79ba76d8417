package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Auto-Bike/frontend/internal/client"
	"github.com/Auto-Bike/frontend/internal/logging"
	"github.com/Auto-Bike/frontend/internal/navigation"
	"github.com/Auto-Bike/frontend/internal/poller"
	"github.com/Auto-Bike/frontend/internal/session"
	"github.com/Auto-Bike/frontend/internal/tui/theme"
	"github.com/Auto-Bike/frontend/internal/tui/views/control"
	"github.com/Auto-Bike/frontend/internal/tui/views/debug"
	"github.com/Auto-Bike/frontend/internal/tui/views/help"
	"github.com/Auto-Bike/frontend/internal/tui/views/navmap"
	"github.com/Auto-Bike/frontend/internal/tui/views/status"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

// Page is the main screen.
type Page int

const (
	PageControl Page = iota
	PageNavigation
)

func (p Page) String() string {
	if p == PageNavigation {
		return "navigation"
	}
	return "control"
}

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayLog
	OverlayHelp
)

type inputTarget int

const (
	inputNone inputTarget = iota
	inputOrigin
	inputDestination
)

// Deps are the services the console drives. Telemetry may be nil.
type Deps struct {
	Session      *session.Manager
	Poller       *poller.Poller
	Planner      *navigation.Planner
	Telemetry    *client.WSClient
	PollInterval time.Duration
	DefaultSpeed int
	// HelpStyle is a glamour style name; empty means "dark".
	HelpStyle string
	Logger    *logrus.Entry
}

// Messages produced by the commands below.
type (
	sessionMsg  struct{ State session.State }
	pollMsg     struct{ State poller.State }
	commandDone struct {
		Command client.Command
		Resp    client.CommandResponse
		Err     error
	}
	connectDone  struct{ Err error }
	pollStartErr struct{ Err error }
	navDone      struct {
		Action string
		Err    error
	}
	frameMsg struct{}
)

// Model is the root Bubble Tea model.
type Model struct {
	deps   Deps
	log    *logrus.Entry
	ctx    context.Context
	cancel context.CancelFunc

	keys    KeyMap
	width   int
	height  int
	page    Page
	overlay Overlay

	statusBar status.Model
	control   control.Model
	navmap    navmap.Model
	debug     debug.Model
	help      help.Model
	spinner   spinner.Model

	input       textinput.Model
	inputTarget inputTarget

	sessCh <-chan session.State
	pollCh <-chan poller.State

	lastSession session.State
	lastPoll    poller.State
	telemetry   bool
	navBusy     bool
	animating   bool
	notice      string
}

// New creates the root model and subscribes to the services.
func New(d Deps) Model {
	if d.Logger == nil {
		d.Logger = logging.For("tui")
	}
	if d.DefaultSpeed == 0 {
		d.DefaultSpeed = session.DefaultSpeed
	}
	if d.PollInterval <= 0 {
		d.PollInterval = poller.DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())

	keys := DefaultKeyMap()
	ti := textinput.New()
	ti.Placeholder = "address, place or lat,lng"
	ti.CharLimit = 200

	m := Model{
		deps:      d,
		log:       d.Logger,
		ctx:       ctx,
		cancel:    cancel,
		keys:      keys,
		statusBar: status.New(d.Session.BikeID()),
		control:   control.New(d.DefaultSpeed),
		navmap:    navmap.New(),
		debug:     debug.New(),
		help:      help.New(d.HelpStyle, keys.HelpSections()...),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		input:     ti,
		sessCh:    d.Session.Subscribe(),
		pollCh:    d.Poller.Subscribe(),
	}
	m.lastSession = d.Session.State()
	m.control.SetSession(m.lastSession)
	m.statusBar.Session = m.lastSession.Status.String()
	m.statusBar.Page = m.page.String()
	m.syncMap()
	return m
}

// Init starts polling and the subscriptions.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitSession(m.sessCh),
		waitPoll(m.pollCh),
		m.startPolling(),
		m.spinner.Tick,
	}
	if m.deps.Telemetry != nil {
		cmds = append(cmds, m.deps.Telemetry.Listen(m.ctx))
	}
	return tea.Batch(cmds...)
}

func waitSession(ch <-chan session.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return sessionMsg{State: st}
	}
}

func waitPoll(ch <-chan poller.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return pollMsg{State: st}
	}
}

func (m Model) startPolling() tea.Cmd {
	p, ctx, interval := m.deps.Poller, m.ctx, m.deps.PollInterval
	return func() tea.Msg {
		if err := p.Start(ctx, interval); err != nil {
			return pollStartErr{Err: err}
		}
		return nil
	}
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/navmap.FPS, func(time.Time) tea.Msg { return frameMsg{} })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.control.Width = msg.Width
		m.navmap.Width = max(msg.Width*2/3, 30)
		m.navmap.Height = max(msg.Height-10, 10)
		m.input.Width = max(msg.Width/3-4, 20)
		m.help.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sessionMsg:
		prev := m.lastSession
		m.lastSession = msg.State
		m.control.SetSession(msg.State)
		m.statusBar.Session = msg.State.Status.String()
		if prev.Status != msg.State.Status {
			line := fmt.Sprintf("%s → %s", prev.Status, msg.State.Status)
			if msg.State.LastError != "" {
				line += ": " + msg.State.LastError
			}
			m.debug.Add(debug.KindSession, line)
		}
		return m, waitSession(m.sessCh)

	case pollMsg:
		return m.applyPoll(msg.State)

	case pollStartErr:
		if !errors.Is(msg.Err, poller.ErrRunning) {
			m.debug.Addf(debug.KindError, "GPS polling not started: %v", msg.Err)
		}
		return m, nil

	case connectDone:
		if msg.Err != nil && !errors.Is(msg.Err, session.ErrSuperseded) {
			m.debug.Addf(debug.KindError, "connect: %v", msg.Err)
		}
		return m, nil

	case commandDone:
		return m.applyCommand(msg), nil

	case navDone:
		m.navBusy = false
		if msg.Err != nil {
			m.debug.Addf(debug.KindError, "%s: %v", msg.Action, msg.Err)
		} else {
			m.debug.Add(debug.KindNav, msg.Action)
		}
		mapCmd := m.syncMap()
		return m, mapCmd

	case frameMsg:
		if m.navmap.Step() {
			return m, frame()
		}
		m.animating = false
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case client.WSConnectedMsg:
		m.telemetry = true
		m.statusBar.Telemetry = true
		m.debug.Add(debug.KindTelemetry, "telemetry connected")
		return m, m.deps.Telemetry.ReadLoop(m.ctx)

	case client.WSDisconnectedMsg:
		m.telemetry = false
		m.statusBar.Telemetry = false
		if msg.Err != nil {
			m.debug.Addf(debug.KindTelemetry, "telemetry lost: %v", msg.Err)
		}
		return m, m.deps.Telemetry.Listen(m.ctx)

	case client.WSNavProgressMsg:
		p := msg.Payload
		if m.forThisBike(p.BikeID) {
			m.deps.Planner.ApplyProgress(navigation.Progress{
				RunID: p.RunID, Position: p.Position, Waypoint: p.Waypoint, Total: p.Total,
			})
		}
		mapCmd := m.syncMap()
		return m, tea.Batch(mapCmd, m.deps.Telemetry.ReadLoop(m.ctx))

	case client.WSNavArrivedMsg:
		p := msg.Payload
		if m.forThisBike(p.BikeID) {
			pr := navigation.Progress{RunID: p.RunID, Position: p.Position, Arrived: true}
			if last := m.deps.Planner.State().Progress; last != nil {
				pr.Total = last.Total
				pr.Waypoint = last.Total
			}
			m.deps.Planner.ApplyProgress(pr)
			m.debug.Addf(debug.KindNav, "arrived at %s", p.Position)
		}
		mapCmd := m.syncMap()
		return m, tea.Batch(mapCmd, m.deps.Telemetry.ReadLoop(m.ctx))

	case client.WSCommandAckMsg:
		p := msg.Payload
		m.debug.Addf(debug.KindTelemetry, "ack %s speed=%d heading=%.0f°", p.Command, p.Speed, p.Heading)
		return m, m.deps.Telemetry.ReadLoop(m.ctx)

	case client.WSErrorMsg:
		m.debug.Addf(debug.KindError, "backend: %s", string(msg.Raw))
		return m, m.deps.Telemetry.ReadLoop(m.ctx)
	}

	if m.inputTarget != inputNone {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) forThisBike(id string) bool {
	return id == "" || id == m.deps.Session.BikeID()
}

func (m Model) applyPoll(st poller.State) (tea.Model, tea.Cmd) {
	prev := m.lastPoll
	m.lastPoll = st
	m.statusBar.HasFix = st.HasFix
	m.statusBar.Position = st.Position
	m.statusBar.GPSError = st.Message
	m.statusBar.GPSHalted = st.Stopped

	if st.HasFix && !st.UpdatedAt.Equal(prev.UpdatedAt) && st.Message == "" {
		m.deps.Planner.UpdateLocation(st.Position)
	}
	if st.Message != prev.Message {
		// GPS failures share the navigation error line; a recovered fix
		// clears only the GPS message it put there.
		if st.Message != "" || m.deps.Planner.State().Error == prev.Message {
			m.deps.Planner.SetError(st.Message)
		}
	}
	if st.Message != "" && st.Message != prev.Message || st.ConsecutiveFailures > prev.ConsecutiveFailures {
		kind := debug.KindGPS
		if st.Stopped {
			kind = debug.KindError
		}
		m.debug.Addf(kind, "%s (%d/%d)", st.Message, st.ConsecutiveFailures, m.deps.Poller.Threshold())
	}
	mapCmd := m.syncMap()
	return m, tea.Batch(mapCmd, waitPoll(m.pollCh))
}

func (m Model) applyCommand(msg commandDone) Model {
	switch {
	case msg.Err == nil:
		m.notice = ""
		if text, ok := msg.Resp["message"].(string); ok {
			m.control.LastResp = text
		} else {
			m.control.LastResp = fmt.Sprintf("%s sent", msg.Command)
		}
		m.debug.Addf(debug.KindCommand, "%s ok", msg.Command)
	case errors.Is(msg.Err, session.ErrNotConnected):
		m.notice = "Connect to the bike before sending commands"
	case errors.Is(msg.Err, session.ErrSuperseded):
		m.debug.Addf(debug.KindCommand, "%s reply discarded", msg.Command)
	default:
		m.debug.Addf(debug.KindError, "%s: %v", msg.Command, msg.Err)
	}
	return m
}

// syncMap pushes the planner snapshot into the map and starts the marker
// animation when needed.
func (m *Model) syncMap() tea.Cmd {
	st := m.deps.Planner.State()
	from, to, ok := m.deps.Planner.FallbackLine()
	m.navmap.SetState(st, from, to, ok)
	if m.navmap.Animating() && !m.animating {
		m.animating = true
		return frame()
	}
	return nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.deps.Session.OnUserAction()
	g := m.keys.Global

	if m.inputTarget != inputNone {
		return m.handleInput(msg)
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, g.Escape), key.Matches(msg, g.Help) && m.overlay == OverlayHelp,
			key.Matches(msg, g.Log) && m.overlay == OverlayLog:
			m.overlay = OverlayNone
		case key.Matches(msg, g.Quit):
			return m.quit()
		case m.overlay == OverlayLog && key.Matches(msg, g.Up):
			m.debug.ScrollUp(1)
		case m.overlay == OverlayLog && key.Matches(msg, g.Down):
			m.debug.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, g.Quit):
		return m.quit()
	case key.Matches(msg, g.Tab):
		m.page = (m.page + 1) % 2
		m.statusBar.Page = m.page.String()
		m.notice = ""
		return m, nil
	case key.Matches(msg, g.Help):
		m.overlay = OverlayHelp
		return m, nil
	case key.Matches(msg, g.Log):
		m.overlay = OverlayLog
		return m, nil
	case key.Matches(msg, g.ReloadGPS):
		m.deps.Poller.Reset()
		m.debug.Add(debug.KindGPS, "GPS polling restarted")
		return m, m.startPolling()
	}

	if m.page == PageNavigation {
		return m.handleNavKey(msg)
	}
	return m.handleControlKey(msg)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	m.deps.Poller.Stop()
	if m.deps.Telemetry != nil {
		m.deps.Telemetry.Close()
	}
	return m, tea.Quit
}

func (m Model) handleControlKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.keys.Control
	switch {
	case key.Matches(msg, c.Connect):
		m.notice = ""
		return m, m.connect()
	case key.Matches(msg, c.Disconnect):
		m.deps.Session.Disconnect()
		return m, nil
	case key.Matches(msg, c.Forward):
		return m.send(client.CommandForward)
	case key.Matches(msg, c.Backward):
		return m.send(client.CommandBackward)
	case key.Matches(msg, c.Left):
		return m.send(client.CommandLeft)
	case key.Matches(msg, c.Right):
		return m.send(client.CommandRight)
	case key.Matches(msg, c.Stop):
		return m.send(client.CommandStop)
	case key.Matches(msg, c.Send):
		return m.send(m.control.Selected())
	case key.Matches(msg, c.SelectPrev):
		m.control.Prev()
	case key.Matches(msg, c.SelectNext):
		m.control.Next()
	case key.Matches(msg, c.SpeedUp):
		m.control.AdjustSpeed(5)
	case key.Matches(msg, c.SpeedDown):
		m.control.AdjustSpeed(-5)
	case key.Matches(msg, c.SpeedUp10):
		m.control.AdjustSpeed(10)
	case key.Matches(msg, c.SpeedDown10):
		m.control.AdjustSpeed(-10)
	case key.Matches(msg, c.Duration):
		m.control.CycleDuration()
	}
	return m, nil
}

func (m Model) connect() tea.Cmd {
	sess, ctx := m.deps.Session, m.ctx
	return func() tea.Msg {
		return connectDone{Err: sess.Connect(ctx)}
	}
}

// send fires cmd unless a command is already in flight. Outside a live
// session the manager rejects it without contacting the backend.
func (m Model) send(cmd client.Command) (tea.Model, tea.Cmd) {
	m.control.Select(cmd)
	if m.control.Sending {
		return m, nil
	}
	sess, ctx, params := m.deps.Session, m.ctx, m.control.Params()
	return m, func() tea.Msg {
		resp, err := sess.SendCommand(ctx, cmd, params)
		return commandDone{Command: cmd, Resp: resp, Err: err}
	}
}

func (m Model) handleNavKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := m.keys.Nav
	p := m.deps.Planner
	switch {
	case key.Matches(msg, n.Origin):
		return m.openInput(inputOrigin)
	case key.Matches(msg, n.Destination):
		return m.openInput(inputDestination)
	case key.Matches(msg, n.Center):
		p.CenterOnCurrent()
		mapCmd := m.syncMap()
		return m, mapCmd
	case key.Matches(msg, n.Clear):
		p.ClearRoute()
		m.debug.Add(debug.KindNav, "route cleared")
		mapCmd := m.syncMap()
		return m, mapCmd
	case key.Matches(msg, n.PanUp):
		return m.pan(1, 0)
	case key.Matches(msg, n.PanDown):
		return m.pan(-1, 0)
	case key.Matches(msg, n.PanLeft):
		return m.pan(0, -1)
	case key.Matches(msg, n.PanRight):
		return m.pan(0, 1)
	}

	if m.navBusy {
		return m, nil
	}
	switch {
	case key.Matches(msg, n.Pick):
		center := m.navmap.Center()
		return m.navOp("destination picked", func(ctx context.Context) error { return p.PickDestination(ctx, center) })
	case key.Matches(msg, n.UseCurrent):
		return m.navOp("start from current location", p.UseCurrentAsOrigin)
	case key.Matches(msg, n.ShowRoute):
		return m.navOp("route calculated", p.ShowRoute)
	case key.Matches(msg, n.Start):
		return m.navOp("navigation started", p.StartNavigation)
	}
	return m, nil
}

// pan moves the map centre by whole steps north and east.
func (m Model) pan(rows, cols int) (tea.Model, tea.Cmd) {
	if err := m.deps.Planner.SetCenter(m.navmap.Panned(rows, cols)); err != nil {
		m.debug.Addf(debug.KindError, "pan: %v", err)
		return m, nil
	}
	mapCmd := m.syncMap()
	return m, mapCmd
}

func (m Model) navOp(action string, f func(context.Context) error) (tea.Model, tea.Cmd) {
	m.navBusy = true
	ctx := m.ctx
	return m, func() tea.Msg {
		return navDone{Action: action, Err: f(ctx)}
	}
}

func (m Model) openInput(t inputTarget) (tea.Model, tea.Cmd) {
	m.inputTarget = t
	m.input.SetValue("")
	if t == inputOrigin {
		m.input.Prompt = "Starting point: "
	} else {
		m.input.Prompt = "Destination: "
	}
	return m, m.input.Focus()
}

func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.inputTarget = inputNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		target := m.inputTarget
		m.inputTarget = inputNone
		m.input.Blur()
		if value == "" {
			return m, nil
		}
		p := m.deps.Planner
		if target == inputOrigin {
			return m.navOp("starting point set", func(ctx context.Context) error { return p.SetOrigin(ctx, value) })
		}
		return m.navOp("destination set", func(ctx context.Context) error { return p.SetDestination(ctx, value) })
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the full console.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	switch m.overlay {
	case OverlayLog:
		body = m.debug.View(m.width, m.height-4)
	case OverlayHelp:
		body = m.help.View()
	default:
		if m.page == PageNavigation {
			body = m.navigationView()
		} else {
			body = m.controlView()
		}
	}

	footer := theme.StyleDimmed.Render("  tab:page  ?:keys  L:log  r:reload GPS  q:quit")
	sections := []string{m.statusBar.View(), body}
	if m.notice != "" {
		sections = append(sections, theme.StyleWarning.Render("  "+m.notice))
	}
	sections = append(sections, footer)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) busy() bool {
	s := m.lastSession.Status
	return s == session.Connecting || s == session.Sending || m.navBusy
}

func (m Model) controlView() string {
	v := m.control.View()
	if m.busy() {
		v = lipgloss.JoinVertical(lipgloss.Left, v, m.spinner.View()+" "+m.lastSession.Status.String())
	}
	return v
}

func endpointLine(label string, e navigation.Endpoint) string {
	if !e.Set {
		return label + theme.StyleDimmed.Render("not set")
	}
	return label + e.Label
}

func (m Model) navigationView() string {
	st := m.deps.Planner.State()

	current := theme.StyleDimmed.Render("waiting for GPS")
	if st.HasFix {
		current = st.Current.String()
	}
	lines := []string{
		theme.StyleHeader.Render("NAVIGATION"),
		"",
		"Current:     " + current,
		endpointLine("From:        ", st.Origin),
		endpointLine("To:          ", st.Destination),
	}
	if st.Navigating {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("Navigation in progress"))
	}
	if m.inputTarget != inputNone {
		lines = append(lines, "", m.input.View())
	}
	if m.navBusy {
		lines = append(lines, "", m.spinner.View()+" working...")
	}
	if st.Error != "" {
		lines = append(lines, "", theme.StyleError.Render(st.Error))
	}
	if m.lastPoll.Message != "" {
		style := theme.StyleWarning
		if m.lastPoll.Stopped {
			style = theme.StyleError
		}
		lines = append(lines, "", style.Render(m.lastPoll.Message))
	}
	lines = append(lines, "",
		theme.StyleDimmed.Render("o:from  d:to  u:from current  s:route"),
		theme.StyleDimmed.Render("n:start  x:clear  c:centre"))

	side := lipgloss.NewStyle().Padding(0, 2).Width(max(m.width-m.navmap.Width-4, 30)).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	return lipgloss.JoinHorizontal(lipgloss.Top, m.navmap.View(), side)
}
