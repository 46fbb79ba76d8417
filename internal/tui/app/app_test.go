package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Auto-Bike/frontend/internal/client"
	"github.com/Auto-Bike/frontend/internal/geo"
	"github.com/Auto-Bike/frontend/internal/maps"
	"github.com/Auto-Bike/frontend/internal/navigation"
	"github.com/Auto-Bike/frontend/internal/poller"
	"github.com/Auto-Bike/frontend/internal/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	home = geo.Position{Lat: 43.2556, Lng: -79.9355}
	lab  = geo.Position{Lat: 43.2609, Lng: -79.9192}
)

type fakeBike struct {
	mu       sync.Mutex
	status   string
	commands []client.CommandRequest
	connects int
}

func (f *fakeBike) TestConnection(ctx context.Context, id string) (*client.ConnectionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return &client.ConnectionResponse{Status: f.status}, nil
}

func (f *fakeBike) SendCommand(ctx context.Context, req client.CommandRequest) (client.CommandResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, req)
	return client.CommandResponse{"message": "Command '" + string(req.Command) + "' sent"}, nil
}

func (f *fakeBike) sent() []client.CommandRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]client.CommandRequest(nil), f.commands...)
}

type fakeMaps struct {
	mu   sync.Mutex
	trip *client.NavigationRequest
}

func (f *fakeMaps) Search(ctx context.Context, q string) ([]maps.Place, error) {
	return []maps.Place{{Name: "Lab", Address: "1280 Main St W", Position: lab}}, nil
}

func (f *fakeMaps) Reverse(ctx context.Context, p geo.Position) (maps.Place, error) {
	return maps.Place{Name: "Home", Address: "Hamilton", Position: p}, nil
}

func (f *fakeMaps) Route(ctx context.Context, from, to geo.Position) (maps.Route, error) {
	return maps.Route{From: from, To: to, Distance: 1500, Duration: 6 * time.Minute, Path: []geo.Position{from, to}}, nil
}

func (f *fakeMaps) SendNavigation(ctx context.Context, req client.NavigationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trip = &req
	return nil
}

type fixture struct {
	bike    *fakeBike
	maps    *fakeMaps
	sess    *session.Manager
	poll    *poller.Poller
	planner *navigation.Planner
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestModel(t *testing.T, fetch poller.FetchFunc) (Model, *fixture) {
	t.Helper()
	log := quietLog()
	f := &fixture{bike: &fakeBike{status: client.StatusSuccess}, maps: &fakeMaps{}}
	f.sess = session.New(f.bike, session.Options{BikeID: "bike1", IdleTimeout: time.Hour, Logger: log})
	if fetch == nil {
		fetch = func(context.Context) (geo.Position, error) { return home, nil }
	}
	f.poll = poller.New(fetch, poller.Options{Threshold: 2, Logger: log})
	f.planner = navigation.NewPlanner(f.maps, f.maps, f.maps, navigation.Options{Bounds: geo.CanadaBounds, Logger: log})

	m := New(Deps{
		Session:      f.sess,
		Poller:       f.poll,
		Planner:      f.planner,
		Telemetry:    client.NewWSClient("ws://127.0.0.1:1/ws", ""),
		PollInterval: time.Hour,
		HelpStyle:    "notty",
		Logger:       log,
	})
	t.Cleanup(func() {
		m.cancel()
		f.poll.Stop()
		f.sess.Close()
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model), f
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func press(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch k {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	return update(t, m, msg)
}

// run executes cmd and feeds its message back, then applies queued session
// states the way the subscription command would.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd != nil {
		if msg := cmd(); msg != nil {
			m, _ = update(t, m, msg)
		}
	}
	for {
		select {
		case st, ok := <-m.sessCh:
			if !ok {
				return m
			}
			m, _ = update(t, m, sessionMsg{State: st})
		default:
			return m
		}
	}
}

func TestConnectThenSend(t *testing.T) {
	m, f := newTestModel(t, nil)

	m, cmd := press(t, m, "c")
	m = run(t, m, cmd)
	require.Equal(t, session.Connected, f.sess.State().Status)
	assert.False(t, m.control.Disabled())
	assert.Equal(t, "Connected", m.statusBar.Session)

	m, cmd = press(t, m, "w")
	m = run(t, m, cmd)
	sent := f.bike.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, client.CommandForward, sent[0].Command)
	assert.Equal(t, 50, sent[0].Speed)
	assert.Nil(t, sent[0].TimeDuration)
	assert.Equal(t, "Command 'forward' sent", m.control.LastResp)
	assert.Equal(t, 4, m.debug.Count("ses"), "four status transitions logged")
}

func TestSendWhileDisconnectedMakesNoCall(t *testing.T) {
	m, f := newTestModel(t, nil)

	m, cmd := press(t, m, "a")
	require.NotNil(t, cmd)
	m = run(t, m, cmd)

	assert.Empty(t, f.bike.sent())
	assert.Contains(t, m.notice, "Connect to the bike")
	assert.Equal(t, client.CommandLeft, m.control.Selected())
}

func TestSpeedAndDurationKeys(t *testing.T) {
	m, f := newTestModel(t, nil)
	for _, k := range []string{"+", "]", "]", "-", "t", "t"} {
		m, _ = press(t, m, k)
	}
	assert.Equal(t, 70, m.control.Speed)
	assert.Equal(t, 2*time.Second, m.control.Duration())

	m, cmd := press(t, m, "c")
	m = run(t, m, cmd)
	m, cmd = press(t, m, "d")
	run(t, m, cmd)

	sent := f.bike.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, client.CommandRight, sent[0].Command)
	assert.Equal(t, 70, sent[0].Speed)
	require.NotNil(t, sent[0].TimeDuration)
	assert.Equal(t, 2, *sent[0].TimeDuration)
}

func TestDisconnectKey(t *testing.T) {
	m, f := newTestModel(t, nil)
	m, cmd := press(t, m, "c")
	m = run(t, m, cmd)
	m, _ = press(t, m, "x")
	m = run(t, m, nil)

	assert.Equal(t, session.Disconnected, f.sess.State().Status)
	assert.True(t, m.control.Disabled())
	assert.Equal(t, 1, f.bike.connects)
}

func TestPollFeedsPlannerAndStatus(t *testing.T) {
	m, f := newTestModel(t, nil)

	m, _ = update(t, m, pollMsg{State: poller.State{Position: home, HasFix: true, UpdatedAt: time.Now()}})
	st := f.planner.State()
	assert.True(t, st.HasFix)
	assert.Equal(t, home, st.Current)
	assert.Equal(t, home, st.Center, "first fix centres the map")
	assert.True(t, m.statusBar.HasFix)
	pos, ok := m.navmap.Marker()
	assert.True(t, ok)
	assert.Equal(t, home, pos)

	m, _ = update(t, m, pollMsg{State: poller.State{
		Position: home, HasFix: true, Stopped: true, ConsecutiveFailures: 6,
		Message: poller.ExhaustedMessage, Err: poller.ErrExhausted,
	}})
	assert.True(t, m.statusBar.GPSHalted)
	assert.Contains(t, m.statusBar.View(), "GPS halted")
	assert.Equal(t, poller.ExhaustedMessage, m.lastPoll.Message)
	assert.Equal(t, 1, m.debug.Count("err"))
	assert.Equal(t, poller.ExhaustedMessage, f.planner.State().Error)

	m, _ = update(t, m, pollMsg{State: poller.State{Position: home, HasFix: true, UpdatedAt: time.Now()}})
	assert.Empty(t, f.planner.State().Error, "recovered fix clears the GPS message")
}

func TestReloadRestartsStoppedPoller(t *testing.T) {
	fail := poller.FetchFunc(func(context.Context) (geo.Position, error) {
		return geo.Position{}, errors.New("no fix")
	})
	m, f := newTestModel(t, fail)
	ctx := context.Background()
	f.poll.PollOnce(ctx)
	f.poll.PollOnce(ctx)
	require.True(t, f.poll.State().Stopped)

	_, cmd := press(t, m, "r")
	assert.False(t, f.poll.State().Stopped)
	assert.Zero(t, f.poll.State().ConsecutiveFailures)
	require.NotNil(t, cmd)
	assert.Nil(t, cmd(), "poller restarts cleanly")
}

func TestPickDestinationAtMapCentre(t *testing.T) {
	m, f := newTestModel(t, nil)
	m, _ = update(t, m, pollMsg{State: poller.State{Position: home, HasFix: true, UpdatedAt: time.Now()}})
	m, _ = press(t, m, "tab")

	m, cmd := press(t, m, "p")
	m = run(t, m, cmd)

	st := f.planner.State()
	require.True(t, st.Destination.Set)
	assert.Equal(t, home, st.Destination.Position)
	assert.False(t, m.navBusy)
}

func TestPanThenPickDestination(t *testing.T) {
	m, f := newTestModel(t, nil)
	m, _ = update(t, m, pollMsg{State: poller.State{Position: home, HasFix: true, UpdatedAt: time.Now()}})
	m, _ = press(t, m, "tab")

	for _, k := range []string{"l", "l", "k"} {
		m, _ = press(t, m, k)
	}
	center := f.planner.State().Center
	require.NotEqual(t, home, center)
	assert.Greater(t, center.Lat, home.Lat, "k pans north")
	assert.Greater(t, center.Lng, home.Lng, "l pans east")
	assert.Equal(t, center, m.navmap.Center())
	assert.Equal(t, home, f.planner.State().Current, "panning leaves the bike where it is")

	m, cmd := press(t, m, "p")
	m = run(t, m, cmd)

	st := f.planner.State()
	require.True(t, st.Destination.Set)
	assert.Equal(t, center, st.Destination.Position)
	assert.NotEqual(t, st.Current, st.Destination.Position)

	m, _ = press(t, m, "c")
	assert.Equal(t, home, f.planner.State().Center, "c recentres on the bike")
	assert.Equal(t, center, f.planner.State().Destination.Position)
}

func TestNavigationFlow(t *testing.T) {
	m, f := newTestModel(t, nil)
	m, _ = update(t, m, pollMsg{State: poller.State{Position: home, HasFix: true, UpdatedAt: time.Now()}})
	m, _ = press(t, m, "tab")

	m, _ = press(t, m, "d")
	assert.Equal(t, inputDestination, m.inputTarget)
	for _, r := range "lab" {
		m, _ = press(t, m, string(r))
	}
	assert.Equal(t, "lab", m.input.Value())
	m, cmd := press(t, m, "enter")
	assert.Equal(t, inputNone, m.inputTarget)
	assert.True(t, m.navBusy)
	m = run(t, m, cmd)
	assert.False(t, m.navBusy)

	st := f.planner.State()
	require.True(t, st.Destination.Set)
	assert.Equal(t, lab, st.Destination.Position)
	assert.Contains(t, strings.Join(m.navmap.Render(), ""), "-", "fallback line drawn before a route exists")

	m, cmd = press(t, m, "u")
	m = run(t, m, cmd)
	require.True(t, f.planner.State().Origin.Set)

	m, cmd = press(t, m, "s")
	m = run(t, m, cmd)
	require.NotNil(t, f.planner.State().Route)
	assert.Contains(t, m.View(), "Total Distance: 1.5 km")

	m, cmd = press(t, m, "n")
	m = run(t, m, cmd)
	assert.True(t, f.planner.State().Navigating)
	require.NotNil(t, f.maps.trip)
	assert.Equal(t, client.ToLatLon(home), f.maps.trip.Start)
	assert.Equal(t, client.ToLatLon(lab), f.maps.trip.Destination)

	m, _ = update(t, m, client.WSNavProgressMsg{Payload: client.NavProgressPayload{
		RunID: "r1", BikeID: "bike1", Position: geo.Lerp(home, lab, 0.5), Waypoint: 5, Total: 10,
	}})
	assert.Contains(t, m.View(), "waypoint 5/10")
	assert.True(t, m.navmap.Animating())

	m, _ = update(t, m, client.WSNavArrivedMsg{Payload: client.NavArrivedPayload{RunID: "r1", BikeID: "bike1", Position: lab}})
	st = f.planner.State()
	assert.False(t, st.Navigating)
	require.NotNil(t, st.Progress)
	assert.Equal(t, 10, st.Progress.Waypoint)

	m, _ = press(t, m, "x")
	assert.Nil(t, f.planner.State().Route)
}

func TestInputEscapeCancels(t *testing.T) {
	m, f := newTestModel(t, nil)
	m, _ = press(t, m, "tab")
	m, _ = press(t, m, "o")
	m, _ = press(t, m, "q")
	assert.Equal(t, "q", m.input.Value(), "keys go to the input while it is open")
	m, _ = press(t, m, "esc")
	assert.Equal(t, inputNone, m.inputTarget)
	assert.False(t, f.planner.State().Origin.Set)
}

func TestOtherBikeProgressIgnored(t *testing.T) {
	m, f := newTestModel(t, nil)
	update(t, m, client.WSNavProgressMsg{Payload: client.NavProgressPayload{BikeID: "bike9", Position: lab, Waypoint: 1, Total: 2}})
	assert.Nil(t, f.planner.State().Progress)
}

func TestOverlays(t *testing.T) {
	m, _ := newTestModel(t, nil)
	assert.Contains(t, m.View(), "BIKE CONTROL PANEL")

	m, _ = press(t, m, "?")
	assert.Equal(t, OverlayHelp, m.overlay)
	v := m.View()
	assert.Contains(t, v, "connect to bike")
	assert.Contains(t, v, "show route")

	m, _ = press(t, m, "esc")
	assert.Equal(t, OverlayNone, m.overlay)

	m, _ = press(t, m, "L")
	assert.Equal(t, OverlayLog, m.overlay)
	assert.Contains(t, m.View(), "EVENT LOG")
	m, _ = press(t, m, "L")
	assert.Equal(t, OverlayNone, m.overlay)
}

func TestViewBeforeSize(t *testing.T) {
	m, _ := newTestModel(t, nil)
	m.width = 0
	if !strings.Contains(m.View(), "Initializing") {
		t.Error("unsized view should say Initializing")
	}
}
