package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Auto-Bike/frontend/internal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	connectStatus string
	connectErr    error
	commandErr    error

	// gate, when set, blocks each call until a value is received.
	gate    chan struct{}
	started chan struct{}

	mu           sync.Mutex
	connectCalls int
	commandCalls int
	lastCommand  client.CommandRequest
}

func (f *fakeBackend) TestConnection(ctx context.Context, bikeID string) (*client.ConnectionResponse, error) {
	f.mu.Lock()
	f.connectCalls++
	f.mu.Unlock()
	f.wait()
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return &client.ConnectionResponse{Status: f.connectStatus}, nil
}

func (f *fakeBackend) SendCommand(ctx context.Context, req client.CommandRequest) (client.CommandResponse, error) {
	f.mu.Lock()
	f.commandCalls++
	f.lastCommand = req
	f.mu.Unlock()
	f.wait()
	if f.commandErr != nil {
		return nil, f.commandErr
	}
	return client.CommandResponse{"message": "ok"}, nil
}

func (f *fakeBackend) wait() {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeBackend) calls() (connect, command int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls, f.commandCalls
}

func newTestManager(b *fakeBackend) (*Manager, *manualClock) {
	clock := newManualClock()
	m := New(b, Options{BikeID: "bike1", IdleTimeout: 30 * time.Second, Clock: clock})
	return m, clock
}

func TestConnectSuccessArmsTimer(t *testing.T) {
	b := &fakeBackend{connectStatus: "success"}
	m, clock := newTestManager(b)
	defer m.Close()

	require.NoError(t, m.Connect(context.Background()))

	st := m.State()
	assert.Equal(t, Connected, st.Status)
	assert.True(t, st.TimerArmed)
	assert.Equal(t, 1, clock.Pending())
}

func TestConnectNegativeAckArmsNoTimer(t *testing.T) {
	b := &fakeBackend{connectStatus: "fail"}
	m, clock := newTestManager(b)
	defer m.Close()

	err := m.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnectionRejected)

	st := m.State()
	assert.Equal(t, ConnectionFailed, st.Status)
	assert.False(t, st.TimerArmed)
	assert.Zero(t, clock.Pending())
}

func TestConnectTransportFailure(t *testing.T) {
	b := &fakeBackend{connectErr: errors.New("dial tcp 3.15.51.67:80: connect: connection refused")}
	m, clock := newTestManager(b)
	defer m.Close()

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConnectionRejected)
	assert.Equal(t, ConnectionError, m.State().Status)
	assert.Zero(t, clock.Pending())
}

func TestSendCommandRejectedWithoutNetworkCall(t *testing.T) {
	setups := map[Status]func(m *Manager){
		Disconnected: func(m *Manager) {},
		Connecting: func(m *Manager) {
			m.Apply(Event{Type: EventConnectStarted})
		},
		ConnectionFailed: func(m *Manager) {
			st, _ := m.Apply(Event{Type: EventConnectStarted})
			m.Apply(Event{Type: EventConnectRejected, Generation: st.Generation})
		},
		ConnectionError: func(m *Manager) {
			st, _ := m.Apply(Event{Type: EventConnectStarted})
			m.Apply(Event{Type: EventConnectFailed, Generation: st.Generation})
		},
	}

	for status, setup := range setups {
		t.Run(status.String(), func(t *testing.T) {
			b := &fakeBackend{connectStatus: "success"}
			m, _ := newTestManager(b)
			defer m.Close()

			setup(m)
			require.Equal(t, status, m.State().Status)

			_, err := m.SendCommand(context.Background(), client.CommandForward, Params{Speed: 50})
			assert.ErrorIs(t, err, ErrNotConnected)

			_, commands := b.calls()
			assert.Zero(t, commands)
			assert.Equal(t, status, m.State().Status)
		})
	}
}

func TestSendCommandRoundTrip(t *testing.T) {
	b := &fakeBackend{connectStatus: "success"}
	m, clock := newTestManager(b)
	defer m.Close()
	require.NoError(t, m.Connect(context.Background()))

	resp, err := m.SendCommand(context.Background(), client.CommandLeft, Params{Speed: 30, Duration: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp["message"])

	assert.Equal(t, Connected, m.State().Status)
	assert.Equal(t, "left", m.State().LastCommand)
	require.NotNil(t, b.lastCommand.TimeDuration)
	assert.Equal(t, 5, *b.lastCommand.TimeDuration)
	assert.Equal(t, 30, b.lastCommand.Speed)
	assert.Equal(t, 1, clock.Pending())
}

func TestSendCommandValidation(t *testing.T) {
	b := &fakeBackend{connectStatus: "success"}
	m, _ := newTestManager(b)
	defer m.Close()
	require.NoError(t, m.Connect(context.Background()))

	_, err := m.SendCommand(context.Background(), client.CommandForward, Params{Speed: 101})
	assert.ErrorIs(t, err, ErrInvalidSpeed)

	_, err = m.SendCommand(context.Background(), client.CommandForward, Params{Speed: 10, Duration: -time.Second})
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = m.SendCommand(context.Background(), client.Command("wheelie"), Params{Speed: 10})
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, commands := b.calls()
	assert.Zero(t, commands)
	assert.Equal(t, Connected, m.State().Status)
}

func TestCommandFailureKeepsDetailAndAllowsRetry(t *testing.T) {
	b := &fakeBackend{
		connectStatus: "success",
		commandErr:    &client.APIError{Status: 500, Detail: "Motor controller offline"},
	}
	m, _ := newTestManager(b)
	defer m.Close()
	require.NoError(t, m.Connect(context.Background()))

	_, err := m.SendCommand(context.Background(), client.CommandForward, Params{Speed: 50})
	require.Error(t, err)
	assert.Equal(t, Error, m.State().Status)
	assert.Equal(t, "Motor controller offline", m.State().LastError)

	b.commandErr = nil
	_, err = m.SendCommand(context.Background(), client.CommandStop, Params{Speed: 0})
	require.NoError(t, err)
	assert.Equal(t, Connected, m.State().Status)
	assert.Empty(t, m.State().LastError)
}

func TestIdleTimeoutDisconnectsExactlyOnce(t *testing.T) {
	b := &fakeBackend{connectStatus: "success"}
	m, clock := newTestManager(b)
	defer m.Close()

	updates := m.Subscribe()
	require.NoError(t, m.Connect(context.Background()))

	clock.Advance(29 * time.Second)
	assert.Equal(t, Connected, m.State().Status)

	clock.Advance(time.Second)
	assert.Equal(t, Disconnected, m.State().Status)

	clock.Advance(5 * time.Minute)
	assert.Equal(t, Disconnected, m.State().Status)

	disconnects := 0
	for {
		select {
		case st := <-updates:
			if st.Status == Disconnected {
				disconnects++
			}
			continue
		default:
		}
		break
	}
	assert.Equal(t, 1, disconnects)
	assert.Zero(t, clock.Pending())
}

func TestUserActionPostponesIdleDisconnect(t *testing.T) {
	b := &fakeBackend{connectStatus: "success"}
	m, clock := newTestManager(b)
	defer m.Close()
	require.NoError(t, m.Connect(context.Background()))

	clock.Advance(20 * time.Second)
	m.OnUserAction()
	clock.Advance(20 * time.Second)
	assert.Equal(t, Connected, m.State().Status)

	_, err := m.SendCommand(context.Background(), client.CommandForward, Params{Speed: 40})
	require.NoError(t, err)
	clock.Advance(29 * time.Second)
	assert.Equal(t, Connected, m.State().Status)

	clock.Advance(time.Second)
	assert.Equal(t, Disconnected, m.State().Status)
}

func TestAtMostOnePendingTimer(t *testing.T) {
	b := &fakeBackend{connectStatus: "success"}
	m, clock := newTestManager(b)
	defer m.Close()
	require.NoError(t, m.Connect(context.Background()))

	for i := 0; i < 50; i++ {
		switch i % 3 {
		case 0:
			m.OnUserAction()
		case 1:
			m.SendCommand(context.Background(), client.CommandForward, Params{Speed: i % 100})
		case 2:
			clock.Advance(3 * time.Second)
		}
		assert.LessOrEqual(t, clock.Pending(), 1, "step %d", i)
	}
}

func TestUserActionIgnoredWhileDisconnected(t *testing.T) {
	m, clock := newTestManager(&fakeBackend{})
	defer m.Close()

	m.OnUserAction()
	assert.Zero(t, clock.Pending())
	assert.False(t, m.State().TimerArmed)
}

func TestKeypressDuringFailedConnectLeavesNoTimer(t *testing.T) {
	for _, b := range []*fakeBackend{
		{connectStatus: "fail"},
		{connectErr: errors.New("connection refused")},
	} {
		b.gate = make(chan struct{})
		b.started = make(chan struct{}, 1)
		m, clock := newTestManager(b)

		errCh := make(chan error, 1)
		go func() { errCh <- m.Connect(context.Background()) }()

		<-b.started
		m.OnUserAction()
		close(b.gate)
		require.Error(t, <-errCh)

		st := m.State()
		assert.False(t, st.TimerArmed)
		assert.Zero(t, clock.Pending())

		m.OnUserAction()
		assert.Zero(t, clock.Pending(), "a failed session gets no timer")

		clock.Advance(31 * time.Second)
		assert.NotEqual(t, Disconnected, m.State().Status)
		assert.NotEqual(t, "Disconnected after inactivity", m.State().LastError)
		m.Close()
	}
}

func TestDisconnectCancelsTimer(t *testing.T) {
	b := &fakeBackend{connectStatus: "success"}
	m, clock := newTestManager(b)
	defer m.Close()
	require.NoError(t, m.Connect(context.Background()))

	m.Disconnect()
	assert.Equal(t, Disconnected, m.State().Status)
	assert.Zero(t, clock.Pending())

	connects, _ := b.calls()
	assert.Equal(t, 1, connects, "disconnect never contacts the backend")
}

func TestLateConnectReplyDoesNotResurrectSession(t *testing.T) {
	b := &fakeBackend{
		connectStatus: "success",
		gate:          make(chan struct{}),
		started:       make(chan struct{}, 1),
	}
	m, clock := newTestManager(b)
	defer m.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- m.Connect(context.Background()) }()

	<-b.started
	assert.Equal(t, Connecting, m.State().Status)
	m.Disconnect()
	close(b.gate)

	assert.ErrorIs(t, <-errCh, ErrSuperseded)
	assert.Equal(t, Disconnected, m.State().Status)
	assert.Zero(t, clock.Pending())
}

func TestLateCommandReplyAfterIdleTimeout(t *testing.T) {
	b := &fakeBackend{connectStatus: "success"}
	m, clock := newTestManager(b)
	defer m.Close()
	require.NoError(t, m.Connect(context.Background()))

	b.gate = make(chan struct{})
	b.started = make(chan struct{}, 1)

	errCh := make(chan error, 1)
	go func() {
		_, err := m.SendCommand(context.Background(), client.CommandForward, Params{Speed: 50})
		errCh <- err
	}()

	<-b.started
	clock.Advance(30 * time.Second)
	assert.Equal(t, Disconnected, m.State().Status)
	close(b.gate)

	assert.ErrorIs(t, <-errCh, ErrSuperseded)
	assert.Equal(t, Disconnected, m.State().Status)
}

func TestSubscribeAndClose(t *testing.T) {
	b := &fakeBackend{connectStatus: "success"}
	m, _ := newTestManager(b)

	updates := m.Subscribe()
	require.NoError(t, m.Connect(context.Background()))

	first := <-updates
	assert.Equal(t, Connecting, first.Status)
	second := <-updates
	assert.Equal(t, Connected, second.Status)

	m.Close()
	_, open := <-updates
	assert.False(t, open)

	_, applied := m.Apply(Event{Type: EventDisconnect})
	assert.False(t, applied, "closed manager ignores events")
}

func TestSlowSubscriberSeesLatest(t *testing.T) {
	m, _ := newTestManager(&fakeBackend{connectStatus: "success"})
	defer m.Close()
	updates := m.Subscribe()

	var last State
	for i := 0; i < 20; i++ {
		last, _ = m.Apply(Event{Type: EventConnectStarted})
	}

	var got State
	n := 0
	for {
		select {
		case got = <-updates:
			n++
			continue
		default:
		}
		break
	}
	assert.Equal(t, last.Generation, got.Generation)
	assert.LessOrEqual(t, n, 8)
}
