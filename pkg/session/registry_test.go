package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"visagateway/pkg/dialect"
	"visagateway/pkg/negotiate"
	"visagateway/pkg/scpi"
	"visagateway/pkg/transport"
)

type fakeConn struct {
	mu       sync.Mutex
	identity string
	silent   bool
	lastCmd  string
	closes   int
}

func (c *fakeConn) Configure(transport.Profile) error { return nil }
func (c *fakeConn) Flush() error                      { return nil }

func (c *fakeConn) WriteString(ctx context.Context, s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCmd = s
	return nil
}

func (c *fakeConn) ReadString(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.silent {
		return "", transport.ErrReadTimeout
	}
	return c.identity + "\n", nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

type fakeOpener struct {
	mu       sync.Mutex
	identity string
	silent   bool
	opens    int
	conns    []*fakeConn
}

func (o *fakeOpener) Open(resource string) (transport.Conn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	conn := &fakeConn{identity: o.identity, silent: o.silent}
	o.conns = append(o.conns, conn)
	return conn, nil
}

func newTestRegistry(identity string) (*Registry, *fakeOpener, *fakeOpener) {
	serial := &fakeOpener{identity: identity}
	packet := &fakeOpener{identity: identity}
	negotiator := negotiate.NewNegotiator(serial,
		negotiate.WithProbeProtocol(&scpi.ProbeProtocol{Probes: []string{"*IDN?"}}),
		negotiate.WithAttemptTimeout(10*time.Millisecond),
	)
	r := NewRegistry(negotiator, packet, dialect.Builtin())
	return r, serial, packet
}

func TestConnectIdempotent(t *testing.T) {
	r, serial, _ := newTestRegistry("ROHDE&SCHWARZ,HMP4040,103245,2.41")

	first, err := r.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)
	second, err := r.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, serial.opens, "reconnecting an identifier must not reopen the transport")
	assert.Equal(t, "ROHDE&SCHWARZ,HMP4040,103245,2.41", first.Identity())
	require.NotNil(t, first.Dialect())
	assert.Equal(t, "HMP4040", first.Dialect().Name())
}

func TestConnectConcurrent(t *testing.T) {
	r, serial, _ := newTestRegistry("ROHDE&SCHWARZ,HMP4040,103245,2.41")

	var wg sync.WaitGroup
	sessions := make([]*Session, 8)
	errs := make([]error, len(sessions))
	for i := 0; i < len(sessions); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = r.Connect(context.Background(), "ASRL3::INSTR")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, 1, serial.opens, "concurrent connects must share one negotiation")
	for _, s := range sessions[1:] {
		assert.Same(t, sessions[0], s)
	}
}

func TestConnectExhaustedLeavesNoSession(t *testing.T) {
	r, serial, _ := newTestRegistry("")
	serial.silent = true

	_, err := r.Connect(context.Background(), "ASRL3::INSTR")
	require.Error(t, err)
	assert.True(t, negotiate.IsExhausted(err))
	assert.Empty(t, r.List())

	// The identifier is retryable after a failed connect.
	serial.silent = false
	serial.identity = "HAMEG,HM8143,001,1.32"
	s, err := r.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)
	assert.Equal(t, "HAMEG,HM8143,001,1.32", s.Identity())
}

func TestPacketSilentInstrumentKeepsSession(t *testing.T) {
	r, _, packet := newTestRegistry("")
	packet.silent = true

	s, err := r.Connect(context.Background(), "TCPIP::10.0.0.7::INSTR")
	require.NoError(t, err)
	assert.Equal(t, transport.Packet, s.Kind())
	assert.Empty(t, s.Identity())
	assert.Nil(t, s.Dialect(), "no identity, no dialect, controls disabled")
	assert.Len(t, r.List(), 1)
}

func TestActivate(t *testing.T) {
	r, _, _ := newTestRegistry("Agilent Technologies,E3631A,0,1.4")

	_, err := r.Activate("ASRL3::INSTR")
	require.Error(t, err, "activating an unconnected identifier must fail")
	assert.Nil(t, r.Active())

	_, err = r.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)

	s, err := r.Activate("ASRL3::INSTR")
	require.NoError(t, err)
	assert.Same(t, s, r.Active())

	require.NoError(t, r.Disconnect("ASRL3::INSTR"))
	assert.Nil(t, r.Active(), "disconnect clears the active pointer")
}

func TestDisconnectIdempotent(t *testing.T) {
	r, serial, _ := newTestRegistry("HAMEG,HM8143,001,1.32")

	_, err := r.Connect(context.Background(), "ASRL4::INSTR")
	require.NoError(t, err)

	require.NoError(t, r.Disconnect("ASRL4::INSTR"))
	require.NoError(t, r.Disconnect("ASRL4::INSTR"), "second disconnect is a no-op")
	require.NoError(t, r.Disconnect("ASRL9::INSTR"), "unknown identifier is a no-op")

	require.Len(t, serial.conns, 1)
	assert.Equal(t, 1, serial.conns[0].closes)
	assert.Empty(t, r.List())
}

func TestListOrdering(t *testing.T) {
	r, _, _ := newTestRegistry("ROHDE&SCHWARZ,HMP4040,103245,2.41")

	for _, resource := range []string{"ASRL9::INSTR", "ASRL1::INSTR", "TCPIP::10.0.0.7::INSTR"} {
		_, err := r.Connect(context.Background(), resource)
		require.NoError(t, err)
	}

	listed := r.List()
	require.Len(t, listed, 3)
	assert.Equal(t, "ASRL1::INSTR", listed[0].Resource())
	assert.Equal(t, "ASRL9::INSTR", listed[1].Resource())
	assert.Equal(t, "TCPIP::10.0.0.7::INSTR", listed[2].Resource())
}

func TestSetLabelBumpsVersion(t *testing.T) {
	r, _, _ := newTestRegistry("ROHDE&SCHWARZ,HMP4040,103245,2.41")

	s, err := r.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)
	before := s.Version()

	updated, err := r.SetLabel("ASRL3::INSTR", "bench PSU left")
	require.NoError(t, err)
	assert.Equal(t, "bench PSU left", updated.Label())
	assert.NotEqual(t, before, updated.Version())

	_, err = r.SetLabel("ASRL8::INSTR", "nope")
	require.Error(t, err)
}

func TestObserverEvents(t *testing.T) {
	r, _, _ := newTestRegistry("ROHDE&SCHWARZ,HMP4040,103245,2.41")

	var mu sync.Mutex
	var events []Event
	r.AddObserver(ObserverFunc(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}))

	_, err := r.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)
	_, err = r.Activate("ASRL3::INSTR")
	require.NoError(t, err)
	_, err = r.SetLabel("ASRL3::INSTR", "psu")
	require.NoError(t, err)
	require.NoError(t, r.Disconnect("ASRL3::INSTR"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 4)
	assert.Equal(t, EventConnected, events[0].Type)
	assert.Equal(t, EventActivated, events[1].Type)
	assert.Equal(t, EventLabelChanged, events[2].Type)
	assert.Equal(t, "psu", events[2].Label)
	assert.Equal(t, EventDisconnected, events[3].Type)
	for _, e := range events {
		assert.Equal(t, "ASRL3::INSTR", e.Resource)
	}
}

func TestNotifyDropsUnknownEventType(t *testing.T) {
	r, _, _ := newTestRegistry("ROHDE&SCHWARZ,HMP4040,103245,2.41")

	var events []Event
	r.AddObserver(ObserverFunc(func(e Event) {
		events = append(events, e)
	}))

	r.notify(Event{Type: "rebooted", Resource: "ASRL3::INSTR", Timestamp: time.Now()})
	assert.Empty(t, events)

	_, err := r.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventConnected, events[0].Type)
}

func TestProbeAttemptsReadable(t *testing.T) {
	r, _, _ := newTestRegistry("ROHDE&SCHWARZ,HMP4040,103245,2.41")

	assert.Zero(t, r.ProbeAttempts())
	assert.Equal(t, negotiate.DefaultCandidateSpace().Size(), r.MaxProbeAttempts())

	_, err := r.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)
	assert.EqualValues(t, 1, r.ProbeAttempts(), "instrument answered the first probe")
}

func TestGetByID(t *testing.T) {
	r, _, _ := newTestRegistry("ROHDE&SCHWARZ,HMP4040,103245,2.41")

	s, err := r.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)

	found, ok := r.GetByID(s.ID())
	require.True(t, ok)
	assert.Same(t, s, found)

	_, ok = r.GetByID("missing")
	assert.False(t, ok)
}

func TestShutdownDisconnectsAll(t *testing.T) {
	r, serial, packet := newTestRegistry("ROHDE&SCHWARZ,HMP4040,103245,2.41")

	_, err := r.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)
	_, err = r.Connect(context.Background(), "TCPIP::10.0.0.7::INSTR")
	require.NoError(t, err)

	r.Shutdown(context.Background())
	assert.Empty(t, r.List())
	assert.Equal(t, 1, serial.conns[0].closes)
	assert.Equal(t, 1, packet.conns[0].closes)
}
