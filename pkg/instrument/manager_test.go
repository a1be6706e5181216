package instrument

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"visagateway/pkg/apis"
	"visagateway/pkg/apis/response"
	"visagateway/pkg/dialect"
	"visagateway/pkg/negotiate"
	"visagateway/pkg/scpi"
	"visagateway/pkg/session"
	"visagateway/pkg/transport"
)

type fakeConn struct {
	mu        sync.Mutex
	identity  string
	responses map[string]string
	writes    []string
	lastCmd   string
}

func (c *fakeConn) Configure(transport.Profile) error { return nil }
func (c *fakeConn) Flush() error                      { return nil }
func (c *fakeConn) Close() error                      { return nil }

func (c *fakeConn) WriteString(ctx context.Context, s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, s)
	c.lastCmd = s
	return nil
}

func (c *fakeConn) ReadString(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if resp, ok := c.responses[c.lastCmd]; ok {
		return resp, nil
	}
	if c.lastCmd == "*IDN?" {
		return c.identity + "\n", nil
	}
	return "", transport.ErrReadTimeout
}

type fakeOpener struct {
	conn *fakeConn
}

func (o *fakeOpener) Open(resource string) (transport.Conn, error) {
	return o.conn, nil
}

func newTestManager(identity string) (*Manager, *fakeConn) {
	conn := &fakeConn{identity: identity, responses: map[string]string{}}
	opener := &fakeOpener{conn: conn}
	negotiator := negotiate.NewNegotiator(opener,
		negotiate.WithProbeProtocol(&scpi.ProbeProtocol{Probes: []string{"*IDN?"}}),
		negotiate.WithAttemptTimeout(10*time.Millisecond),
	)
	registry := session.NewRegistry(negotiator, opener, dialect.Builtin())
	m := NewManager(registry, nil, nil, make(chan struct{}))
	m.Init()
	return m, conn
}

func TestSetQuantity(t *testing.T) {
	m, conn := newTestManager("ROHDE&SCHWARZ,HMP4040,103245,2.41")

	s, err := m.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)

	err = m.SetQuantity(context.Background(), s.ID(), "voltage", "2", "12.50")
	require.NoError(t, err)

	// Probe, then the first syntax variant in full; no fallback, no drain.
	assert.Equal(t, []string{"*IDN?", "INST:NSEL 2", "SOUR:VOLT 12.50"}, conn.writes)
}

func TestQueryQuantity(t *testing.T) {
	m, conn := newTestManager("ROHDE&SCHWARZ,HMP4040,103245,2.41")
	conn.responses["SOUR:VOLT?"] = "12.498\n"

	s, err := m.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)

	value, err := m.QueryQuantity(context.Background(), s.ID(), "voltage", "1")
	require.NoError(t, err)
	assert.Equal(t, "12.498", value)
	assert.Contains(t, conn.writes, "INST:NSEL 1", "channel must be routed before the query")
}

func TestSetQuantityValidation(t *testing.T) {
	m, _ := newTestManager("ROHDE&SCHWARZ,HMP4040,103245,2.41")

	s, err := m.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)

	err = m.SetQuantity(context.Background(), s.ID(), "frequency", "1", "50")
	require.Error(t, err)
	assert.True(t, response.IsResponseError(err))

	err = m.SetQuantity(context.Background(), s.ID(), "voltage", "5", "1")
	require.Error(t, err, "HMP4040 has no channel 5")
	assert.True(t, response.IsResponseError(err))

	err = m.SetQuantity(context.Background(), "missing", "voltage", "1", "1")
	require.Error(t, err)
}

func TestQuantityWithoutDialect(t *testing.T) {
	m, _ := newTestManager("ACME,FROBULATOR,1,0.1")

	s, err := m.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)
	assert.Nil(t, s.Dialect())

	err = m.SetQuantity(context.Background(), s.ID(), "voltage", "1", "5")
	require.Error(t, err)
	assert.True(t, response.IsResponseError(err))
}

func TestShowDisplayText(t *testing.T) {
	m, conn := newTestManager("KEITHLEY INSTRUMENTS INC.,MODEL 2000,1234567,A20")

	s, err := m.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)

	require.NoError(t, m.ShowDisplayText(context.Background(), s.ID(), "TESTING"))
	assert.Equal(t, []string{"*IDN?", "DISP:ENAB ON", "DISP:TEXT:DATA 'TESTING'", "DISP:TEXT:STAT ON"}, conn.writes)

	require.NoError(t, m.ClearDisplay(context.Background(), s.ID()))
	assert.Contains(t, conn.writes, "DISP:TEXT:STAT OFF")
}

func TestSetLabelVersionCheck(t *testing.T) {
	m, _ := newTestManager("ROHDE&SCHWARZ,HMP4040,103245,2.41")

	s, err := m.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)

	_, err = m.SetLabel(s.ID(), "stale", "psu")
	require.ErrorIs(t, err, apis.ErrMismatch)

	updated, err := m.SetLabel(s.ID(), s.Version(), "psu")
	require.NoError(t, err)
	assert.Equal(t, "psu", updated.Label())
}

func TestDisconnectVersionCheck(t *testing.T) {
	m, _ := newTestManager("ROHDE&SCHWARZ,HMP4040,103245,2.41")

	s, err := m.Connect(context.Background(), "ASRL3::INSTR")
	require.NoError(t, err)

	version := s.Version()
	require.ErrorIs(t, m.Disconnect(s.ID(), "stale"), apis.ErrMismatch)
	require.NoError(t, m.Disconnect(s.ID(), version))
	require.ErrorIs(t, m.Disconnect(s.ID(), version), os.ErrNotExist, "gone after disconnect")
}

func TestConnectAllCollectsFailures(t *testing.T) {
	m, _ := newTestManager("ROHDE&SCHWARZ,HMP4040,103245,2.41")

	sessions, errs := m.ConnectAll(context.Background(), []string{"ASRL3::INSTR", "ASRL4::INSTR"})
	assert.Len(t, sessions, 2)
	assert.Nil(t, errs)
}
