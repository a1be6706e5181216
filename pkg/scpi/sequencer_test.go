package scpi

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"visagateway/pkg/transport"
)

type scriptedConn struct {
	writes    []string
	failures  map[string]error
	responses map[string][]string
	lastCmd   string
}

func newScriptedConn() *scriptedConn {
	return &scriptedConn{
		failures:  make(map[string]error),
		responses: make(map[string][]string),
	}
}

func (c *scriptedConn) Configure(transport.Profile) error { return nil }
func (c *scriptedConn) Flush() error                      { return nil }
func (c *scriptedConn) Close() error                      { return nil }

func (c *scriptedConn) WriteString(ctx context.Context, s string) error {
	if err, ok := c.failures[s]; ok {
		return err
	}
	c.writes = append(c.writes, s)
	c.lastCmd = s
	return nil
}

func (c *scriptedConn) ReadString(ctx context.Context) (string, error) {
	queued, ok := c.responses[c.lastCmd]
	if !ok || len(queued) == 0 {
		return "", transport.ErrReadTimeout
	}
	resp := queued[0]
	c.responses[c.lastCmd] = queued[1:]
	return resp, nil
}

func TestTrySequenceFirstVariantWins(t *testing.T) {
	conn := newScriptedConn()
	err := TrySequence(context.Background(), conn, []CommandList{
		{"INST:NSEL 1", "SOUR:VOLT 12.5"},
		{"INST:NSEL 1", "VOLT 12.5"},
	})
	require.NoError(t, err)
	// The second variant must never run once the first list completed.
	assert.Equal(t, []string{"INST:NSEL 1", "SOUR:VOLT 12.5"}, conn.writes)
}

func TestTrySequenceFallsBack(t *testing.T) {
	conn := newScriptedConn()
	conn.failures["SOUR:VOLT 12.5"] = errors.New("write: broken pipe")

	err := TrySequence(context.Background(), conn, []CommandList{
		{"INST:NSEL 1", "SOUR:VOLT 12.5"},
		{"INST:NSEL 1", "VOLT 12.5"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"INST:NSEL 1", "INST:NSEL 1", "VOLT 12.5"}, conn.writes)
}

func TestTrySequenceExhausted(t *testing.T) {
	conn := newScriptedConn()
	first := errors.New("first failure")
	last := errors.New("last failure")
	conn.failures["SOUR:VOLT 5"] = first
	conn.failures["VOLT 5"] = last

	err := TrySequence(context.Background(), conn, []CommandList{
		{"SOUR:VOLT 5"},
		{"VOLT 5"},
	})
	require.Error(t, err)

	var ve *VariantsExhaustedError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "VOLT 5", ve.LastCommand)
	assert.ErrorIs(t, err, last)
	assert.NotErrorIs(t, err, first)
}

func TestTryQuery(t *testing.T) {
	conn := newScriptedConn()
	conn.responses["VOLT?"] = []string{" 12.498 \n"}

	value, err := TryQuery(context.Background(), conn, []string{"SOUR:VOLT?", "VOLT?"})
	require.NoError(t, err)
	assert.Equal(t, "12.498", value)
}

func TestTryQueryExhausted(t *testing.T) {
	conn := newScriptedConn()

	_, err := TryQuery(context.Background(), conn, []string{"RU1"})
	require.Error(t, err)

	var ve *VariantsExhaustedError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "RU1", ve.LastCommand)
}

func TestDrainErrorQueue(t *testing.T) {
	conn := newScriptedConn()
	conn.responses["SYST:ERR?"] = []string{
		`-113,"Undefined header"`,
		`-410,"Query INTERRUPTED"`,
		`+0,"No error"`,
		`-999,"never reached"`,
	}

	drained := DrainErrorQueue(context.Background(), conn, 10)
	assert.Equal(t, []string{`-113,"Undefined header"`, `-410,"Query INTERRUPTED"`}, drained)
}

func TestDrainErrorQueueBounded(t *testing.T) {
	conn := newScriptedConn()
	conn.responses["SYST:ERR?"] = []string{"-100,\"a\"", "-100,\"b\"", "-100,\"c\""}

	drained := DrainErrorQueue(context.Background(), conn, 2)
	assert.Len(t, drained, 2)
}

func TestProbeProtocolAccept(t *testing.T) {
	p := DefaultProbeProtocol()
	assert.True(t, p.Accept("KEITHLEY INSTRUMENTS INC.,MODEL 2000,1234567,A20"))
	assert.False(t, p.Accept("   \r\n"))
	assert.False(t, p.Accept(""))
}
