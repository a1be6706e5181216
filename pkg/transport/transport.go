package transport

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Kind classifies a VISA resource identifier by its transport segment.
type Kind int

const (
	// Serial denotes an RS-232-like link whose line parameters must be negotiated.
	Serial Kind = iota
	// Packet denotes a self-framing transport (TCPIP, GPIB, USB) opened with fixed defaults.
	Packet
)

var KindToString = map[Kind]string{
	Serial: "serial",
	Packet: "packet",
}

var StringToKind = map[string]Kind{
	"serial": Serial,
	"packet": Packet,
}

// KindOf classifies a resource identifier. Any identifier whose transport
// segment starts with ASRL (case-insensitive) is Serial; all others are Packet.
func KindOf(resource string) Kind {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(resource)), "ASRL") {
		return Serial
	}
	return Packet
}

var (
	ErrConnClosed  = errors.New("transport connection closed")
	ErrReadTimeout = errors.New("read deadline elapsed with no response")
)

// Conn is a bidirectional, line-oriented instrument connection. Implementations
// are not safe for concurrent use; the owning session serializes operations.
type Conn interface {
	// Configure applies the profile to the already-open handle. Parameters the
	// backend cannot express are ignored.
	Configure(profile Profile) error
	// Flush discards any pending input so a stale reply cannot satisfy the next read.
	Flush() error
	WriteString(ctx context.Context, s string) error
	ReadString(ctx context.Context) (string, error)
	Close() error
}

// Opener turns a resource identifier into an open Conn. It is injected into
// the negotiator and registry so both can run against a fake transport.
type Opener interface {
	Open(resource string) (Conn, error)
}

// Query writes a command and reads one reply on the same connection.
func Query(ctx context.Context, conn Conn, cmd string) (string, error) {
	if err := conn.WriteString(ctx, cmd); err != nil {
		return "", err
	}
	return conn.ReadString(ctx)
}

const (
	DefaultSerialTimeout = 500 * time.Millisecond
	DefaultPacketTimeout = 1 * time.Second
)

// DefaultPacketProfile is the single fixed profile used for packet transports.
func DefaultPacketProfile() Profile {
	return Profile{
		WriteTermination: "\n",
		ReadTermination:  "\n",
		Timeout:          DefaultPacketTimeout,
	}
}
