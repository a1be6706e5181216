package session

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"visagateway/pkg/dialect"
	"visagateway/pkg/transport"
	"visagateway/pkg/utils/randutil"
	"visagateway/pkg/utils/uuidutil"
)

// Session is the binding produced by a successful connect: the resource
// identifier, the open transport handle, the identity string captured once at
// negotiation, a mutable user label and the dialect resolved from the
// identity. Identity and dialect change only across a reconnect.
type Session struct {
	id        string
	resource  string
	kind      transport.Kind
	identity  string
	profile   transport.Profile
	dialect   dialect.Dialect
	conn      transport.Conn
	createdAt time.Time

	mu      sync.Mutex
	label   string
	version string

	// ioMu serializes logical operations: the line protocol is half-duplex
	// request/response with no multiplexing.
	ioMu sync.Mutex
}

func newSession(resource string, kind transport.Kind, identity string, profile transport.Profile, d dialect.Dialect, conn transport.Conn) *Session {
	return &Session{
		id:        uuidutil.UUID(),
		resource:  resource,
		kind:      kind,
		identity:  identity,
		profile:   profile,
		dialect:   d,
		conn:      conn,
		createdAt: time.Now(),
		version:   strconv.FormatUint(randutil.Uint64n(), 10),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Resource() string { return s.resource }

func (s *Session) Kind() transport.Kind { return s.kind }

func (s *Session) Identity() string { return s.identity }

func (s *Session) Profile() transport.Profile { return s.profile }

func (s *Session) Dialect() dialect.Dialect { return s.dialect }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) Label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.label
}

func (s *Session) setLabel(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label = label
	s.version = strconv.FormatUint(randutil.Uint64n(), 10)
}

// Version changes with every label mutation and backs ETag/If-Match on the
// REST surface.
func (s *Session) Version() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Do runs one logical operation against the session's transport with
// exclusive access to the line.
func (s *Session) Do(ctx context.Context, fn func(conn transport.Conn) error) error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return fn(s.conn)
}

func (s *Session) close() error {
	return s.conn.Close()
}

func (s *Session) MarshalJSON() ([]byte, error) {
	var dialectName string
	var channels []string
	if s.dialect != nil {
		dialectName = s.dialect.Name()
		channels = s.dialect.Channels()
	}
	return json.Marshal(&struct {
		ID        string    `json:"id"`
		Resource  string    `json:"resource"`
		Kind      string    `json:"kind"`
		Identity  string    `json:"identity,omitempty"`
		Label     string    `json:"label,omitempty"`
		Dialect   string    `json:"dialect,omitempty"`
		Channels  []string  `json:"channels,omitempty"`
		ETag      string    `json:"eTag"`
		CreatedAt time.Time `json:"createdAt"`
	}{
		ID:        s.id,
		Resource:  s.resource,
		Kind:      transport.KindToString[s.kind],
		Identity:  s.identity,
		Label:     s.Label(),
		Dialect:   dialectName,
		Channels:  channels,
		ETag:      s.Version(),
		CreatedAt: s.createdAt,
	})
}
