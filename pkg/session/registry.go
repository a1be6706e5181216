package session

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"
	"visagateway/pkg/dialect"
	"visagateway/pkg/negotiate"
	"visagateway/pkg/scpi"
	"visagateway/pkg/transport"
)

var (
	// ErrConflict defends the one-session-per-identifier invariant. Connect's
	// idempotent-activation rule should make it unreachable.
	ErrConflict = errors.New("session already bound for resource")
)

type Option func(*Registry)

func WithPacketProfile(profile transport.Profile) Option {
	return func(r *Registry) {
		r.packetProfile = profile
	}
}

func WithProbeProtocol(protocol *scpi.ProbeProtocol) Option {
	return func(r *Registry) {
		r.protocol = protocol
	}
}

// Registry is the keyed store of live sessions. The map and the active
// pointer are the only state mutated from multiple call sites; one mutex
// serializes those mutations, and negotiation always runs outside it.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	inflight map[string]chan struct{}
	active   string

	negotiator    *negotiate.Negotiator
	packetOpener  transport.Opener
	catalog       *dialect.Catalog
	protocol      *scpi.ProbeProtocol
	packetProfile transport.Profile

	observerMu sync.Mutex
	observers  []Observer
}

func NewRegistry(negotiator *negotiate.Negotiator, packetOpener transport.Opener, catalog *dialect.Catalog, opts ...Option) *Registry {
	r := &Registry{
		sessions:      make(map[string]*Session),
		inflight:      make(map[string]chan struct{}),
		negotiator:    negotiator,
		packetOpener:  packetOpener,
		catalog:       catalog,
		protocol:      scpi.DefaultProbeProtocol(),
		packetProfile: transport.DefaultPacketProfile(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) AddObserver(o Observer) {
	r.observerMu.Lock()
	defer r.observerMu.Unlock()
	r.observers = append(r.observers, o)
}

// Connect binds a resource identifier to a live session. If the identifier is
// already connected the existing session is returned unchanged and no
// transport is opened. Concurrent calls for the same identifier share one
// negotiation.
func (r *Registry) Connect(ctx context.Context, resource string) (*Session, error) {
	resource = strings.TrimSpace(resource)

	for {
		r.mu.Lock()
		if s, ok := r.sessions[resource]; ok {
			r.mu.Unlock()
			klog.V(3).InfoS("Reusing existing session", "resource", resource)
			return s, nil
		}
		ch, busy := r.inflight[resource]
		if !busy {
			ch = make(chan struct{})
			r.inflight[resource] = ch
			r.mu.Unlock()
			break
		}
		r.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ch:
			// The other caller finished; loop to pick up its session or retry.
		}
	}

	s, err := r.connect(ctx, resource)

	r.mu.Lock()
	if s != nil {
		if _, exists := r.sessions[resource]; exists {
			r.mu.Unlock()
			_ = s.close()
			return nil, ErrConflict
		}
		r.sessions[resource] = s
	}
	ch := r.inflight[resource]
	delete(r.inflight, resource)
	r.mu.Unlock()
	close(ch)

	if err != nil {
		return nil, err
	}
	r.notify(Event{Type: EventConnected, Resource: resource, Identity: s.identity, Timestamp: time.Now(), Session: s})
	return s, nil
}

func (r *Registry) connect(ctx context.Context, resource string) (*Session, error) {
	kind := transport.KindOf(resource)
	if kind == transport.Serial {
		result, err := r.negotiator.Negotiate(ctx, resource)
		if err != nil {
			return nil, err
		}
		d := r.catalog.Resolve(result.Identity)
		return newSession(resource, kind, result.Identity, result.Profile, d, result.Conn), nil
	}

	// Packet transports self-describe framing: one fixed profile, one probe,
	// no retry. A silent instrument keeps its session with an empty identity.
	conn, err := r.packetOpener.Open(resource)
	if err != nil {
		return nil, &negotiate.OpenError{Resource: resource, Err: err}
	}
	if err := conn.Configure(r.packetProfile); err != nil {
		klog.V(4).InfoS("Packet profile rejected by backend", "resource", resource, "err", err)
	}
	_ = conn.Flush()

	probeCtx, cancel := context.WithTimeout(ctx, r.packetProfile.Timeout)
	identity, err := transport.Query(probeCtx, conn, r.protocol.Probes[0])
	cancel()
	if err != nil {
		klog.V(2).InfoS("Packet probe yielded no identity", "resource", resource, "err", err)
		identity = ""
	}
	identity = strings.TrimSpace(identity)
	d := r.catalog.Resolve(identity)
	return newSession(resource, kind, identity, r.packetProfile, d, conn), nil
}

// Activate marks an already-connected session as the current one.
func (r *Registry) Activate(resource string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[resource]
	if !ok {
		r.mu.Unlock()
		return nil, os.ErrNotExist
	}
	r.active = resource
	r.mu.Unlock()

	r.notify(Event{Type: EventActivated, Resource: resource, Identity: s.identity, Label: s.Label(), Timestamp: time.Now(), Session: s})
	return s, nil
}

// Disconnect closes the transport handle and removes the session. A second
// disconnect for the same identifier is a no-op, not an error.
func (r *Registry) Disconnect(resource string) error {
	r.mu.Lock()
	s, ok := r.sessions[resource]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.sessions, resource)
	if r.active == resource {
		r.active = ""
	}
	r.mu.Unlock()

	if err := s.close(); err != nil {
		klog.V(2).InfoS("Failed to close transport", "resource", resource, "err", err)
	}
	r.notify(Event{Type: EventDisconnected, Resource: resource, Identity: s.identity, Timestamp: time.Now()})
	return nil
}

// SetLabel updates the session's user-assigned label.
func (r *Registry) SetLabel(resource string, label string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[resource]
	r.mu.Unlock()
	if !ok {
		return nil, os.ErrNotExist
	}
	s.setLabel(label)
	r.notify(Event{Type: EventLabelChanged, Resource: resource, Identity: s.identity, Label: label, Timestamp: time.Now(), Session: s})
	return s, nil
}

// List snapshots all live sessions ordered by resource identifier.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].resource < out[j].resource })
	return out
}

// Active returns the current session, or nil if none is active.
func (r *Registry) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == "" {
		return nil
	}
	return r.sessions[r.active]
}

// Get looks a session up by resource identifier.
func (r *Registry) Get(resource string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[resource]
	return s, ok
}

// GetByID looks a session up by its opaque session ID.
func (r *Registry) GetByID(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.id == id {
			return s, true
		}
	}
	return nil, false
}

// ProbeAttempts is the lifetime probe-attempt count across all negotiations,
// readable while a scan is in flight.
func (r *Registry) ProbeAttempts() int64 {
	return r.negotiator.Attempts()
}

// MaxProbeAttempts bounds a single negotiation.
func (r *Registry) MaxProbeAttempts() int {
	return r.negotiator.MaxAttempts()
}

// Shutdown disconnects every live session.
func (r *Registry) Shutdown(ctx context.Context) {
	for _, s := range r.List() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = r.Disconnect(s.resource)
	}
}

func (r *Registry) notify(event Event) {
	if !EventTypes.Has(string(event.Type)) {
		klog.V(2).InfoS("Dropped event of unknown type", "type", event.Type, "resource", event.Resource)
		return
	}
	r.observerMu.Lock()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.observerMu.Unlock()
	for _, o := range observers {
		o.OnSessionChanged(event)
	}
}
