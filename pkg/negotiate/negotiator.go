package negotiate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
	"visagateway/pkg/scpi"
	"visagateway/pkg/transport"
)

// OpenError reports that the transport handle could not be opened at all.
// Distinct from exhaustion: nothing was probed and nothing needs closing.
type OpenError struct {
	Resource string
	Err      error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open transport %s: %v", e.Resource, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// ExhaustedError reports that every candidate profile/probe combination
// failed. The transport handle is guaranteed closed before this is returned.
type ExhaustedError struct {
	Resource string
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("negotiation exhausted for %s after %d probe attempts", e.Resource, e.Attempts)
}

func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}

func IsOpenError(err error) bool {
	var oe *OpenError
	return errors.As(err, &oe)
}

// Result is a successful negotiation: the bound handle, the raw identity
// response, the profile that elicited it and the probe attempts spent.
// Ownership of Conn passes to the caller.
type Result struct {
	Conn     transport.Conn
	Identity string
	Profile  transport.Profile
	Attempts int
}

type attemptOutcome int

const (
	attemptAccepted attemptOutcome = iota
	attemptTimeout
	attemptError
)

type Option func(*Negotiator)

func WithCandidateSpace(space CandidateSpace) Option {
	return func(n *Negotiator) {
		n.space = space
	}
}

func WithProbeProtocol(protocol *scpi.ProbeProtocol) Option {
	return func(n *Negotiator) {
		n.protocol = protocol
	}
}

func WithAttemptTimeout(timeout time.Duration) Option {
	return func(n *Negotiator) {
		n.attemptTimeout = timeout
	}
}

// Negotiator opens a serial transport once and walks the candidate space,
// reconfiguring and probing the same handle until the instrument answers or
// the space is exhausted.
type Negotiator struct {
	opener         transport.Opener
	space          CandidateSpace
	protocol       *scpi.ProbeProtocol
	attemptTimeout time.Duration
	attempts       *atomic.Int64
}

func NewNegotiator(opener transport.Opener, opts ...Option) *Negotiator {
	n := &Negotiator{
		opener:         opener,
		space:          DefaultCandidateSpace(),
		protocol:       scpi.DefaultProbeProtocol(),
		attemptTimeout: transport.DefaultSerialTimeout,
		attempts:       atomic.NewInt64(0),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Attempts is the lifetime probe-attempt count, readable while a scan is in
// flight.
func (n *Negotiator) Attempts() int64 {
	return n.attempts.Load()
}

// MaxAttempts bounds a single negotiation: candidates times probe variants.
func (n *Negotiator) MaxAttempts() int {
	return n.space.Size() * len(n.protocol.Probes)
}

// Negotiate runs the search. The handle is opened exactly once; on success it
// is handed to the caller, on exhaustion or cancellation it is closed exactly
// once before returning.
func (n *Negotiator) Negotiate(ctx context.Context, resource string) (*Result, error) {
	conn, err := n.opener.Open(resource)
	if err != nil {
		return nil, &OpenError{Resource: resource, Err: err}
	}

	attempts := 0
	for _, profile := range n.space.Profiles(n.attemptTimeout) {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			klog.V(2).InfoS("Negotiation cancelled", "resource", resource, "attempts", attempts)
			return nil, ctx.Err()
		default:
		}

		// Best-effort: a backend that cannot express some parameter ignores it.
		if err := conn.Configure(profile); err != nil {
			klog.V(5).InfoS("Candidate profile rejected by backend", "resource", resource, "baudRate", profile.BaudRate, "err", err)
		}
		_ = conn.Flush()

		for _, probe := range n.protocol.Probes {
			attempts++
			n.attempts.Inc()
			identity, outcome := n.probe(ctx, conn, probe)
			if outcome == attemptAccepted {
				klog.V(2).InfoS("Serial negotiation bound", "resource", resource,
					"baudRate", profile.BaudRate, "attempts", attempts, "identity", identity)
				return &Result{Conn: conn, Identity: identity, Profile: profile, Attempts: attempts}, nil
			}
		}
	}

	_ = conn.Close()
	klog.V(2).InfoS("Serial negotiation exhausted", "resource", resource, "attempts", attempts)
	return nil, &ExhaustedError{Resource: resource, Attempts: attempts}
}

// probe issues one query under the per-attempt deadline. A timeout or write
// failure is an expected per-attempt outcome, not an error to surface.
func (n *Negotiator) probe(ctx context.Context, conn transport.Conn, probe string) (string, attemptOutcome) {
	attemptCtx, cancel := context.WithTimeout(ctx, n.attemptTimeout)
	defer cancel()

	if err := conn.WriteString(attemptCtx, probe); err != nil {
		return "", attemptError
	}
	response, err := conn.ReadString(attemptCtx)
	if err != nil {
		if errors.Is(err, transport.ErrReadTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return "", attemptTimeout
		}
		return "", attemptError
	}
	if !n.protocol.Accept(response) {
		return "", attemptTimeout
	}
	return strings.TrimSpace(response), attemptAccepted
}
