package tcpport

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"visagateway/pkg/transport"
)

// Raw socket SCPI port used by most LAN instruments.
const defaultSCPIPort = "5025"

var _ transport.Opener = (*Opener)(nil)
var _ transport.Conn = (*Conn)(nil)

// Opener dials TCPIP resources (TCPIP::<host>::INSTR, TCPIP::<host>::<port>::SOCKET).
type Opener struct {
	DialTimeout time.Duration
}

func (o *Opener) Open(resource string) (transport.Conn, error) {
	addr, err := Address(resource)
	if err != nil {
		return nil, err
	}
	dialTimeout := o.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	tunnel, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		klog.V(2).InfoS("Failed to dial instrument socket", "resource", resource, "addr", addr, "err", err)
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	return &Conn{
		tunnel:  tunnel,
		profile: transport.DefaultPacketProfile(),
	}, nil
}

// Address extracts host:port from a TCPIP resource identifier.
func Address(resource string) (string, error) {
	parts := strings.Split(strings.TrimSpace(resource), "::")
	if len(parts) < 2 || !strings.HasPrefix(strings.ToUpper(parts[0]), "TCPIP") {
		return "", errors.Errorf("unsupported packet resource: %s", resource)
	}
	host := parts[1]
	port := defaultSCPIPort
	if len(parts) >= 3 && strings.ToUpper(parts[len(parts)-1]) == "SOCKET" {
		port = parts[2]
	}
	return net.JoinHostPort(host, port), nil
}

// Conn adapts a TCP tunnel to the transport.Conn contract.
type Conn struct {
	tunnel  net.Conn
	profile transport.Profile
	closed  bool
}

func (c *Conn) Configure(profile transport.Profile) error {
	if c.closed {
		return transport.ErrConnClosed
	}
	// Serial line parameters do not apply to a socket; only terminators and
	// the timeout are honored.
	if len(profile.WriteTermination) > 0 {
		c.profile.WriteTermination = profile.WriteTermination
	}
	if len(profile.ReadTermination) > 0 {
		c.profile.ReadTermination = profile.ReadTermination
	}
	if profile.Timeout > 0 {
		c.profile.Timeout = profile.Timeout
	}
	return nil
}

func (c *Conn) Flush() error {
	if c.closed {
		return transport.ErrConnClosed
	}
	// Drain whatever the instrument already pushed without blocking for more.
	_ = c.tunnel.SetReadDeadline(time.Now().Add(time.Millisecond))
	buf := make([]byte, 512)
	for {
		n, err := c.tunnel.Read(buf)
		if err != nil || n == 0 {
			break
		}
	}
	return nil
}

func (c *Conn) WriteString(ctx context.Context, s string) error {
	if c.closed {
		return transport.ErrConnClosed
	}
	deadline := time.Now().Add(c.profile.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.tunnel.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := c.tunnel.Write([]byte(s + c.profile.WriteTermination))
	if err != nil {
		klog.V(4).InfoS("Failed to write to instrument socket", "err", err)
	}
	return err
}

func (c *Conn) ReadString(ctx context.Context) (string, error) {
	if c.closed {
		return "", transport.ErrConnClosed
	}
	deadline := time.Now().Add(c.profile.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.tunnel.SetReadDeadline(deadline); err != nil {
		return "", err
	}

	terminator := []byte(c.profile.ReadTermination)
	buf := make([]byte, 256)
	var out []byte
	for {
		n, err := c.tunnel.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
			if len(terminator) > 0 && strings.HasSuffix(string(out), string(terminator)) {
				return string(out[:len(out)-len(terminator)]), nil
			}
		}
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				if len(out) == 0 {
					return "", transport.ErrReadTimeout
				}
				return string(out), nil
			}
			klog.V(4).InfoS("Failed to read from instrument socket", "err", err)
			return "", err
		}
	}
}

func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.tunnel.Close()
}
