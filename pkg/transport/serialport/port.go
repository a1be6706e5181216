package serialport

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"k8s.io/klog/v2"
	"visagateway/pkg/transport"
)

var _ transport.Opener = (*Opener)(nil)
var _ transport.Conn = (*Port)(nil)

// Opener opens ASRL resources on the host serial devices.
type Opener struct {
}

func (o *Opener) Open(resource string) (transport.Conn, error) {
	device, err := DevicePath(resource)
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		klog.V(2).InfoS("Failed to open serial device", "resource", resource, "device", device, "err", err)
		return nil, errors.Wrapf(err, "open serial device %s", device)
	}
	return &Port{
		port: port,
		profile: transport.Profile{
			BaudRate:         mode.BaudRate,
			DataBits:         mode.DataBits,
			WriteTermination: "\n",
			ReadTermination:  "\n",
			Timeout:          transport.DefaultSerialTimeout,
		},
	}, nil
}

// DevicePath maps an ASRL resource identifier to an OS serial device path.
// Numeric forms (ASRL3::INSTR) follow the VISA convention of COM<n> on Windows
// and /dev/ttyS<n-1> elsewhere; non-numeric forms (ASRL/dev/ttyUSB0::INSTR)
// name the device directly.
func DevicePath(resource string) (string, error) {
	trimmed := strings.TrimSpace(resource)
	if !strings.HasPrefix(strings.ToUpper(trimmed), "ASRL") {
		return "", errors.Errorf("not a serial resource: %s", resource)
	}
	seg := trimmed[len("ASRL"):]
	if i := strings.Index(seg, "::"); i >= 0 {
		seg = seg[:i]
	}
	if len(seg) == 0 {
		return "", errors.Errorf("serial resource missing board segment: %s", resource)
	}
	n, err := strconv.Atoi(seg)
	if err != nil {
		return seg, nil
	}
	if n < 1 {
		return "", errors.Errorf("serial board number out of range: %s", resource)
	}
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("COM%d", n), nil
	}
	return fmt.Sprintf("/dev/ttyS%d", n-1), nil
}

// Port adapts go.bug.st/serial to the transport.Conn contract.
type Port struct {
	port    serial.Port
	profile transport.Profile
	closed  bool
}

func (p *Port) Configure(profile transport.Profile) error {
	if p.closed {
		return transport.ErrConnClosed
	}
	mode := &serial.Mode{
		BaudRate: profile.BaudRate,
		DataBits: profile.DataBits,
		Parity:   toSerialParity(profile.Parity),
		StopBits: toSerialStopBits(profile.StopBits),
	}
	// Flow control is not expressible through this backend; ignored per contract.
	if err := p.port.SetMode(mode); err != nil {
		klog.V(4).InfoS("Failed to apply serial mode", "baudRate", profile.BaudRate, "err", err)
		return err
	}
	p.profile = profile
	return nil
}

func (p *Port) Flush() error {
	if p.closed {
		return transport.ErrConnClosed
	}
	return p.port.ResetInputBuffer()
}

func (p *Port) WriteString(ctx context.Context, s string) error {
	if p.closed {
		return transport.ErrConnClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	payload := []byte(s + p.profile.WriteTermination)
	n, err := p.port.Write(payload)
	if err != nil {
		klog.V(4).InfoS("Failed to write to serial port", "err", err)
		return err
	}
	klog.V(5).InfoS("Wrote to serial port", "bytes", n)
	return nil
}

func (p *Port) ReadString(ctx context.Context) (string, error) {
	if p.closed {
		return "", transport.ErrConnClosed
	}
	timeout := p.profile.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}
	if timeout <= 0 {
		return "", transport.ErrReadTimeout
	}
	if err := p.port.SetReadTimeout(timeout); err != nil {
		return "", err
	}

	terminator := []byte(p.profile.ReadTermination)
	buf := make([]byte, 256)
	var out []byte
	for {
		n, err := p.port.Read(buf)
		if err != nil {
			klog.V(4).InfoS("Failed to read from serial port", "err", err)
			return "", err
		}
		if n == 0 {
			// go.bug.st/serial reports an elapsed read timeout as a zero-length read.
			if len(out) == 0 {
				return "", transport.ErrReadTimeout
			}
			break
		}
		out = append(out, buf[:n]...)
		if len(terminator) > 0 && hasSuffix(out, terminator) {
			out = out[:len(out)-len(terminator)]
			break
		}
	}
	return string(out), nil
}

func (p *Port) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.port.Close()
}

func hasSuffix(b, suffix []byte) bool {
	if len(b) < len(suffix) {
		return false
	}
	return string(b[len(b)-len(suffix):]) == string(suffix)
}

func toSerialParity(parity transport.Parity) serial.Parity {
	switch parity {
	case transport.OddParity:
		return serial.OddParity
	case transport.EvenParity:
		return serial.EvenParity
	default:
		return serial.NoParity
	}
}

func toSerialStopBits(stopBits transport.StopBits) serial.StopBits {
	if stopBits == transport.TwoStopBits {
		return serial.TwoStopBits
	}
	return serial.OneStopBit
}
