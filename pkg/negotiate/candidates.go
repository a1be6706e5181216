package negotiate

import (
	"time"

	"visagateway/pkg/transport"
)

// TerminatorPair is a (write, read) line-terminator combination to try.
type TerminatorPair struct {
	Write string
	Read  string
}

// Framing is a byte-framing preset (data bits, parity, stop bits).
type Framing struct {
	DataBits int
	Parity   transport.Parity
	StopBits transport.StopBits
}

// CandidateSpace enumerates the serial parameter combinations tried during
// negotiation. The full space is the Cartesian product of the four lists and
// iteration order is fixed: framing, then flow control, then baud rate
// (fastest first), then terminator pair.
type CandidateSpace struct {
	BaudRates    []int
	Framings     []Framing
	Terminators  []TerminatorPair
	FlowControls []transport.FlowControl
}

// DefaultCandidateSpace covers modern gear first (8-N-1 at high baud) and the
// legacy 7-bit parity presets afterwards.
func DefaultCandidateSpace() CandidateSpace {
	return CandidateSpace{
		BaudRates: []int{115200, 38400, 19200, 9600},
		Framings: []Framing{
			{DataBits: 8, Parity: transport.NoParity, StopBits: transport.OneStopBit},
			{DataBits: 7, Parity: transport.EvenParity, StopBits: transport.OneStopBit},
			{DataBits: 7, Parity: transport.OddParity, StopBits: transport.OneStopBit},
		},
		Terminators: []TerminatorPair{
			{Write: "\r\n", Read: "\n"},
			{Write: "\n", Read: "\n"},
			{Write: "\r", Read: "\r"},
			{Write: "\r\n", Read: "\r\n"},
		},
		FlowControls: []transport.FlowControl{transport.FlowNone},
	}
}

// Size is the total candidate count, so callers can bound worst-case
// negotiation time before starting a scan.
func (s CandidateSpace) Size() int {
	return len(s.BaudRates) * len(s.Framings) * len(s.Terminators) * len(s.FlowControls)
}

// Profiles materializes the space in iteration order, stamping every profile
// with the per-attempt timeout.
func (s CandidateSpace) Profiles(timeout time.Duration) []transport.Profile {
	profiles := make([]transport.Profile, 0, s.Size())
	for _, framing := range s.Framings {
		for _, flow := range s.FlowControls {
			for _, baud := range s.BaudRates {
				for _, term := range s.Terminators {
					profiles = append(profiles, transport.Profile{
						BaudRate:         baud,
						DataBits:         framing.DataBits,
						Parity:           framing.Parity,
						StopBits:         framing.StopBits,
						FlowControl:      flow,
						WriteTermination: term.Write,
						ReadTermination:  term.Read,
						Timeout:          timeout,
					})
				}
			}
		}
	}
	return profiles
}
