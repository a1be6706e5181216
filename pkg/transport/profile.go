package transport

import "time"

type Parity int

const (
	// NoParity disable parity control (default)
	NoParity Parity = iota
	// OddParity enable odd-parity check
	OddParity
	// EvenParity enable even-parity check
	EvenParity
)

var ParityToString = map[Parity]string{
	NoParity:   "noParity",
	OddParity:  "oddParity",
	EvenParity: "evenParity",
}

var StringToParity = map[string]Parity{
	"noParity":   NoParity,
	"oddParity":  OddParity,
	"evenParity": EvenParity,
}

type StopBits int

const (
	// OneStopBit sets 1 stop bit (default)
	OneStopBit StopBits = iota
	// TwoStopBits sets 2 stop bits
	TwoStopBits
)

var StopBitsToString = map[StopBits]string{
	OneStopBit:  "1",
	TwoStopBits: "2",
}

var StringToStopBits = map[string]StopBits{
	"1": OneStopBit,
	"2": TwoStopBits,
}

type FlowControl int

const (
	// FlowNone disable flow control (default)
	FlowNone FlowControl = iota
	// FlowSoftware XON/XOFF flow control
	FlowSoftware
	// FlowHardware RTS/CTS flow control
	FlowHardware
)

var FlowControlToString = map[FlowControl]string{
	FlowNone:     "none",
	FlowSoftware: "software",
	FlowHardware: "hardware",
}

var StringToFlowControl = map[string]FlowControl{
	"none":     FlowNone,
	"software": FlowSoftware,
	"hardware": FlowHardware,
}

// Profile is one concrete serial parameter tuple. Packet transports use a
// single fixed profile carrying only terminators and a timeout.
type Profile struct {
	BaudRate         int           `json:"baudRate,omitempty"`
	DataBits         int           `json:"dataBits,omitempty"`
	Parity           Parity        `json:"parity,omitempty"`
	StopBits         StopBits      `json:"stopBits,omitempty"`
	FlowControl      FlowControl   `json:"flowControl,omitempty"`
	WriteTermination string        `json:"-"`
	ReadTermination  string        `json:"-"`
	Timeout          time.Duration `json:"-"`
}
