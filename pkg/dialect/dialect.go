package dialect

import (
	"visagateway/pkg/scpi"
)

// Quantity names a logical instrument quantity accessed through a dialect.
type Quantity string

const (
	Voltage     Quantity = "voltage"
	Current     Quantity = "current"
	OutputState Quantity = "output"
)

var Quantities = map[string]Quantity{
	"voltage": Voltage,
	"current": Current,
	"output":  OutputState,
}

// Dialect is a device-class profile: the channel names a family exposes and
// the command templates needed to drive it, each template an ordered list of
// syntax variants because vendors diverge from strict SCPI.
//
// Dialects are stateless and shared by every session whose identity matches;
// a nil slice from any template method means the family does not support that
// operation and dependent affordances must be disabled.
type Dialect interface {
	Name() string
	Channels() []string
	// SelectChannel yields the variants that route subsequent commands to the
	// channel. Families that encode the channel inside each command return nil.
	SelectChannel(channel string) []scpi.CommandList
	// SetQuantity yields complete write sequences (channel routing included).
	SetQuantity(q Quantity, channel, value string) []scpi.CommandList
	// QueryQuantity yields query spellings; SelectChannel must be applied first
	// for families that need routing.
	QueryQuantity(q Quantity, channel string) []string
	// DisplayText / ClearDisplay drive a front-panel text display where the
	// family has one.
	DisplayText(text string) []scpi.CommandList
	ClearDisplay() []scpi.CommandList
}

// HasChannel reports whether the dialect lists the channel.
func HasChannel(d Dialect, channel string) bool {
	for _, ch := range d.Channels() {
		if ch == channel {
			return true
		}
	}
	return false
}
