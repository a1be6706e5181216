package dialect

import (
	"fmt"
	"strings"

	"visagateway/pkg/scpi"
)

// hmpDialect drives Rohde & Schwarz / Hameg HMP-series supplies. Channels are
// selected by numeric index before every source command.
type hmpDialect struct {
	name     string
	channels []string
}

func (d *hmpDialect) Name() string {
	return d.name
}

func (d *hmpDialect) Channels() []string {
	return d.channels
}

func (d *hmpDialect) SelectChannel(channel string) []scpi.CommandList {
	return []scpi.CommandList{
		{fmt.Sprintf("INST:NSEL %s", channel)},
		{fmt.Sprintf("INSTrument:NSELect %s", channel)},
	}
}

func (d *hmpDialect) SetQuantity(q Quantity, channel, value string) []scpi.CommandList {
	sel := fmt.Sprintf("INST:NSEL %s", channel)
	switch q {
	case Voltage:
		return []scpi.CommandList{
			{sel, fmt.Sprintf("SOUR:VOLT %s", value)},
			{sel, fmt.Sprintf("VOLT %s", value)},
		}
	case Current:
		return []scpi.CommandList{
			{sel, fmt.Sprintf("SOUR:CURR %s", value)},
			{sel, fmt.Sprintf("CURR %s", value)},
		}
	case OutputState:
		return []scpi.CommandList{
			{sel, fmt.Sprintf("OUTPut:STATe %s", value)},
			{sel, fmt.Sprintf("OUTP %s", value)},
		}
	}
	return nil
}

func (d *hmpDialect) QueryQuantity(q Quantity, channel string) []string {
	switch q {
	case Voltage:
		return []string{"SOUR:VOLT?", "VOLT?"}
	case Current:
		return []string{"SOUR:CURR?", "CURR?"}
	case OutputState:
		return []string{"OUTPut:STATe?", "OUTP?"}
	}
	return nil
}

func (d *hmpDialect) DisplayText(text string) []scpi.CommandList {
	return nil
}

func (d *hmpDialect) ClearDisplay() []scpi.CommandList {
	return nil
}

// e3631aDialect drives the Keysight/Agilent E3631A, whose channels are named
// outputs selected by mnemonic.
type e3631aDialect struct {
}

func (d *e3631aDialect) Name() string {
	return "E3631A"
}

func (d *e3631aDialect) Channels() []string {
	return []string{"P6V", "P25V", "N25V"}
}

func (d *e3631aDialect) SelectChannel(channel string) []scpi.CommandList {
	return []scpi.CommandList{
		{fmt.Sprintf("INST:SEL %s", channel)},
		{fmt.Sprintf("INST %s", channel)},
	}
}

func (d *e3631aDialect) SetQuantity(q Quantity, channel, value string) []scpi.CommandList {
	sel := fmt.Sprintf("INST:SEL %s", channel)
	switch q {
	case Voltage:
		return []scpi.CommandList{
			{sel, fmt.Sprintf("VOLT %s", value)},
			{sel, fmt.Sprintf("SOUR:VOLT %s", value)},
		}
	case Current:
		return []scpi.CommandList{
			{sel, fmt.Sprintf("CURR %s", value)},
			{sel, fmt.Sprintf("SOUR:CURR %s", value)},
		}
	case OutputState:
		// Output state is instrument-wide on the E3631A.
		return []scpi.CommandList{
			{fmt.Sprintf("OUTP:STAT %s", value)},
			{fmt.Sprintf("OUTP %s", value)},
		}
	}
	return nil
}

func (d *e3631aDialect) QueryQuantity(q Quantity, channel string) []string {
	switch q {
	case Voltage:
		return []string{"VOLT?", "SOUR:VOLT?"}
	case Current:
		return []string{"CURR?", "SOUR:CURR?"}
	case OutputState:
		return []string{"OUTP:STAT?", "OUTP?"}
	}
	return nil
}

func (d *e3631aDialect) DisplayText(text string) []scpi.CommandList {
	msg := escapeQuotes(text)
	return []scpi.CommandList{
		{fmt.Sprintf("DISP:TEXT '%s'", msg)},
		{fmt.Sprintf("DISPlay:TEXT '%s'", msg)},
	}
}

func (d *e3631aDialect) ClearDisplay() []scpi.CommandList {
	return []scpi.CommandList{
		{"DISP:TEXT:CLE"},
		{"DISP:TEXT ''"},
	}
}

// hm8143Dialect drives the Hameg HM8143, which predates SCPI: the channel is
// encoded inside each command and only U1/U2 support remote set/query.
type hm8143Dialect struct {
}

func (d *hm8143Dialect) Name() string {
	return "HM8143"
}

func (d *hm8143Dialect) Channels() []string {
	return []string{"U1", "U2"}
}

func (d *hm8143Dialect) SelectChannel(channel string) []scpi.CommandList {
	return nil
}

func (d *hm8143Dialect) SetQuantity(q Quantity, channel, value string) []scpi.CommandList {
	idx, ok := hm8143ChannelIndex(channel)
	if !ok {
		return nil
	}
	switch q {
	case Voltage:
		return []scpi.CommandList{{fmt.Sprintf("SU%s:%s", idx, value)}}
	case Current:
		return []scpi.CommandList{{fmt.Sprintf("SI%s:%s", idx, value)}}
	}
	return nil
}

func (d *hm8143Dialect) QueryQuantity(q Quantity, channel string) []string {
	idx, ok := hm8143ChannelIndex(channel)
	if !ok {
		return nil
	}
	switch q {
	case Voltage:
		return []string{fmt.Sprintf("RU%s", idx)}
	case Current:
		return []string{fmt.Sprintf("RI%s", idx)}
	}
	return nil
}

func (d *hm8143Dialect) DisplayText(text string) []scpi.CommandList {
	return nil
}

func (d *hm8143Dialect) ClearDisplay() []scpi.CommandList {
	return nil
}

func hm8143ChannelIndex(channel string) (string, bool) {
	switch strings.ToUpper(channel) {
	case "U1":
		return "1", true
	case "U2":
		return "2", true
	}
	return "", false
}

// keithley2000Dialect drives the Keithley Model 2000 multimeter display.
type keithley2000Dialect struct {
}

func (d *keithley2000Dialect) Name() string {
	return "MODEL2000"
}

func (d *keithley2000Dialect) Channels() []string {
	return nil
}

func (d *keithley2000Dialect) SelectChannel(channel string) []scpi.CommandList {
	return nil
}

func (d *keithley2000Dialect) SetQuantity(q Quantity, channel, value string) []scpi.CommandList {
	return nil
}

func (d *keithley2000Dialect) QueryQuantity(q Quantity, channel string) []string {
	return nil
}

func (d *keithley2000Dialect) DisplayText(text string) []scpi.CommandList {
	msg := escapeQuotes(text)
	return []scpi.CommandList{
		{"DISP:ENAB ON", fmt.Sprintf("DISP:TEXT:DATA '%s'", msg), "DISP:TEXT:STAT ON"},
	}
}

func (d *keithley2000Dialect) ClearDisplay() []scpi.CommandList {
	return []scpi.CommandList{
		{"DISP:TEXT:STAT OFF", "DISP:TEXT:DATA ''"},
	}
}

// keysightDMMDialect covers the 3441x/3446x multimeters, whose display-text
// spelling drifted across firmware generations.
type keysightDMMDialect struct {
	name string
}

func (d *keysightDMMDialect) Name() string {
	return d.name
}

func (d *keysightDMMDialect) Channels() []string {
	return nil
}

func (d *keysightDMMDialect) SelectChannel(channel string) []scpi.CommandList {
	return nil
}

func (d *keysightDMMDialect) SetQuantity(q Quantity, channel, value string) []scpi.CommandList {
	return nil
}

func (d *keysightDMMDialect) QueryQuantity(q Quantity, channel string) []string {
	return nil
}

func (d *keysightDMMDialect) DisplayText(text string) []scpi.CommandList {
	msg := escapeQuotes(text)
	return []scpi.CommandList{
		{"DISP:TEXT:STAT ON", fmt.Sprintf("DISP:TEXT '%s'", msg)},
		{"DISPlay:TEXT:STATe ON", fmt.Sprintf("DISPlay:TEXT '%s'", msg)},
		{fmt.Sprintf("DISP:TEXT '%s'", msg)},
		{fmt.Sprintf("SYST:DISP:TEXT '%s'", msg)},
		{fmt.Sprintf("DISP:WIND:TEXT '%s'", msg)},
		{fmt.Sprintf("DISP:WIND1:TEXT '%s'", msg)},
	}
}

func (d *keysightDMMDialect) ClearDisplay() []scpi.CommandList {
	return []scpi.CommandList{
		{"DISP:TEXT:CLEar"},
		{"DISPlay:TEXT:CLEar"},
		{"DISP:TEXT ''"},
		{"DISP:TEXT:STAT OFF"},
		{"SYST:DISP:TEXT ''"},
	}
}

// SCPI string parameters double embedded single quotes.
func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Builtin is the default catalog. Registration order matters: more specific
// model tokens precede family tokens they could be substrings of (HMP4040
// before HMP403, etc.), so longer identities resolve to the right dialect.
func Builtin() *Catalog {
	c := NewCatalog()
	c.Register("HMP4040", &hmpDialect{name: "HMP4040", channels: []string{"1", "2", "3", "4"}})
	c.Register("HMP4030", &hmpDialect{name: "HMP4030", channels: []string{"1", "2", "3"}})
	c.Register("E3631A", &e3631aDialect{})
	c.Register("HM8143", &hm8143Dialect{})
	c.Register("MODEL 2000", &keithley2000Dialect{})
	c.Register("34410A", &keysightDMMDialect{name: "34410A"})
	c.Register("34461A", &keysightDMMDialect{name: "34461A"})
	c.Register("34465A", &keysightDMMDialect{name: "34465A"})
	return c
}
