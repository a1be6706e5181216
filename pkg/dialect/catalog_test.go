package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBuiltin(t *testing.T) {
	c := Builtin()

	d := c.Resolve("ROHDE&SCHWARZ,HMP4040,103245,2.41")
	require.NotNil(t, d)
	assert.Equal(t, "HMP4040", d.Name())
	assert.Equal(t, []string{"1", "2", "3", "4"}, d.Channels())

	d = c.Resolve("HAMEG,HMP4030,021004,1.62")
	require.NotNil(t, d)
	assert.Equal(t, "HMP4030", d.Name())
	assert.Equal(t, []string{"1", "2", "3"}, d.Channels())

	d = c.Resolve("Agilent Technologies,E3631A,0,1.4-5.0-1.0")
	require.NotNil(t, d)
	assert.Equal(t, "E3631A", d.Name())
	assert.Equal(t, []string{"P6V", "P25V", "N25V"}, d.Channels())

	d = c.Resolve("KEITHLEY INSTRUMENTS INC.,MODEL 2000,1234567,A20")
	require.NotNil(t, d)
	assert.Equal(t, "MODEL2000", d.Name())
}

func TestResolveMatchingIsCaseInsensitive(t *testing.T) {
	c := Builtin()
	d := c.Resolve("hameg,hm8143,001,1.32")
	require.NotNil(t, d)
	assert.Equal(t, "HM8143", d.Name())
}

func TestResolveUnknownIdentity(t *testing.T) {
	c := Builtin()
	assert.Nil(t, c.Resolve("ACME,FROBULATOR,1,0.1"))
	assert.Nil(t, c.Resolve(""))
}

func TestResolveDeterministic(t *testing.T) {
	c := Builtin()
	identity := "ROHDE&SCHWARZ,HMP4040,103245,2.41"
	first := c.Resolve(identity)
	for i := 0; i < 100; i++ {
		if c.Resolve(identity) != first {
			t.Fatal("resolution must be stable for the same identity")
		}
	}
}

func TestResolveRegistrationOrder(t *testing.T) {
	c := NewCatalog()
	specific := &hmpDialect{name: "HMP4040", channels: []string{"1", "2", "3", "4"}}
	family := &hmpDialect{name: "HMP", channels: []string{"1"}}
	c.Register("HMP4040", specific)
	c.Register("HMP", family)

	d := c.Resolve("ROHDE&SCHWARZ,HMP4040,103245,2.41")
	require.NotNil(t, d)
	assert.Equal(t, "HMP4040", d.Name(), "earlier registration wins when both patterns match")

	d = c.Resolve("ROHDE&SCHWARZ,HMP2020,000001,2.41")
	require.NotNil(t, d)
	assert.Equal(t, "HMP", d.Name())
}

func TestHasChannel(t *testing.T) {
	d := Builtin().Resolve("Agilent Technologies,E3631A,0,1.4")
	require.NotNil(t, d)
	assert.True(t, HasChannel(d, "P6V"))
	assert.False(t, HasChannel(d, "CH1"))
}

func TestHM8143Commands(t *testing.T) {
	d := Builtin().Resolve("HAMEG Instruments,HM8143,5.04")
	require.NotNil(t, d)

	assert.Nil(t, d.SelectChannel("U1"), "channel is encoded inside each command")

	set := d.SetQuantity(Voltage, "U2", "12.50")
	require.Len(t, set, 1)
	assert.Equal(t, []string{"SU2:12.50"}, []string(set[0]))

	assert.Equal(t, []string{"RU1"}, d.QueryQuantity(Voltage, "U1"))
	assert.Equal(t, []string{"RI2"}, d.QueryQuantity(Current, "U2"))
	assert.Nil(t, d.SetQuantity(Voltage, "U3", "1"))
	assert.Nil(t, d.DisplayText("hi"), "no front-panel text on this family")
}

func TestDisplayEscapesQuotes(t *testing.T) {
	d := Builtin().Resolve("Keysight Technologies,34465A,MY12345678,A.02.14")
	require.NotNil(t, d)

	lists := d.DisplayText("it's on")
	require.NotEmpty(t, lists)
	assert.Contains(t, []string(lists[0])[1], "'it''s on'")
}
