package transport

import (
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		resource string
		expect   Kind
	}{
		{"ASRL3::INSTR", Serial},
		{"asrl1::INSTR", Serial},
		{"  ASRL/dev/ttyUSB0::INSTR", Serial},
		{"TCPIP::10.0.0.7::INSTR", Packet},
		{"TCPIP0::scope.local::5025::SOCKET", Packet},
		{"GPIB0::12::INSTR", Packet},
		{"USB0::0x0957::0x0607::MY47000000::INSTR", Packet},
		{"", Packet},
	}

	for _, c := range cases {
		if actual := KindOf(c.resource); actual != c.expect {
			t.Errorf("KindOf(%q) actual %v, expect %v", c.resource, actual, c.expect)
		}
	}
}
