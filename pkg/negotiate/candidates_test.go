package negotiate

import (
	"testing"
	"time"

	"visagateway/pkg/transport"
)

func TestCandidateSpaceSize(t *testing.T) {
	space := DefaultCandidateSpace()

	expect := 4 * 3 * 4 * 1
	if actual := space.Size(); actual != expect {
		t.Errorf("actual %v, expect %v", actual, expect)
	}
	if actual := len(space.Profiles(time.Second)); actual != expect {
		t.Errorf("actual %v, expect %v", actual, expect)
	}
}

func TestProfilesOrder(t *testing.T) {
	space := DefaultCandidateSpace()
	profiles := space.Profiles(time.Second)

	first := profiles[0]
	if first.BaudRate != 115200 || first.DataBits != 8 || first.Parity != transport.NoParity {
		t.Errorf("unexpected first profile %+v", first)
	}
	if first.WriteTermination != "\r\n" || first.ReadTermination != "\n" {
		t.Errorf("unexpected first terminator %q/%q", first.WriteTermination, first.ReadTermination)
	}

	// Terminators vary fastest, then baud rate, then framing.
	if profiles[1].BaudRate != 115200 || profiles[1].WriteTermination != "\n" {
		t.Errorf("unexpected second profile %+v", profiles[1])
	}
	if profiles[4].BaudRate != 38400 {
		t.Errorf("actual %v, expect 38400", profiles[4].BaudRate)
	}
	perFraming := len(space.BaudRates) * len(space.Terminators)
	if profiles[perFraming].DataBits != 7 || profiles[perFraming].Parity != transport.EvenParity {
		t.Errorf("unexpected framing rollover profile %+v", profiles[perFraming])
	}

	for _, p := range profiles {
		if p.Timeout != time.Second {
			t.Fatalf("profile missing timeout: %+v", p)
		}
	}
}
