package serialport

import (
	"runtime"
	"testing"
)

func TestDevicePath(t *testing.T) {
	expect := "/dev/ttyS2"
	if runtime.GOOS == "windows" {
		expect = "COM3"
	}
	actual, err := DevicePath("ASRL3::INSTR")
	if err != nil {
		t.Fatal(err)
	}
	if actual != expect {
		t.Errorf("actual %v, expect %v", actual, expect)
	}
}

func TestDevicePathLiteral(t *testing.T) {
	actual, err := DevicePath("ASRL/dev/ttyUSB0::INSTR")
	if err != nil {
		t.Fatal(err)
	}
	if actual != "/dev/ttyUSB0" {
		t.Errorf("actual %v, expect /dev/ttyUSB0", actual)
	}
}

func TestDevicePathInvalid(t *testing.T) {
	if _, err := DevicePath("TCPIP::10.0.0.7::INSTR"); err == nil {
		t.Error("expect error for non-serial resource")
	}
	if _, err := DevicePath("ASRL::INSTR"); err == nil {
		t.Error("expect error for missing board segment")
	}
	if _, err := DevicePath("ASRL0::INSTR"); err == nil {
		t.Error("expect error for board number out of range")
	}
}
