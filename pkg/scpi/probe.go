package scpi

import "strings"

// ProbeProtocol is the ordered list of query strings used to elicit a
// verifiable response from an unconfigured instrument. The primary probe is
// the standard identity query; the alternates cover instruments that never
// implemented the IEEE 488.2 form.
type ProbeProtocol struct {
	Probes []string
}

func DefaultProbeProtocol() *ProbeProtocol {
	return &ProbeProtocol{
		Probes: []string{"*IDN?", "IDN?", "VERSION?"},
	}
}

// Accept reports whether a probe response counts as success: non-empty after
// trimming surrounding whitespace. Parsing the content is a dialect concern.
func (p *ProbeProtocol) Accept(response string) bool {
	return strings.TrimSpace(response) != ""
}
