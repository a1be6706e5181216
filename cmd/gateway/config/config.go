package config

import (
	"visagateway/pkg/gateway"
	"visagateway/pkg/instrument"
)

type Config struct {
	InstrumentMgr *instrument.Manager
	GatewayMgr    *gateway.Manager
	CertFile      string
	KeyFile       string
}
