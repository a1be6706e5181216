package options

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"visagateway/cmd/gateway/config"
	"visagateway/pkg/dialect"
	"visagateway/pkg/gateway"
	baseoptions "visagateway/pkg/generic/options"
	"visagateway/pkg/instrument"
	"visagateway/pkg/negotiate"
	"visagateway/pkg/session"
	"visagateway/pkg/storage"
	"visagateway/pkg/transport/serialport"
	"visagateway/pkg/transport/tcpport"
)

type Options struct {
	Port         string        `json:"port"`
	Wait         time.Duration `json:"graceful-timeout"`
	ProbeTimeout time.Duration `json:"probe-timeout"`
	MqttBroker   string        `json:"mqtt-broker"`
	MqttClientId string        `json:"mqtt-client-id"`
	baseoptions.BaseOptions
}

const (
	_defaultPort         = "32210"
	_defaultWait         = 15 * time.Second
	_defaultProbeTimeout = 500 * time.Millisecond
	_defaultMqttClientId = "visagateway"
)

func NewDefaultOptions() *Options {
	return &Options{
		Port:         _defaultPort,
		Wait:         _defaultWait,
		ProbeTimeout: _defaultProbeTimeout,
		MqttClientId: _defaultMqttClientId,
		BaseOptions:  baseoptions.NewDefaultBaseOptions(),
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Port, "port", "P", o.Port, "Port exposed")
	fs.DurationVar(&o.Wait, "graceful-timeout", o.Wait, "The duration for which the server gracefully wait for existing connections to finish - e.g. 15s or 1m")
	fs.DurationVar(&o.ProbeTimeout, "probe-timeout", o.ProbeTimeout, "Per-attempt reply deadline while negotiating serial parameters")
	fs.StringVar(&o.MqttBroker, "mqtt-broker", o.MqttBroker, "MQTT broker address for session lifecycle events - e.g. tcp://127.0.0.1:1883. Events are disabled when empty")
	fs.StringVar(&o.MqttClientId, "mqtt-client-id", o.MqttClientId, "MQTT client id used when publishing session lifecycle events")
}

func (o *Options) Config(stopCh <-chan struct{}) (*config.Config, error) {
	c := &config.Config{}

	client := &storage.FsClient{}
	client.Init(storage.StoreGroupGateway)

	gatewayMgr := gateway.NewGatewayManager(stopCh, gateway.WithStorage(client))
	gatewayMgr.Init()
	c.GatewayMgr = gatewayMgr

	negotiator := negotiate.NewNegotiator(&serialport.Opener{},
		negotiate.WithAttemptTimeout(o.ProbeTimeout),
	)
	registry := session.NewRegistry(negotiator, &tcpport.Opener{}, dialect.Builtin())

	var mqttClient mqtt.Client
	if len(o.MqttBroker) > 0 {
		mqttOptions := mqtt.NewClientOptions().
			AddBroker(o.MqttBroker).
			SetClientID(o.MqttClientId).
			SetAutoReconnect(true)
		mqttClient = mqtt.NewClient(mqttOptions)
		if token := mqttClient.Connect(); token.Wait() && token.Error() != nil {
			klog.ErrorS(token.Error(), "Failed to connect MQTT broker", "broker", o.MqttBroker)
		}
	}

	gatewayMeta, _ := gatewayMgr.GetGatewayMeta()
	instrumentMgr := instrument.NewManager(registry, mqttClient, gatewayMeta, stopCh,
		instrument.WithLabelStore(instrument.NewLabelStore(client)),
	)
	instrumentMgr.Init()
	c.InstrumentMgr = instrumentMgr

	return c, nil
}
