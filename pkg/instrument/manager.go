package instrument

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"k8s.io/klog/v2"
	"visagateway/pkg/apis"
	"visagateway/pkg/apis/response"
	"visagateway/pkg/dialect"
	"visagateway/pkg/gateway"
	"visagateway/pkg/negotiate"
	"visagateway/pkg/scpi"
	"visagateway/pkg/session"
	"visagateway/pkg/transport"
)

type Option func(*Manager)

func WithLabelStore(labels *LabelStore) Option {
	return func(m *Manager) {
		m.labels = labels
	}
}

// Manager fronts the session registry: it restores persisted labels on
// connect, maps registry and line errors to API errors and publishes session
// lifecycle events over MQTT.
type Manager struct {
	gatewayMeta *gateway.GatewayMeta
	mqttClient  mqtt.Client
	registry    *session.Registry
	labels      *LabelStore
	stopCh      <-chan struct{}
}

func NewManager(registry *session.Registry, mqttClient mqtt.Client, gatewayMeta *gateway.GatewayMeta, stop <-chan struct{}, opts ...Option) *Manager {
	m := &Manager{
		gatewayMeta: gatewayMeta,
		mqttClient:  mqttClient,
		registry:    registry,
		stopCh:      stop,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Init() {
	m.registry.AddObserver(session.ObserverFunc(m.publishEvent))
}

// Connect binds a resource identifier, restoring any persisted label.
func (m *Manager) Connect(ctx context.Context, resource string) (*session.Session, error) {
	s, err := m.registry.Connect(ctx, resource)
	if err != nil {
		return nil, m.connectError(resource, err)
	}
	if m.labels != nil && s.Label() == "" {
		if label, ok := m.labels.Load(resource); ok && label != "" {
			if _, err := m.registry.SetLabel(resource, label); err != nil {
				klog.V(2).InfoS("Failed to restore label", "resource", resource, "err", err)
			}
		}
	}
	return s, nil
}

// ConnectAll connects every identifier, collecting failures without stopping.
func (m *Manager) ConnectAll(ctx context.Context, resources []string) ([]*session.Session, *response.MultiError) {
	sessions := make([]*session.Session, 0, len(resources))
	errs := &response.MultiError{}
	for _, resource := range resources {
		s, err := m.Connect(ctx, resource)
		if err != nil {
			errs.Add(err)
			continue
		}
		sessions = append(sessions, s)
	}
	if errs.Len() == 0 {
		return sessions, nil
	}
	return sessions, errs
}

func (m *Manager) connectError(resource string, err error) error {
	var ee *negotiate.ExhaustedError
	switch {
	case errors.Is(err, session.ErrConflict):
		return response.ErrResourceBusy(resource)
	case errors.As(err, &ee):
		return response.ErrNegotiationExhausted(resource, ee.Attempts)
	case negotiate.IsOpenError(err):
		return response.ErrConnectFailed(resource, err)
	default:
		return err
	}
}

func (m *Manager) Disconnect(id, version string) error {
	s, ok := m.registry.GetByID(id)
	if !ok {
		return os.ErrNotExist
	}
	if s.Version() != version {
		return apis.ErrMismatch
	}
	return m.registry.Disconnect(s.Resource())
}

func (m *Manager) Activate(id string) (*session.Session, error) {
	s, ok := m.registry.GetByID(id)
	if !ok {
		return nil, os.ErrNotExist
	}
	return m.registry.Activate(s.Resource())
}

func (m *Manager) SetLabel(id, version, label string) (*session.Session, error) {
	s, ok := m.registry.GetByID(id)
	if !ok {
		return nil, os.ErrNotExist
	}
	if s.Version() != version {
		return nil, apis.ErrMismatch
	}
	updated, err := m.registry.SetLabel(s.Resource(), label)
	if err != nil {
		return nil, err
	}
	if m.labels != nil {
		if err := m.labels.Save(s.Resource(), label); err != nil {
			klog.V(2).InfoS("Failed to persist label", "resource", s.Resource(), "err", err)
		}
	}
	return updated, nil
}

func (m *Manager) ListSessions(filter *session.Filter) []*session.Session {
	return m.registry.ListFiltered(filter)
}

func (m *Manager) GetSessionById(id string) (*session.Session, error) {
	s, ok := m.registry.GetByID(id)
	if !ok {
		return nil, os.ErrNotExist
	}
	return s, nil
}

func (m *Manager) ActiveSession() *session.Session {
	return m.registry.Active()
}

// NegotiationProgress reports the lifetime probe-attempt count and the
// per-scan attempt bound.
func (m *Manager) NegotiationProgress() (int64, int) {
	return m.registry.ProbeAttempts(), m.registry.MaxProbeAttempts()
}

// SetQuantity writes one logical quantity through the session's dialect,
// trying syntax variants in order and draining the instrument error queue
// afterwards for diagnostics.
func (m *Manager) SetQuantity(ctx context.Context, id, quantity, channel, value string) error {
	s, d, q, err := m.resolveQuantity(id, quantity, channel)
	if err != nil {
		return err
	}
	sequences := d.SetQuantity(q, channel, value)
	if len(sequences) == 0 {
		return response.ErrQuantityUnsupported(quantity)
	}
	return m.runSequences(ctx, s, sequences)
}

// QueryQuantity reads one logical quantity, routing the channel first where
// the dialect needs it.
func (m *Manager) QueryQuantity(ctx context.Context, id, quantity, channel string) (string, error) {
	s, d, q, err := m.resolveQuantity(id, quantity, channel)
	if err != nil {
		return "", err
	}
	variants := d.QueryQuantity(q, channel)
	if len(variants) == 0 {
		return "", response.ErrQuantityUnsupported(quantity)
	}
	routing := d.SelectChannel(channel)

	var value string
	err = s.Do(ctx, func(conn transport.Conn) error {
		if len(routing) > 0 {
			if err := scpi.TrySequence(ctx, conn, routing); err != nil {
				return err
			}
		}
		v, err := scpi.TryQuery(ctx, conn, variants)
		if err != nil {
			scpi.DrainErrorQueue(ctx, conn, errorQueueDepth)
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		return "", m.lineError(err)
	}
	return value, nil
}

// ShowDisplayText writes a message to the instrument front panel.
func (m *Manager) ShowDisplayText(ctx context.Context, id, text string) error {
	s, err := m.GetSessionById(id)
	if err != nil {
		return err
	}
	d := s.Dialect()
	if d == nil {
		return response.ErrDialectUnresolved(s.Identity())
	}
	sequences := d.DisplayText(text)
	if len(sequences) == 0 {
		return response.ErrQuantityUnsupported("display")
	}
	return m.runSequences(ctx, s, sequences)
}

func (m *Manager) ClearDisplay(ctx context.Context, id string) error {
	s, err := m.GetSessionById(id)
	if err != nil {
		return err
	}
	d := s.Dialect()
	if d == nil {
		return response.ErrDialectUnresolved(s.Identity())
	}
	sequences := d.ClearDisplay()
	if len(sequences) == 0 {
		return response.ErrQuantityUnsupported("display")
	}
	return m.runSequences(ctx, s, sequences)
}

func (m *Manager) resolveQuantity(id, quantity, channel string) (*session.Session, dialect.Dialect, dialect.Quantity, error) {
	s, err := m.GetSessionById(id)
	if err != nil {
		return nil, nil, "", err
	}
	d := s.Dialect()
	if d == nil {
		return nil, nil, "", response.ErrDialectUnresolved(s.Identity())
	}
	q, ok := dialect.Quantities[quantity]
	if !ok {
		return nil, nil, "", response.ErrQuantityUnsupported(quantity)
	}
	if !dialect.HasChannel(d, channel) {
		return nil, nil, "", response.ErrChannelUnknown(channel)
	}
	return s, d, q, nil
}

func (m *Manager) runSequences(ctx context.Context, s *session.Session, sequences []scpi.CommandList) error {
	err := s.Do(ctx, func(conn transport.Conn) error {
		if err := scpi.TrySequence(ctx, conn, sequences); err != nil {
			scpi.DrainErrorQueue(ctx, conn, errorQueueDepth)
			return err
		}
		return nil
	})
	return m.lineError(err)
}

func (m *Manager) lineError(err error) error {
	if err == nil {
		return nil
	}
	var ve *scpi.VariantsExhaustedError
	if errors.As(err, &ve) {
		return response.ErrCommandVariantsExhausted(ve.LastCommand, ve.Err)
	}
	return err
}

func (m *Manager) publishEvent(event session.Event) {
	if m.mqttClient == nil {
		return
	}
	topic := fmt.Sprintf("events/%s/v1/sessions", m.gatewayMeta.ID)
	marshal, _ := json.Marshal(event)
	token := m.mqttClient.Publish(topic, 1, false, marshal)
	if token.WaitTimeout(mqttTimeout) && token.Error() == nil {
		klog.V(5).InfoS("Succeed to publish MQTT", "topic", topic, "event", event.Type)
	} else {
		klog.V(1).InfoS("Failed to publish MQTT", "topic", topic, "err", token.Error())
	}
}

func (m *Manager) Shutdown(ctx context.Context) error {
	m.registry.Shutdown(ctx)
	if m.mqttClient != nil {
		m.mqttClient.Disconnect(2000)
	}
	return nil
}
