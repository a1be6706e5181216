package session

import (
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
)

type EventType string

const (
	EventConnected    EventType = "connected"
	EventActivated    EventType = "activated"
	EventDisconnected EventType = "disconnected"
	EventLabelChanged EventType = "labelChanged"
)

var EventTypes = sets.NewString(
	string(EventConnected),
	string(EventActivated),
	string(EventDisconnected),
	string(EventLabelChanged),
)

// Event describes a registry mutation. Session is nil for disconnects.
type Event struct {
	Type      EventType `json:"type"`
	Resource  string    `json:"resource"`
	Identity  string    `json:"identity,omitempty"`
	Label     string    `json:"label,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Session   *Session  `json:"-"`
}

// Observer receives registry change notifications, decoupled from any
// presentation framework. Callbacks run outside the registry lock.
type Observer interface {
	OnSessionChanged(event Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(event Event)

func (f ObserverFunc) OnSessionChanged(event Event) {
	f(event)
}
