package runtime

import (
	"fmt"
	"time"
)

var ErrNotObject = fmt.Errorf("object does not implement the Object interfaces")

// Object is the metadata contract every persisted resource satisfies.
type Object interface {
	GetName() string
	SetName(string)
	GetID() string
	SetID(string)
	GetVersion() string
	SetVersion(string)
	GetModTime() time.Time
	SetModTime(time.Time)
}

type ObjectMeta struct {
	Name    string    `json:"name,omitempty"`
	ID      string    `json:"id,omitempty"`
	Version string    `json:"eTag,omitempty"`
	ModTime time.Time `json:"modTime,omitempty"`
}

func (o *ObjectMeta) GetObjectMeta() Object { return o }

func (o *ObjectMeta) GetName() string { return o.Name }

func (o *ObjectMeta) SetName(name string) { o.Name = name }

func (o *ObjectMeta) GetID() string { return o.ID }

func (o *ObjectMeta) SetID(id string) { o.ID = id }

func (o *ObjectMeta) GetVersion() string { return o.Version }

func (o *ObjectMeta) SetVersion(version string) { o.Version = version }

func (o *ObjectMeta) GetModTime() time.Time { return o.ModTime }

func (o *ObjectMeta) SetModTime(modTime time.Time) { o.ModTime = modTime }

type ObjectMetaAccessor interface {
	GetObjectMeta() Object
}

// Accessor returns the Object interface for obj, if it exposes one.
func Accessor(obj interface{}) (Object, error) {
	switch t := obj.(type) {
	case Object:
		return t, nil
	case ObjectMetaAccessor:
		return t.GetObjectMeta(), nil
	default:
		return nil, ErrNotObject
	}
}
