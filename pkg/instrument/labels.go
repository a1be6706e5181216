package instrument

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"
	"visagateway/pkg/runtime"
	"visagateway/pkg/storage"
	"visagateway/pkg/utils/randutil"
	"visagateway/pkg/utils/uuidutil"
)

// LabelRecord is the persisted user label for one resource identifier. It
// outlives the session so a reconnect after restart picks the label back up.
type LabelRecord struct {
	Resource string `json:"resource"`
	Label    string `json:"label"`
	runtime.ObjectMeta
}

type LabelStore struct {
	storage storage.Storage
}

func NewLabelStore(s storage.Storage) *LabelStore {
	return &LabelStore{storage: s}
}

func (ls *LabelStore) Load(resource string) (string, bool) {
	data, err := ls.storage.Get(labelKey(resource))
	if err != nil {
		if !os.IsNotExist(err) {
			klog.V(2).InfoS("Failed to load label", "resource", resource, "err", err)
		}
		return "", false
	}
	var record LabelRecord
	if err := json.NewDecoder(bytes.NewReader(data.([]byte))).Decode(&record); err != nil {
		klog.V(2).InfoS("Failed to unmarshal label", "resource", resource, "err", err)
		return "", false
	}
	return record.Label, true
}

func (ls *LabelStore) Save(resource, label string) error {
	key := labelKey(resource)

	data, err := ls.storage.Get(key)
	if err != nil {
		record := &LabelRecord{
			Resource: resource,
			Label:    label,
			ObjectMeta: runtime.ObjectMeta{
				Name:    resource,
				ID:      uuidutil.UUID(),
				Version: strconv.FormatUint(randutil.Uint64n(), 10),
				ModTime: time.Now(),
			},
		}
		_, err = ls.storage.Create(key, record)
		return err
	}

	var record LabelRecord
	if err := json.NewDecoder(bytes.NewReader(data.([]byte))).Decode(&record); err != nil {
		klog.V(2).InfoS("Failed to unmarshal label", "resource", resource, "err", err)
		return err
	}
	version := record.Version
	record.Label = label
	record.ModTime = time.Now()
	_, err = ls.storage.Update(key, version, &record)
	return err
}

// labelKey flattens a resource identifier into a store file name.
func labelKey(resource string) string {
	flat := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, resource)
	return storage.Sessions + "/" + flat
}
