package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"k8s.io/klog/v2"
	"visagateway/pkg/runtime"
	"visagateway/pkg/storage"
	"visagateway/pkg/utils/randutil"
	"visagateway/pkg/utils/uuidutil"
)

type Option func(*Manager)

type Manager struct {
	gatewayMeta *GatewayMeta
	storage     storage.Storage
	stopCh      <-chan struct{}
}

func WithStorage(s storage.Storage) Option {
	return func(m *Manager) {
		m.storage = s
	}
}

func NewGatewayManager(stop <-chan struct{}, opts ...Option) *Manager {
	m := &Manager{
		gatewayMeta: &GatewayMeta{},
		stopCh:      stop,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Init() {
	if m.storage == nil {
		client := &storage.FsClient{}
		client.Init(storage.StoreGroupGateway)
		m.storage = client
	}

	gd, err := m.storage.Get(gateway)
	if err != nil && os.IsNotExist(err) {
		m.gatewayMeta = &GatewayMeta{
			Secret: "",
			ObjectMeta: runtime.ObjectMeta{
				Name:    "visagateway",
				ID:      uuidutil.UUID(),
				Version: strconv.FormatUint(randutil.Uint64n(), 10),
				ModTime: time.Now(),
			},
		}
		klog.V(3).InfoS("Gateway information not exist,been created automatically", "gatewayId", m.gatewayMeta.ID)
		if _, err := m.storage.Create(gateway, m.gatewayMeta); err != nil {
			klog.V(2).InfoS("Failed to create gateway information", "err", err)
		}
	} else if err == nil {
		if err = json.NewDecoder(bytes.NewReader(gd.([]byte))).Decode(m.gatewayMeta); err != nil {
			klog.V(2).InfoS("Failed to unmarshal gateway information", "err", err)
		}
	}
}

func (m *Manager) GetGatewayMeta() (*GatewayMeta, error) {
	return m.gatewayMeta, nil
}

func (m *Manager) getGatewayCpu() (interface{}, error) {
	percents, err := cpu.Percent(time.Second, true)
	if err != nil {
		klog.V(2).InfoS("Failed to read cpu usage", "err", err)
		return nil, err
	}
	usages := make([]string, 0, len(percents))
	for _, p := range percents {
		usages = append(usages, fmt.Sprintf("%.2f%%", p))
	}
	return usages, nil
}

func (m *Manager) getGatewayMem() (interface{}, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		klog.V(2).InfoS("Failed to read memory usage", "err", err)
		return nil, err
	}
	return &MemUsageInfo{
		Total:       humanBytes(vm.Total),
		Used:        humanBytes(vm.Used),
		UsedPercent: fmt.Sprintf("%.2f%%", vm.UsedPercent),
	}, nil
}

func (m *Manager) getGatewayDisk() (interface{}, error) {
	partitions, err := disk.Partitions(false)
	if err != nil {
		klog.V(2).InfoS("Failed to list disk partitions", "err", err)
		return nil, err
	}
	infos := make([]*DiskUsageInfo, 0, len(partitions))
	for _, p := range partitions {
		usage, err := disk.Usage(p.Mountpoint)
		if err != nil {
			klog.V(5).InfoS("Failed to read disk usage", "mountpoint", p.Mountpoint, "err", err)
			continue
		}
		infos = append(infos, &DiskUsageInfo{
			Path:        p.Mountpoint,
			Total:       humanBytes(usage.Total),
			Used:        humanBytes(usage.Used),
			UsedPercent: fmt.Sprintf("%.2f%%", usage.UsedPercent),
		})
	}
	return infos, nil
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(n)/float64(div), "KMGTPE"[exp])
}
