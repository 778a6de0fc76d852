// Package linux implements the devsvc backend for the Linux kernel using
// hidapi for device access and udev for hotplug notifications.
package linux

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jochenvg/go-udev"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sstallion/go-hid"
	"go.uber.org/zap"

	"github.com/padforge/padforge/internal/devsvc"
)

const (
	usagePageGenericDesktop = 0x01
	usageJoystick           = 0x04
	usageGamepad            = 0x05
	usageMultiAxis          = 0x08
)

var defaultBackendOptions = backendOptions{
	pollInterval: 2 * time.Second,
}

type backendOptions struct {
	pollInterval time.Duration
}

type Option func(*backendOptions)

func WithPollInterval(d time.Duration) Option {
	return func(o *backendOptions) {
		o.pollInterval = d
	}
}

// Backend implements the devsvc.Backend interface for Linux.
type Backend struct {
	log     *zap.Logger
	options backendOptions

	devices *xsync.MapOf[HidAddress, hid.DeviceInfo]
	udev    *udev.Udev
	ready   chan struct{}

	publisher devsvc.BackendPublisher
}

type HidAddress struct {
	VendorID  uint16
	ProductID uint16
	Interface int
}

func (a HidAddress) String() string {
	return fmt.Sprintf("%04x:%04x:%d", a.VendorID, a.ProductID, a.Interface)
}

func ParseHidAddress(s string) (HidAddress, error) {
	var addr HidAddress
	_, err := fmt.Sscanf(s, "%04x:%04x:%d", &addr.VendorID, &addr.ProductID, &addr.Interface)
	if err != nil {
		return HidAddress{}, err
	}
	return addr, nil
}

func NewBackend(log *zap.Logger, opts ...Option) *Backend {
	options := defaultBackendOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &Backend{
		log:     log,
		options: options,
		ready:   make(chan struct{}),
		devices: xsync.NewMapOf[HidAddress, hid.DeviceInfo](),
	}
}

func (b *Backend) Ready() <-chan struct{} {
	return b.ready
}

func (b *Backend) Start(ctx context.Context, publisher devsvc.BackendPublisher) error {
	hid.Init()
	b.udev = &udev.Udev{}
	b.publisher = publisher

	b.log.Info("Starting Linux input backend")
	if err := b.refreshDevices(ctx); err != nil {
		return fmt.Errorf("failed to enumerate devices: %w", err)
	}
	close(b.ready)

	pollTicker := time.NewTicker(b.options.pollInterval)
	defer pollTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pollTicker.C:
		}
		if err := b.refreshDevices(ctx); err != nil {
			b.log.Error("Failed to refresh devices", zap.Error(err))
		}
	}
}

func (b *Backend) refreshDevices(ctx context.Context) error {
	newDevices, err := b.enumerate()
	if err != nil {
		return err
	}
	var disconnected []string
	var connected []devsvc.BackendDevice
	b.devices.Range(func(addr HidAddress, dev hid.DeviceInfo) bool {
		if _, ok := newDevices[addr]; !ok {
			disconnected = append(disconnected, addr.String())
			b.devices.Delete(addr)
			return true
		}
		delete(newDevices, addr)
		return true
	})
	for addr, device := range newDevices {
		b.devices.Store(addr, device)
		connected = append(connected, devsvc.BackendDevice{
			ID:      addr.String(),
			Name:    generateName(device),
			Vendor:  device.VendorID,
			Product: device.ProductID,
		})
	}
	if len(connected) > 0 || len(disconnected) > 0 {
		b.publisher(ctx, devsvc.BackendEvent{
			DevicesChanged: &devsvc.BackendEventDevicesChanged{
				Connected:    connected,
				Disconnected: disconnected,
			},
		})
	}
	return nil
}

func (b *Backend) enumerate() (map[HidAddress]hid.DeviceInfo, error) {
	devices := make(map[HidAddress]hid.DeviceInfo)
	err := hid.Enumerate(hid.VendorIDAny, hid.ProductIDAny, func(device *hid.DeviceInfo) error {
		if !isGameDevice(device) {
			return nil
		}
		addr := HidAddress{
			VendorID:  device.VendorID,
			ProductID: device.ProductID,
			Interface: device.InterfaceNbr,
		}
		devices[addr] = *device
		return nil
	})
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func isGameDevice(device *hid.DeviceInfo) bool {
	if device.UsagePage != usagePageGenericDesktop {
		return false
	}
	switch device.Usage {
	case usageJoystick, usageGamepad, usageMultiAxis:
		return true
	}
	return false
}

func generateName(device hid.DeviceInfo) string {
	var parts []string
	if device.MfrStr != "" {
		parts = append(parts, device.MfrStr)
	}
	if device.ProductStr != "" {
		parts = append(parts, device.ProductStr)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%04x:%04x", device.VendorID, device.ProductID)
	}
	return strings.Join(parts, " ")
}

func (b *Backend) OpenDevice(id string) (devsvc.DeviceHandle, error) {
	addr, err := ParseHidAddress(id)
	if err != nil {
		return nil, err
	}
	info, ok := b.devices.Load(addr)
	if !ok {
		return nil, fmt.Errorf("device not found: %s", id)
	}
	dev, err := hid.OpenPath(info.Path)
	if err != nil {
		return nil, err
	}
	handle := &hidapiDevice{
		b:    b,
		log:  b.log,
		info: info,
		dev:  dev,
	}
	release, err := handle.detachInputs()
	if err != nil {
		// The device still works without hiding; games will just see it
		// twice.
		b.log.Warn("Failed to detach kernel input nodes", zap.String("device", id), zap.Error(err))
	}
	handle.release = release
	return handle, nil
}

type hidapiDevice struct {
	b       *Backend
	log     *zap.Logger
	info    hid.DeviceInfo
	dev     *hid.Device
	release func()
}

// detachInputs removes the device's evdev nodes so that only the virtual
// pad is visible to games while the device is mapped. The returned
// function restores them.
func (h *hidapiDevice) detachInputs() (func(), error) {
	hidrawDev := h.b.udev.NewDeviceFromSubsystemSysname("hidraw", filepath.Base(h.info.Path))
	if hidrawDev == nil {
		return nil, fmt.Errorf("hidraw device %s not found in udev", h.info.Path)
	}
	hidDev := hidrawDev.Parent()
	e := h.b.udev.NewEnumerate()
	e.AddMatchSubsystem("input")
	e.AddMatchParent(hidDev)
	inputs, err := e.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate input nodes: %w", err)
	}
	var detached []string
	for _, inputDev := range inputs {
		syspath := inputDev.Syspath()
		if !strings.HasPrefix(filepath.Base(syspath), "event") {
			continue
		}
		err := os.WriteFile(syspath+"/uevent", []byte("remove"), 0644)
		if err != nil {
			h.log.Error("Failed to detach input node", zap.Error(err))
			continue
		}
		detached = append(detached, syspath)
	}
	return func() {
		for _, input := range detached {
			err := os.WriteFile(input+"/uevent", []byte("add"), 0644)
			if err != nil {
				h.log.Error("Failed to reattach input node", zap.Error(err))
			}
		}
	}, nil
}

func (h *hidapiDevice) Read(buf []byte) (int, error) {
	return h.dev.Read(buf)
}

// Rumble writes a two-channel vendor output report. Devices that do not
// understand it will NAK the write, which callers treat as best-effort.
func (h *hidapiDevice) Rumble(level byte) error {
	_, err := h.dev.Write([]byte{0x00, level, level})
	return err
}

func (h *hidapiDevice) Close() error {
	if h.release != nil {
		h.release()
	}
	return h.dev.Close()
}
