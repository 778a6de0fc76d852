package devsvc

import (
	"context"
	"io"

	"github.com/padforge/padforge/pkg/bus"
)

type (
	BackendBus       = bus.Bus[string, BackendEvent]
	BackendPublisher = bus.Publisher[BackendEvent]
)

// BackendEvent notifies the service of device arrivals and departures.
type BackendEvent struct {
	DevicesChanged *BackendEventDevicesChanged
}

type BackendEventDevicesChanged struct {
	Connected    []BackendDevice
	Disconnected []string
}

// BackendDevice describes one physical device as seen by a backend.
// ID is stable for the lifetime of the connection and unique within the
// backend.
type BackendDevice struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Vendor  uint16 `json:"vendor"`
	Product uint16 `json:"product"`
}

// Backend is a platform driver producing devices and raw input reports.
type Backend interface {
	Start(ctx context.Context, publisher BackendPublisher) error
	Ready() <-chan struct{}
	OpenDevice(id string) (DeviceHandle, error)
}

// DeviceHandle is an open physical device. Read blocks for the next raw
// input report. Rumble drives the device's force motor, best-effort.
type DeviceHandle interface {
	io.ReadCloser
	Rumble(level byte) error
}
