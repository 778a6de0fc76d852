// Package devsvc enumerates physical input devices through pluggable
// backends and fans out normalized per-source change notifications.
package devsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/padforge/padforge/internal/quirks"
	"github.com/padforge/padforge/padapi"
	"github.com/padforge/padforge/pkg/bits"
	"github.com/padforge/padforge/pkg/bus"
)

type (
	InputBus        = bus.Bus[string, padapi.SourceEvent]
	InputPublisher  = bus.Publisher[padapi.SourceEvent]
	InputSubscriber = bus.Subscriber[string, padapi.SourceEvent]
)

var defaultOptions = serviceOptions{
	backends: make(map[string]Backend),
}

type serviceOptions struct {
	backends map[string]Backend
}

type Option func(*serviceOptions)

func WithBackend(name string, backend Backend) Option {
	return func(o *serviceOptions) {
		o.backends[name] = backend
	}
}

type Service struct {
	log     *zap.Logger
	db      *badger.DB
	quirks  *quirks.Registry
	options serviceOptions
	now     func() time.Time
	ready   chan struct{}

	backendBus *BackendBus
	inputBus   *InputBus
	connected  *xsync.MapOf[string, *device]
}

// device is one connected physical device with its decoding state.
// Its read loop is the single writer of the source values.
type device struct {
	id      string
	info    BackendDevice
	quirk   quirks.Quirk
	layout  quirks.ReportLayout
	sources map[int]*padapi.Source
	handle  DeviceHandle
	cancel  context.CancelFunc
}

func New(db *badger.DB, log *zap.Logger, quirkReg *quirks.Registry, now func() time.Time, opts ...Option) *Service {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &Service{
		log:        log,
		db:         db,
		quirks:     quirkReg,
		options:    options,
		now:        now,
		ready:      make(chan struct{}),
		backendBus: bus.NewBus[string, BackendEvent](log),
		inputBus:   bus.NewBus[string, padapi.SourceEvent](log),
		connected:  xsync.NewMapOf[string, *device](),
	}
}

func (s *Service) Start(ctx context.Context) error {
	if err := s.backendBus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start backend bus: %w", err)
	}
	if err := s.inputBus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start input bus: %w", err)
	}

	s.consumeBackendEvents(ctx)

	for backendID := range s.options.backends {
		go s.runBackend(ctx, backendID)
	}
	for _, backend := range s.options.backends {
		select {
		case <-ctx.Done():
			return nil
		case <-backend.Ready():
		}
	}
	close(s.ready)
	s.log.Info("Device service started")
	<-ctx.Done()
	return nil
}

func (s *Service) runBackend(ctx context.Context, backendID string) {
	err := s.options.backends[backendID].Start(ctx, s.backendBus.CreatePublisher(backendID))
	if err != nil {
		s.log.Error("Backend failed", zap.String("backend", backendID), zap.Error(err))
	}
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

func (s *Service) consumeBackendEvents(ctx context.Context) {
	go func() {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		ch := s.backendBus.Subscribe(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-ch:
				if msg.Message.DevicesChanged != nil {
					s.onDevicesChanged(ctx, msg.Key, msg.Message.DevicesChanged)
				}
			}
		}
	}()
}

func (s *Service) onDevicesChanged(ctx context.Context, backendID string, change *BackendEventDevicesChanged) {
	for _, bdev := range change.Connected {
		id := fmt.Sprintf("%s:%s", backendID, bdev.ID)
		if _, ok := s.connected.Load(id); ok {
			continue
		}
		if err := s.connectDevice(ctx, backendID, id, bdev); err != nil {
			s.log.Error("Failed to connect device", zap.String("device", id), zap.Error(err))
		}
	}
	for _, backendDeviceID := range change.Disconnected {
		id := fmt.Sprintf("%s:%s", backendID, backendDeviceID)
		if dev, ok := s.connected.LoadAndDelete(id); ok {
			dev.cancel()
			dev.handle.Close()
			s.log.Info("Device disconnected", zap.String("device", id))
		}
	}
}

func (s *Service) connectDevice(ctx context.Context, backendID, id string, bdev BackendDevice) error {
	if _, err := s.rememberDevice(id, bdev); err != nil {
		return err
	}
	handle, err := s.options.backends[backendID].OpenDevice(bdev.ID)
	if err != nil {
		return fmt.Errorf("failed to open device: %w", err)
	}

	quirk, ok := s.quirks.Lookup(bdev.Vendor, bdev.Product)
	if !ok {
		s.log.Debug("No quirk for device, using generic layout", zap.String("device", id))
	}
	layout := defaultLayout
	if quirk.Layout != nil {
		layout = *quirk.Layout
	}

	dev := &device{
		id:      id,
		info:    bdev,
		quirk:   quirk,
		layout:  layout,
		sources: make(map[int]*padapi.Source),
		handle:  handle,
	}
	for _, f := range layout.Buttons {
		dev.sources[f.Source] = padapi.NewSource(f.Source, fmt.Sprintf("button%d", f.Source), padapi.SourceButton, 0)
	}
	for _, f := range layout.Axes {
		kind := padapi.SourceAxis
		if f.Slider {
			kind = padapi.SourceSlider
		}
		dev.sources[f.Source] = padapi.NewSource(f.Source, fmt.Sprintf("%s%d", kind, f.Source), kind, quirk.Deadzone(kind))
	}

	devCtx, cancel := context.WithCancel(ctx)
	dev.cancel = cancel
	s.connected.Store(id, dev)
	go s.readLoop(devCtx, dev)
	s.log.Info("Device connected",
		zap.String("device", id),
		zap.String("name", bdev.Name),
		zap.Int("sources", len(dev.sources)),
	)
	return nil
}

func (s *Service) readLoop(ctx context.Context, dev *device) {
	publish := s.inputBus.CreatePublisher(dev.id)
	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := dev.handle.Read(buf)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("Device read failed", zap.String("device", dev.id), zap.Error(err))
			}
			return
		}
		s.decodeReport(ctx, dev, buf[:n], publish)
	}
}

func (s *Service) decodeReport(ctx context.Context, dev *device, report []byte, publish InputPublisher) {
	for _, f := range dev.layout.Buttons {
		if f.Byte >= len(report) {
			continue
		}
		raw := 0.0
		if bits.Bit(report, f.Byte, f.Bit) {
			raw = 1.0
		}
		s.refresh(ctx, dev, f.Source, raw, publish)
	}
	for _, f := range dev.layout.Axes {
		raw, ok := bits.Uint(report, f.Offset, f.Size)
		if !ok {
			continue
		}
		value := bits.Norm(raw, f.Size)
		if f.Signed && f.Size == 2 {
			value = bits.SignedNorm(raw)
		}
		s.refresh(ctx, dev, f.Source, value, publish)
	}
}

func (s *Service) refresh(ctx context.Context, dev *device, sourceIdx int, raw float64, publish InputPublisher) {
	source, ok := dev.sources[sourceIdx]
	if !ok {
		return
	}
	value, changed := source.Refresh(raw)
	if !changed {
		return
	}
	publish(ctx, padapi.SourceEvent{
		Device: dev.id,
		Source: sourceIdx,
		Kind:   source.Kind,
		Value:  value,
	})
}

// defaultLayout mirrors the virtual pad's own report shape: 16 buttons in
// the first two bytes, two 8-bit sliders, four 16-bit signed axes.
var defaultLayout = quirks.ReportLayout{
	Buttons: func() []quirks.ButtonField {
		fields := make([]quirks.ButtonField, 16)
		for i := range fields {
			fields[i] = quirks.ButtonField{Source: i, Byte: i / 8, Bit: i % 8}
		}
		return fields
	}(),
	Axes: []quirks.AxisField{
		{Source: 16, Offset: 2, Size: 1, Slider: true},
		{Source: 17, Offset: 3, Size: 1, Slider: true},
		{Source: 18, Offset: 4, Size: 2, Signed: true},
		{Source: 19, Offset: 6, Size: 2, Signed: true},
		{Source: 20, Offset: 8, Size: 2, Signed: true},
		{Source: 21, Offset: 10, Size: 2, Signed: true},
	},
}

// DeviceRecord is the badger-persisted metadata for a device that has been
// seen at least once.
type DeviceRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Vendor      uint16    `json:"vendor"`
	Product     uint16    `json:"product"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

func deviceKey(id string) []byte {
	return []byte("dev/" + id)
}

func (s *Service) rememberDevice(id string, bdev BackendDevice) (DeviceRecord, error) {
	var rec DeviceRecord
	now := s.now()
	err := s.db.Update(func(txn *badger.Txn) error {
		key := deviceKey(id)
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal device: %w", err)
			}
		}
		rec.ID = id
		rec.Name = bdev.Name
		rec.Vendor = bdev.Vendor
		rec.Product = bdev.Product
		if rec.FirstSeenAt.IsZero() {
			rec.FirstSeenAt = now
		}
		rec.LastSeenAt = now
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal device: %w", err)
		}
		return txn.Set(key, b)
	})
	if err != nil {
		return DeviceRecord{}, fmt.Errorf("failed to persist device: %w", err)
	}
	return rec, nil
}

// ListDevices returns every device ever seen, connected or not.
func (s *Service) ListDevices() ([]DeviceRecord, error) {
	var records []DeviceRecord
	err := s.db.View(func(txn *badger.Txn) error {
		iter := txn.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()
		prefix := []byte("dev/")
		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			var rec DeviceRecord
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return records, nil
}

// IsConnected reports whether the device is currently attached.
func (s *Service) IsConnected(id string) bool {
	_, ok := s.connected.Load(id)
	return ok
}

// Subscribe delivers change notifications for the given devices until ctx
// is cancelled. Device IDs that are not connected yet are valid: events
// start flowing if the device appears later. An empty ID list delivers
// nothing; the channel still closes when ctx is cancelled.
func (s *Service) Subscribe(ctx context.Context, deviceIDs ...string) <-chan padapi.SourceEvent {
	if len(deviceIDs) == 0 {
		out := make(chan padapi.SourceEvent)
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out
	}
	in := s.inputBus.Subscribe(ctx, deviceIDs...)
	out := make(chan padapi.SourceEvent)
	go func() {
		defer close(out)
		for msg := range in {
			select {
			case <-ctx.Done():
				return
			case out <- msg.Message:
			}
		}
	}()
	return out
}

// ForceTarget returns a force-feedback sink driving the device's motor, if
// the device is connected.
func (s *Service) ForceTarget(id string) (padapi.ForceSink, bool) {
	dev, ok := s.connected.Load(id)
	if !ok {
		return nil, false
	}
	return &forceHandle{handle: dev.handle}, true
}

type forceHandle struct {
	handle DeviceHandle
}

func (f *forceHandle) SendForce(level float64) error {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	return f.handle.Rumble(byte(level * 255))
}

func (f *forceHandle) StopForce() error {
	return f.handle.Rumble(0)
}
