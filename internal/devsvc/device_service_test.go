package devsvc

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/padforge/padforge/internal/quirks"
	"github.com/padforge/padforge/padapi"
)

type fakeHandle struct {
	reports chan []byte

	mu      sync.Mutex
	rumbles []byte
	closed  bool
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{reports: make(chan []byte, 8)}
}

func (h *fakeHandle) Read(p []byte) (int, error) {
	report, ok := <-h.reports
	if !ok {
		return 0, io.EOF
	}
	return copy(p, report), nil
}

func (h *fakeHandle) Rumble(level byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rumbles = append(h.rumbles, level)
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.reports)
	}
	return nil
}

func (h *fakeHandle) Rumbles() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]byte, len(h.rumbles))
	copy(out, h.rumbles)
	return out
}

type fakeBackend struct {
	ready   chan struct{}
	handles map[string]*fakeHandle

	mu      sync.Mutex
	publish BackendPublisher
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		ready:   make(chan struct{}),
		handles: make(map[string]*fakeHandle),
	}
}

func (b *fakeBackend) Start(ctx context.Context, publisher BackendPublisher) error {
	b.mu.Lock()
	b.publish = publisher
	b.mu.Unlock()
	close(b.ready)
	<-ctx.Done()
	return nil
}

func (b *fakeBackend) Ready() <-chan struct{} {
	return b.ready
}

func (b *fakeBackend) OpenDevice(id string) (DeviceHandle, error) {
	return b.handles[id], nil
}

func (b *fakeBackend) emit(ctx context.Context, change BackendEventDevicesChanged) {
	b.mu.Lock()
	publish := b.publish
	b.mu.Unlock()
	publish(ctx, BackendEvent{DevicesChanged: &change})
}

func startTestService(t *testing.T) (*Service, *fakeBackend, context.Context) {
	t.Helper()
	opts := badger.DefaultOptions(t.TempDir())
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg, err := quirks.Load(zap.NewNop(), filepath.Join(t.TempDir(), "none"))
	require.NoError(t, err)

	backend := newFakeBackend()
	svc := New(db, zap.NewNop(), reg, time.Now, WithBackend("test", backend))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = svc.Start(ctx)
	}()
	select {
	case <-svc.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("service did not become ready")
	}
	return svc, backend, ctx
}

func TestDeviceLifecycle(t *testing.T) {
	svc, backend, ctx := startTestService(t)
	handle := newFakeHandle()
	backend.handles["dev1"] = handle

	events := svc.Subscribe(ctx, "test:dev1")

	backend.emit(ctx, BackendEventDevicesChanged{
		Connected: []BackendDevice{{ID: "dev1", Name: "Wheel", Vendor: 0x044f, Product: 0xb66e}},
	})
	require.Eventually(t, func() bool {
		return svc.IsConnected("test:dev1")
	}, 5*time.Second, time.Millisecond)

	// Pressing button 0 produces exactly one change event.
	report := make([]byte, 12)
	report[0] = 0x01
	handle.reports <- report

	select {
	case ev := <-events:
		assert.Equal(t, "test:dev1", ev.Device)
		assert.Equal(t, 0, ev.Source)
		assert.Equal(t, padapi.SourceButton, ev.Kind)
		assert.Equal(t, 1.0, ev.Value)
	case <-time.After(5 * time.Second):
		t.Fatal("no source event")
	}

	// The device is persisted for listing.
	records, err := svc.ListDevices()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "test:dev1", records[0].ID)
	assert.Equal(t, "Wheel", records[0].Name)
	assert.Equal(t, uint16(0x044f), records[0].Vendor)
	assert.False(t, records[0].FirstSeenAt.IsZero())

	backend.emit(ctx, BackendEventDevicesChanged{Disconnected: []string{"dev1"}})
	require.Eventually(t, func() bool {
		return !svc.IsConnected("test:dev1")
	}, 5*time.Second, time.Millisecond)

	// Known but disconnected devices stay listed.
	records, err = svc.ListDevices()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSubscribeWithoutDevicesDeliversNothing(t *testing.T) {
	svc, backend, ctx := startTestService(t)
	handle := newFakeHandle()
	backend.handles["dev1"] = handle

	subCtx, subCancel := context.WithCancel(ctx)
	none := svc.Subscribe(subCtx)
	some := svc.Subscribe(ctx, "test:dev1")

	backend.emit(ctx, BackendEventDevicesChanged{
		Connected: []BackendDevice{{ID: "dev1", Name: "Wheel"}},
	})
	require.Eventually(t, func() bool {
		return svc.IsConnected("test:dev1")
	}, 5*time.Second, time.Millisecond)

	report := make([]byte, 12)
	report[0] = 0x01
	handle.reports <- report

	select {
	case <-some:
	case <-time.After(5 * time.Second):
		t.Fatal("no source event")
	}
	select {
	case ev := <-none:
		t.Fatalf("unexpected delivery: %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}

	subCancel()
	select {
	case _, open := <-none:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestForceTarget(t *testing.T) {
	svc, backend, ctx := startTestService(t)
	handle := newFakeHandle()
	backend.handles["dev1"] = handle

	_, ok := svc.ForceTarget("test:dev1")
	assert.False(t, ok)

	backend.emit(ctx, BackendEventDevicesChanged{
		Connected: []BackendDevice{{ID: "dev1", Name: "Wheel"}},
	})
	require.Eventually(t, func() bool {
		return svc.IsConnected("test:dev1")
	}, 5*time.Second, time.Millisecond)

	target, ok := svc.ForceTarget("test:dev1")
	require.True(t, ok)

	require.NoError(t, target.SendForce(1))
	require.NoError(t, target.SendForce(0.5))
	require.NoError(t, target.SendForce(2))
	require.NoError(t, target.StopForce())
	assert.Equal(t, []byte{255, 127, 255, 0}, handle.Rumbles())
}

func TestAxisEventsApplyDeadzone(t *testing.T) {
	svc, backend, ctx := startTestService(t)
	handle := newFakeHandle()
	backend.handles["dev1"] = handle

	events := svc.Subscribe(ctx, "test:dev1")

	backend.emit(ctx, BackendEventDevicesChanged{
		Connected: []BackendDevice{{ID: "dev1", Name: "Wheel"}},
	})
	require.Eventually(t, func() bool {
		return svc.IsConnected("test:dev1")
	}, 5*time.Second, time.Millisecond)

	// Axis source 18 is a 16-bit signed field at offset 4. Full positive
	// deflection is well outside the default deadzone.
	report := make([]byte, 12)
	report[4] = 0xff
	report[5] = 0x7f
	handle.reports <- report

	for {
		select {
		case ev := <-events:
			if ev.Source != 18 {
				continue
			}
			assert.Equal(t, padapi.SourceAxis, ev.Kind)
			assert.InDelta(t, 1.0, ev.Value, 0.001)
			return
		case <-time.After(5 * time.Second):
			t.Fatal("no axis event")
		}
	}
}
