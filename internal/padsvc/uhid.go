package padsvc

import (
	"context"
	"fmt"

	"github.com/psanford/uhid"
	"go.uber.org/zap"

	"github.com/padforge/padforge/padapi"
)

// UhidSink exposes the virtual controller through the uhid kernel
// module. Rumble arrives as HID output events on the uhid character
// device.
type UhidSink struct {
	log     *zap.Logger
	name    string
	vendor  uint16
	product uint16

	dev    *uhid.Device
	rumble chan padapi.Rumble
	cancel context.CancelFunc
}

func NewUhidSink(opts SinkOptions) *UhidSink {
	return &UhidSink{
		log:     opts.Log,
		name:    opts.Name,
		vendor:  opts.Vendor,
		product: opts.Product,
	}
}

func (s *UhidSink) Connect(ctx context.Context) error {
	dev, err := uhid.NewDevice(s.name, padapi.Descriptor())
	if err != nil {
		return fmt.Errorf("failed to create uhid device: %w", err)
	}
	dev.Data.Bus = 0x03
	dev.Data.VendorID = uint32(s.vendor)
	dev.Data.ProductID = uint32(s.product)

	runCtx, cancel := context.WithCancel(ctx)
	events, err := dev.Open(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open uhid device: %w", err)
	}

	s.dev = dev
	s.cancel = cancel
	s.rumble = make(chan padapi.Rumble, 8)
	go s.readEvents(runCtx, events)
	return nil
}

func (s *UhidSink) readEvents(ctx context.Context, events chan uhid.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			if event.Type != uhid.Output {
				continue
			}
			rumble, err := padapi.DecodeRumble(event.Data)
			if err != nil {
				s.log.Debug("Ignoring malformed output report", zap.Error(err))
				continue
			}
			select {
			case s.rumble <- rumble:
			default:
			}
		}
	}
}

func (s *UhidSink) Send(state padapi.State) error {
	if s.dev == nil {
		return fmt.Errorf("uhid device is not connected")
	}
	return s.dev.InjectEvent(padapi.EncodeReport(state))
}

func (s *UhidSink) Rumble() <-chan padapi.Rumble {
	return s.rumble
}

func (s *UhidSink) Close() error {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.dev == nil {
		return nil
	}
	err := s.dev.Close()
	s.dev = nil
	return err
}
