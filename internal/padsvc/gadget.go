package padsvc

import (
	"context"
	"fmt"
	"io"
	"sync"

	gadget "github.com/openstadia/go-usb-gadget"
	o "github.com/openstadia/go-usb-gadget/option"
	"go.uber.org/zap"

	"github.com/padforge/padforge/padapi"
)

var gadgetSeq struct {
	mu  sync.Mutex
	seq int
}

func nextGadgetName() string {
	gadgetSeq.mu.Lock()
	defer gadgetSeq.mu.Unlock()
	gadgetSeq.seq++
	return fmt.Sprintf("padforge-%d", gadgetSeq.seq)
}

// GadgetSink exposes the virtual controller as a USB gadget through
// configfs. It only works on hardware with a UDC (USB device
// controller), for example a Raspberry Pi in peripheral mode.
type GadgetSink struct {
	log     *zap.Logger
	name    string
	vendor  uint16
	product uint16
	udc     string

	gadget      *gadget.Gadget
	config      *gadget.Config
	hidFunction *gadget.HidFunction
	binding     *gadget.Binding
	rw          io.ReadWriter
	rumble      chan padapi.Rumble
	cancel      context.CancelFunc
}

func NewGadgetSink(opts SinkOptions) *GadgetSink {
	return &GadgetSink{
		log:     opts.Log,
		name:    opts.Name,
		vendor:  opts.Vendor,
		product: opts.Product,
		udc:     opts.UDC,
	}
}

func (s *GadgetSink) Connect(ctx context.Context) error {
	udc := s.udc
	if udc == "" {
		udcs := gadget.GetUdcs()
		if len(udcs) == 0 {
			return fmt.Errorf("no USB device controller available")
		}
		udc = udcs[0]
	}

	var err error
	defer func() {
		if err != nil {
			s.teardown()
		}
	}()

	name := nextGadgetName()
	s.gadget = gadget.CreateGadget(name)
	s.gadget.SetAttrs(&gadget.GadgetAttrs{
		BcdUSB:          o.Some[uint16](0x0200),
		BDeviceClass:    o.None[uint8](),
		BDeviceSubClass: o.None[uint8](),
		BDeviceProtocol: o.None[uint8](),
		BMaxPacketSize0: o.None[uint8](),
		IdVendor:        o.Some[uint16](s.vendor),
		IdProduct:       o.Some[uint16](s.product),
		BcdDevice:       o.Some[uint16](0x0100),
	})
	s.gadget.SetStrs(&gadget.GadgetStrs{
		SerialNumber: "0000000000000001",
		Manufacturer: "PadForge",
		Product:      s.name,
	}, gadget.LangUsEng)

	s.config = gadget.CreateConfig(s.gadget, name, 1)
	s.config.SetAttrs(&gadget.ConfigAttrs{
		BmAttributes: o.None[uint8](),
		BMaxPower:    o.Some[uint8](250),
	})
	s.config.SetStrs(&gadget.ConfigStrs{
		Configuration: "Config 1: gamepad",
	}, gadget.LangUsEng)

	s.hidFunction = gadget.CreateHidFunction(s.gadget, name)
	s.hidFunction.SetAttrs(&gadget.HidFunctionAttrs{
		Subclass:     0,
		Protocol:     0,
		ReportLength: padapi.ReportSize,
		ReportDesc:   padapi.Descriptor(),
	})

	s.binding = gadget.CreateBinding(s.config, s.hidFunction, s.hidFunction.Name())

	s.gadget.Enable(udc)
	s.rw, err = s.hidFunction.GetReadWriter()
	if err != nil {
		return fmt.Errorf("failed to open gadget endpoint: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.rumble = make(chan padapi.Rumble, 8)
	go s.readOutput(runCtx)
	return nil
}

func (s *GadgetSink) readOutput(ctx context.Context) {
	buf := make([]byte, padapi.RumbleReportSize)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := s.rw.Read(buf)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Debug("Gadget output read failed", zap.Error(err))
			}
			return
		}
		rumble, err := padapi.DecodeRumble(buf[:n])
		if err != nil {
			continue
		}
		select {
		case s.rumble <- rumble:
		default:
		}
	}
}

func (s *GadgetSink) Send(state padapi.State) error {
	if s.rw == nil {
		return fmt.Errorf("gadget is not connected")
	}
	_, err := s.rw.Write(padapi.EncodeReport(state))
	return err
}

func (s *GadgetSink) Rumble() <-chan padapi.Rumble {
	return s.rumble
}

func (s *GadgetSink) Close() error {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.teardown()
	return nil
}

func (s *GadgetSink) teardown() {
	if s.gadget != nil {
		s.gadget.Disable()
	}
	if s.binding != nil {
		s.binding.Close()
		s.binding = nil
	}
	if s.hidFunction != nil {
		s.hidFunction.Close()
		s.hidFunction = nil
	}
	if s.config != nil {
		s.config.Close()
		s.config = nil
	}
	if s.gadget != nil {
		s.gadget.Close()
		s.gadget = nil
	}
	s.rw = nil
}
