// Package padsvc provides the virtual game controller sinks. A sink
// presents a single gamepad to the operating system and carries rumble
// commands back from it.
package padsvc

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/padforge/padforge/padapi"
	"github.com/padforge/padforge/pkg/registry"
)

// Config selects and parameterizes the virtual controller.
type Config struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Vendor  uint16 `json:"vendor"`
	Product uint16 `json:"product"`
	// UDC is the USB device controller to bind a gadget sink to.
	// Empty selects the first available one.
	UDC string `json:"udc"`
}

// SinkOptions are passed to sink creators.
type SinkOptions struct {
	Log     *zap.Logger
	Name    string
	Vendor  uint16
	Product uint16
	UDC     string
}

type Service struct {
	log   *zap.Logger
	sinks *registry.Registry[padapi.Sink, SinkOptions]
}

func New(log *zap.Logger) *Service {
	s := &Service{
		log:   log,
		sinks: registry.NewRegistry[padapi.Sink, SinkOptions](),
	}
	s.sinks.Register("uhid", func(opts SinkOptions) (padapi.Sink, error) {
		return NewUhidSink(opts), nil
	})
	s.sinks.Register("gadget", func(opts SinkOptions) (padapi.Sink, error) {
		return NewGadgetSink(opts), nil
	})
	s.sinks.Register("loopback", func(opts SinkOptions) (padapi.Sink, error) {
		return NewLoopback(), nil
	})
	return s
}

// SinkTypes returns the available sink type names.
func (s *Service) SinkTypes() []string {
	return s.sinks.IDs()
}

// CreateSink builds the sink described by cfg. The sink is not
// connected yet; the engine connects it when a profile starts.
func (s *Service) CreateSink(cfg Config) (padapi.Sink, error) {
	if cfg.Type == "" {
		cfg.Type = "uhid"
	}
	if cfg.Name == "" {
		cfg.Name = "PadForge Virtual Controller"
	}
	if cfg.Vendor == 0 {
		cfg.Vendor = 0x045e
	}
	if cfg.Product == 0 {
		cfg.Product = 0x028e
	}
	sink, err := s.sinks.New(cfg.Type, SinkOptions{
		Log:     s.log.Named(cfg.Type),
		Name:    cfg.Name,
		Vendor:  cfg.Vendor,
		Product: cfg.Product,
		UDC:     cfg.UDC,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s sink: %w", cfg.Type, err)
	}
	return sink, nil
}
