// Package mapsvc implements the input mapping engine: it resolves live
// physical source values through per-binding transforms into virtual
// controller state, learns new bindings interactively and routes force
// feedback back to the physical device.
package mapsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/padforge/padforge/internal/configsvc"
)

// FFBConfig tunes the force-feedback router.
type FFBConfig struct {
	Mode string  `json:"mode"`
	Gain float64 `json:"gain"`
}

// FileConfig is the on-disk shape of the profiles file.
type FileConfig struct {
	Active   string          `json:"active"`
	FFB      FFBConfig       `json:"ffb"`
	Profiles []ProfileConfig `json:"profiles"`
}

func defaultFileConfig() FileConfig {
	return FileConfig{
		FFB: FFBConfig{Mode: "large", Gain: 1},
	}
}

// Service loads mapping profiles from the watched profiles file and keeps
// the engine running the active one. File changes recompile and swap
// atomically; a change that fails to compile leaves the last valid
// profile running.
type Service struct {
	log         *zap.Logger
	config      *configsvc.Service
	profilePath string
	engine      *Engine

	mu       sync.Mutex
	ctx      context.Context
	revision uint64
}

func New(log *zap.Logger, config *configsvc.Service, profilePath string, engine *Engine) *Service {
	return &Service{
		log:         log,
		config:      config,
		profilePath: profilePath,
		engine:      engine,
	}
}

// Engine exposes the running engine for capture control.
func (s *Service) Engine() *Engine {
	return s.engine
}

func (s *Service) Start(ctx context.Context) error {
	s.ctx = ctx
	select {
	case <-ctx.Done():
		return nil
	case <-s.config.Ready():
	}
	cfg, err := configsvc.Watch(s.config, s.profilePath, defaultFileConfig(), true, s.onConfigChange)
	if err != nil {
		return fmt.Errorf("failed to register profiles config: %w", err)
	}
	if err := s.apply(cfg); err != nil {
		return fmt.Errorf("failed to apply profiles config: %w", err)
	}
	<-ctx.Done()
	s.engine.Stop()
	return nil
}

func (s *Service) onConfigChange(cfg FileConfig, err error) {
	if err != nil {
		s.log.Error("Failed to read profiles config", zap.Error(err))
		return
	}
	if err := s.apply(cfg); err != nil {
		s.log.Error("Failed to apply profiles config", zap.Error(err))
	}
}

func (s *Service) apply(cfg FileConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to hash config: %w", err)
	}
	revision := xxhash.Sum64(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if revision == s.revision {
		s.log.Debug("Profiles config unchanged")
		return nil
	}

	if cfg.Active == "" {
		s.engine.Stop()
		s.revision = revision
		return nil
	}

	var active *ProfileConfig
	for i := range cfg.Profiles {
		if cfg.Profiles[i].Name == cfg.Active {
			active = &cfg.Profiles[i]
			break
		}
	}
	if active == nil {
		return fmt.Errorf("active profile %q not declared", cfg.Active)
	}
	profile, err := CompileProfile(*active)
	if err != nil {
		return err
	}

	mode, err := ParseMotorMode(cfg.FFB.Mode)
	if err != nil {
		return err
	}
	s.engine.SetMotorMode(mode, cfg.FFB.Gain)

	if err := s.engine.Swap(s.ctx, profile); err != nil {
		return fmt.Errorf("failed to swap profile: %w", err)
	}
	s.revision = revision
	return nil
}
