// Package quirks maintains a registry of per-device-model tuning notes.
// Each quirk is a markdown file with YAML frontmatter describing how to
// match the device, its recommended deadzones, its force-feedback motor
// wiring and, when needed, the byte layout of its input report. The
// markdown body is free-form documentation and is kept as-is.
package quirks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iancoleman/strcase"
	"go.uber.org/zap"

	"github.com/padforge/padforge/padapi"
)

// Match selects devices by USB identity. Zero fields match anything.
type Match struct {
	Vendor  uint16 `yaml:"vendor"`
	Product uint16 `yaml:"product"`
}

// AxisField locates one analog source inside a raw input report.
type AxisField struct {
	Source int  `yaml:"source"`
	Offset int  `yaml:"offset"`
	Size   int  `yaml:"size"` // bytes: 1 or 2
	Signed bool `yaml:"signed"`
	Slider bool `yaml:"slider"`
}

// ButtonField locates one button bit inside a raw input report.
type ButtonField struct {
	Source int `yaml:"source"`
	Byte   int `yaml:"byte"`
	Bit    int `yaml:"bit"`
}

// ReportLayout describes how to decode a device's input report when the
// generic decoder cannot be derived from its descriptor.
type ReportLayout struct {
	Axes    []AxisField   `yaml:"axes"`
	Buttons []ButtonField `yaml:"buttons"`
}

// Quirk is one device-model entry.
type Quirk struct {
	Name      string
	Match     []Match
	Deadzones map[padapi.SourceKind]float64
	MotorMode string
	Layout    *ReportLayout
	Notes     string
}

// Deadzone returns the recommended deadzone for a source kind, or the
// built-in default when the quirk does not specify one.
func (q Quirk) Deadzone(kind padapi.SourceKind) float64 {
	if dz, ok := q.Deadzones[kind]; ok {
		return dz
	}
	switch kind {
	case padapi.SourceAxis:
		return 0.05
	case padapi.SourceSlider:
		return 0.02
	default:
		return 0
	}
}

func (q Quirk) matches(vendor, product uint16) bool {
	for _, m := range q.Match {
		if (m.Vendor == 0 || m.Vendor == vendor) && (m.Product == 0 || m.Product == product) {
			return true
		}
	}
	return false
}

type Registry struct {
	log    *zap.Logger
	quirks []Quirk
}

// Load reads every *.md file in dir. A missing directory yields an empty
// registry, not an error.
func Load(log *zap.Logger, dir string) (*Registry, error) {
	r := &Registry{log: log}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read quirks dir: %w", err)
	}
	parser := NewParser()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read quirk %s: %w", entry.Name(), err)
		}
		quirk, err := parser.Parse(data)
		if err != nil {
			log.Warn("Skipping malformed quirk file", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		if quirk.Name == "" {
			quirk.Name = strcase.ToKebab(strings.TrimSuffix(entry.Name(), ".md"))
		}
		r.quirks = append(r.quirks, quirk)
	}
	log.Info("Loaded device quirks", zap.Int("count", len(r.quirks)))
	return r, nil
}

// Lookup returns the first quirk matching the USB identity.
func (r *Registry) Lookup(vendor, product uint16) (Quirk, bool) {
	for _, q := range r.quirks {
		if q.matches(vendor, product) {
			return q, true
		}
	}
	return Quirk{}, false
}

// All returns every loaded quirk.
func (r *Registry) All() []Quirk {
	return r.quirks
}
