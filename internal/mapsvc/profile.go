package mapsvc

import (
	"fmt"
	"sort"

	"github.com/padforge/padforge/padapi"
	"github.com/padforge/padforge/padapi/binddsl"
)

// OutputMapping is the complete set of bindings feeding one virtual
// output. Binding order is preserved from the profile declaration.
type OutputMapping struct {
	Output   padapi.VirtualOutput
	Bindings []Binding
}

// Profile is one named mapping configuration. Exactly one profile is
// active in a running engine; swapping is atomic.
type Profile struct {
	Name     string
	Mappings map[padapi.VirtualOutput]OutputMapping
}

// Devices returns the distinct device IDs referenced by the profile,
// sorted for deterministic subscription order.
func (p *Profile) Devices() []string {
	seen := make(map[string]struct{})
	for _, mapping := range p.Mappings {
		for _, b := range mapping.Bindings {
			seen[b.Device] = struct{}{}
		}
	}
	devices := make([]string, 0, len(seen))
	for id := range seen {
		devices = append(devices, id)
	}
	sort.Strings(devices)
	return devices
}

// Bound reports whether the source is already bound to the output.
func (p *Profile) Bound(output padapi.VirtualOutput, key padapi.SourceKey) bool {
	mapping, ok := p.Mappings[output]
	if !ok {
		return false
	}
	for _, b := range mapping.Bindings {
		if b.Key() == key {
			return true
		}
	}
	return false
}

// AddBinding returns a copy of the profile with the binding appended to
// the output's mapping. The receiver is not modified: active profiles are
// treated as immutable and swapped whole.
func (p *Profile) AddBinding(output padapi.VirtualOutput, binding Binding) *Profile {
	next := &Profile{
		Name:     p.Name,
		Mappings: make(map[padapi.VirtualOutput]OutputMapping, len(p.Mappings)+1),
	}
	for o, mapping := range p.Mappings {
		bindings := make([]Binding, len(mapping.Bindings))
		copy(bindings, mapping.Bindings)
		next.Mappings[o] = OutputMapping{Output: o, Bindings: bindings}
	}
	mapping := next.Mappings[output]
	mapping.Output = output
	mapping.Bindings = append(mapping.Bindings, binding)
	next.Mappings[output] = mapping
	return next
}

// ProfileConfig is the on-disk declaration of one profile. Mapping keys
// are output names; values are binding expressions.
type ProfileConfig struct {
	Name     string              `json:"name"`
	Mappings map[string][]string `json:"mappings"`
}

// CompileProfile resolves a profile declaration: output names are parsed
// into VirtualOutput values and binding expressions through binddsl.
func CompileProfile(cfg ProfileConfig) (*Profile, error) {
	profile := &Profile{
		Name:     cfg.Name,
		Mappings: make(map[padapi.VirtualOutput]OutputMapping, len(cfg.Mappings)),
	}
	for outputName, exprs := range cfg.Mappings {
		output, err := padapi.ParseVirtualOutput(outputName)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", cfg.Name, err)
		}
		mapping := OutputMapping{Output: output}
		for _, expr := range exprs {
			binding, err := CompileBinding(expr)
			if err != nil {
				return nil, fmt.Errorf("profile %s, output %s: %w", cfg.Name, outputName, err)
			}
			mapping.Bindings = append(mapping.Bindings, binding)
		}
		profile.Mappings[output] = mapping
	}
	return profile, nil
}

// CompileBinding parses one binding expression into a Binding with
// defaults applied: full range, threshold 0.5, linear sensitivity.
func CompileBinding(expr string) (Binding, error) {
	parsed, err := binddsl.Parse(expr)
	if err != nil {
		return Binding{}, fmt.Errorf("failed to parse binding %q: %w", expr, err)
	}
	if _, err := padapi.ParseSourceKind(parsed.Source.Kind); err != nil {
		return Binding{}, fmt.Errorf("binding %q: %w", expr, err)
	}
	binding := Binding{
		Device:      parsed.Source.Device,
		Source:      parsed.Source.Index,
		MinValue:    0,
		MaxValue:    1,
		Threshold:   0.5,
		Sensitivity: 1,
	}
	for _, mod := range parsed.Modifiers {
		switch mod.Name {
		case "invert":
			if len(mod.Arguments) != 0 {
				return Binding{}, fmt.Errorf("binding %q: invert takes no arguments", expr)
			}
			binding.Invert = true
		case "range":
			args, err := mod.Numbers(2)
			if err != nil {
				return Binding{}, fmt.Errorf("binding %q: %w", expr, err)
			}
			if args[0] >= args[1] {
				return Binding{}, fmt.Errorf("binding %q: range min must be below max", expr)
			}
			binding.MinValue, binding.MaxValue = args[0], args[1]
		case "sens":
			args, err := mod.Numbers(1)
			if err != nil {
				return Binding{}, fmt.Errorf("binding %q: %w", expr, err)
			}
			if args[0] <= 0 {
				return Binding{}, fmt.Errorf("binding %q: sensitivity must be positive", expr)
			}
			binding.Sensitivity = args[0]
		case "threshold":
			args, err := mod.Numbers(1)
			if err != nil {
				return Binding{}, fmt.Errorf("binding %q: %w", expr, err)
			}
			binding.Threshold = args[0]
		case "label":
			text, err := mod.Text()
			if err != nil {
				return Binding{}, fmt.Errorf("binding %q: %w", expr, err)
			}
			binding.Label = text
		default:
			return Binding{}, fmt.Errorf("binding %q: unknown modifier %s", expr, mod.Name)
		}
	}
	return binding, nil
}
