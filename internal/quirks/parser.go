package quirks

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/iancoleman/strcase"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/padforge/padforge/padapi"
)

type Parser struct {
	md goldmark.Markdown
}

func NewParser() *Parser {
	markdown := goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			meta.Meta,
		),
	)
	return &Parser{
		md: markdown,
	}
}

type frontmatter struct {
	Name      string             `yaml:"name"`
	Match     []Match            `yaml:"match"`
	Deadzones map[string]float64 `yaml:"deadzones"`
	MotorMode string             `yaml:"motorMode"`
	Layout    *ReportLayout      `yaml:"layout"`
}

// Parse decodes one quirk markdown document. The YAML frontmatter carries
// the structured fields; the rendered body is kept as free-form notes.
func (p *Parser) Parse(data []byte) (Quirk, error) {
	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := p.md.Convert(data, &buf, parser.WithContext(pctx)); err != nil {
		return Quirk{}, fmt.Errorf("failed to parse markdown: %w", err)
	}
	metaMap := meta.Get(pctx)
	if metaMap == nil {
		return Quirk{}, fmt.Errorf("missing frontmatter")
	}

	// goldmark-meta yields a generic map; round-trip through YAML to get
	// the typed frontmatter.
	metaB, err := yaml.Marshal(metaMap)
	if err != nil {
		return Quirk{}, fmt.Errorf("failed to re-marshal frontmatter: %w", err)
	}
	var fm frontmatter
	if err := yaml.Unmarshal(metaB, &fm); err != nil {
		return Quirk{}, fmt.Errorf("failed to decode frontmatter: %w", err)
	}

	quirk := Quirk{
		Name:      fm.Name,
		Match:     fm.Match,
		MotorMode: fm.MotorMode,
		Layout:    fm.Layout,
		Notes:     buf.String(),
	}
	if len(fm.Deadzones) > 0 {
		quirk.Deadzones = make(map[padapi.SourceKind]float64, len(fm.Deadzones))
		for key, dz := range fm.Deadzones {
			kind, err := padapi.ParseSourceKind(strcase.ToLowerCamel(key))
			if err != nil {
				return Quirk{}, fmt.Errorf("deadzones: %w", err)
			}
			quirk.Deadzones[kind] = dz
		}
	}
	return quirk, nil
}
