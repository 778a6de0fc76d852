package binddsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		expected Binding
	}{
		{
			name: "bare source",
			expr: "t300rs.axis[0]",
			expected: Binding{
				Source: Source{Device: "t300rs", Kind: "axis", Index: 0},
			},
		},
		{
			name: "quoted device address",
			expr: `"046d:c24f:0".button[3]`,
			expected: Binding{
				Source: Source{Device: "046d:c24f:0", Kind: "button", Index: 3},
			},
		},
		{
			name: "modifier without arguments",
			expr: "t300rs.axis[0] invert",
			expected: Binding{
				Source:    Source{Device: "t300rs", Kind: "axis", Index: 0},
				Modifiers: []Modifier{{Name: "invert"}},
			},
		},
		{
			name: "full pipeline",
			expr: "t300rs.axis[0] invert range(0.05, 0.95) sens(1.8)",
			expected: Binding{
				Source: Source{Device: "t300rs", Kind: "axis", Index: 0},
				Modifiers: []Modifier{
					{Name: "invert"},
					{Name: "range", Arguments: []Argument{num(0.05), num(0.95)}},
					{Name: "sens", Arguments: []Argument{num(1.8)}},
				},
			},
		},
		{
			name: "string argument",
			expr: `pedals.slider[1] threshold(0.6) label("shift up")`,
			expected: Binding{
				Source: Source{Device: "pedals", Kind: "slider", Index: 1},
				Modifiers: []Modifier{
					{Name: "threshold", Arguments: []Argument{num(0.6)}},
					{Name: "label", Arguments: []Argument{str("shift up")}},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			binding, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, binding)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, expr := range []string{
		"",
		"t300rs",
		"t300rs.axis",
		"t300rs.axis[0] range(",
		".axis[0]",
	} {
		_, err := Parse(expr)
		assert.Error(t, err, expr)
	}
}

func TestModifierArguments(t *testing.T) {
	binding, err := Parse(`w.axis[0] range(0.1, 0.9) label("x") sens(2)`)
	require.NoError(t, err)

	numbers, err := binding.Modifiers[0].Numbers(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.9}, numbers)

	_, err = binding.Modifiers[0].Numbers(1)
	assert.Error(t, err)

	text, err := binding.Modifiers[1].Text()
	require.NoError(t, err)
	assert.Equal(t, "x", text)

	_, err = binding.Modifiers[2].Text()
	assert.Error(t, err)
}

func num(v float64) Argument {
	return Argument{Number: &v}
}

func str(s string) Argument {
	return Argument{String: &s}
}
