// Package binddsl parses the compact expression language used to declare
// source-to-output bindings in mapping profiles.
package binddsl

import (
	"fmt"
)

func Parse(expr string) (Binding, error) {
	result, err := bindingParser.ParseString("", expr)
	if err != nil {
		return Binding{}, err
	}
	return *result, nil
}

// Numbers extracts exactly count numeric arguments from the modifier.
func (m Modifier) Numbers(count int) ([]float64, error) {
	if len(m.Arguments) != count {
		return nil, fmt.Errorf("%s expects %d argument(s), got %d", m.Name, count, len(m.Arguments))
	}
	numbers := make([]float64, count)
	for i, arg := range m.Arguments {
		if arg.Number == nil {
			return nil, fmt.Errorf("%s argument %d must be a number", m.Name, i+1)
		}
		numbers[i] = *arg.Number
	}
	return numbers, nil
}

func (m Modifier) Text() (string, error) {
	if len(m.Arguments) != 1 || m.Arguments[0].String == nil {
		return "", fmt.Errorf("%s expects a single string argument", m.Name)
	}
	return *m.Arguments[0].String, nil
}
