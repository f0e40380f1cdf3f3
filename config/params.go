package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/dustyfingers/synthy/synth"
)

// LoadParamsJSON reads a parameter snapshot such as {"frequency":0.5,"modulation":0.2}.
func LoadParamsJSON(path string) (map[string]float32, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var values map[string]float32
	if err := json.Unmarshal(b, &values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return values, nil
}

// ApplyParams stores values into p. Unknown names fail before anything is written.
func ApplyParams(p *synth.Params, values map[string]float32) error {
	if p == nil {
		return fmt.Errorf("nil params")
	}
	names := make([]string, 0, len(values))
	for name := range values {
		if _, ok := p.Lookup(name); !ok {
			return fmt.Errorf("%w: unknown parameter %q", synth.ErrInvalidConfig, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		idx, _ := p.Lookup(name)
		p.Set(idx, values[name])
	}
	return nil
}

// SaveParamsJSON writes the current parameter values.
func SaveParamsJSON(path string, p *synth.Params) error {
	snap := p.Snapshot()
	values := make(map[string]float32, len(snap))
	for i, v := range snap {
		values[p.Name(i)] = v
	}
	b, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
