package procedure

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a procedure table from a YAML file mapping procedure
// names to signatures
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read procedure table: %w", err)
	}
	return Parse(data)
}

// Parse decodes and compiles a YAML procedure table
func Parse(data []byte) (*Table, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse procedure table: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyTable
	}

	specs, err := FromSignatures(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid procedure table: %w", err)
	}

	t, err := Compile(specs)
	if err != nil {
		return nil, fmt.Errorf("invalid procedure table: %w", err)
	}
	return t, nil
}
