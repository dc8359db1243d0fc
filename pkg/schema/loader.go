package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and structurally decodes a contractnet/v0 system file.
// Unknown fields are a structural error.
func LoadFile(path string) (*System, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open system: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a contractnet/v0 system from a reader.
func Load(r io.Reader) (*System, error) {
	var sys System
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sys); err != nil {
		return nil, fmt.Errorf("structural decode: %w", err)
	}
	return &sys, nil
}
