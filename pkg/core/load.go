// pkg/core/load.go
package core

import (
	"bytes"
	"fmt"
	"os"

	"github.com/joeydtaylor/steeze-ssr/pkg/manifest"
	toml "github.com/pelletier/go-toml/v2"
)

// LoadConfig reads and validates a TOML manifest. A missing file is reported
// with an error wrapping fs.ErrNotExist.
func LoadConfig(path string) (manifest.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return manifest.Config{}, err
	}
	var cfg manifest.Config
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return manifest.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return manifest.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyManifest checks every manifest function entry against reg and binds its
// transformers. It must run before reg is sealed.
func ApplyManifest(reg *Registry, cfg manifest.Config) error {
	if reg.Sealed() {
		return ErrSealed
	}
	for _, f := range cfg.Functions {
		d, ok := reg.Lookup(f.Path)
		if !ok {
			return fmt.Errorf("manifest function %s: %w", f.Path, ErrNotFound)
		}
		if string(d.Method) != f.Method {
			return fmt.Errorf("manifest function %s: method %s, registered as %s", f.Path, f.Method, d.Method)
		}
		if err := d.UseTransformers(f.Transformers); err != nil {
			return fmt.Errorf("manifest function %s: %w", f.Path, err)
		}
	}
	return nil
}
