package manifest

import (
	"fmt"
	"strings"
)

// validateFunctions runs per-entry checks plus the cross-entry ones: unique
// paths, all under the server's function prefix.
func (c *Config) validateFunctions() error {
	seen := make(map[string]int, len(c.Functions))
	prefix := c.Server.FunctionPrefix
	for i := range c.Functions {
		f := &c.Functions[i]
		if err := f.normalize(); err != nil {
			return fmt.Errorf("function %d: %w", i, err)
		}
		if err := f.validate(); err != nil {
			return fmt.Errorf("function %d (%s %s): %w", i, f.Method, f.Path, err)
		}
		if f.Path != prefix && !strings.HasPrefix(f.Path, prefix+"/") {
			return fmt.Errorf("function %d: path %q outside function_prefix %q", i, f.Path, prefix)
		}
		if j, dup := seen[f.Path]; dup {
			return fmt.Errorf("function %d: path %q already declared by function %d", i, f.Path, j)
		}
		seen[f.Path] = i
	}
	return nil
}

func (c *Config) validatePages() error {
	seen := make(map[string]int, len(c.Pages))
	for i := range c.Pages {
		p := &c.Pages[i]
		if err := p.normalize(); err != nil {
			return fmt.Errorf("page %d: %w", i, err)
		}
		if strings.HasPrefix(p.Path+"/", c.Server.FunctionPrefix+"/") {
			return fmt.Errorf("page %d: path %q inside function_prefix %q", i, p.Path, c.Server.FunctionPrefix)
		}
		if j, dup := seen[p.Path]; dup {
			return fmt.Errorf("page %d: path %q already declared by page %d", i, p.Path, j)
		}
		seen[p.Path] = i
	}
	return nil
}
