package manifest

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

const (
	DefaultListen         = ":4000"
	DefaultFunctionPrefix = "/api"
	DefaultMaxBodyBytes   = 1 << 20
	DefaultStreamBuffer   = 16
)

// Config is the top-level manifest.
type Config struct {
	Server    Server     `toml:"server"`
	Functions []Function `toml:"function"`
	Pages     []Page     `toml:"page"`
}

// Server holds host-level settings. Zero values take the defaults above.
type Server struct {
	Listen         string `toml:"listen"`
	FunctionPrefix string `toml:"function_prefix"`
	MaxBodyBytes   int64  `toml:"max_body_bytes"`
	StreamBuffer   int    `toml:"stream_buffer"`
}

// Default is the configuration used when no manifest file exists.
func Default() Config {
	var c Config
	_ = c.Validate()
	return c
}

// Validate normalizes the manifest in place and reports the first problem.
func (c *Config) Validate() error {
	if err := c.Server.normalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.validateFunctions(); err != nil {
		return err
	}
	return c.validatePages()
}

func (s *Server) normalize() error {
	s.Listen = strings.TrimSpace(s.Listen)
	if s.Listen == "" {
		s.Listen = DefaultListen
	}
	p := strings.TrimSpace(s.FunctionPrefix)
	if p == "" {
		p = DefaultFunctionPrefix
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	s.FunctionPrefix = path.Clean(p)
	if s.FunctionPrefix == "/" {
		return errors.New("function_prefix must not be the root path")
	}
	switch {
	case s.MaxBodyBytes == 0:
		s.MaxBodyBytes = DefaultMaxBodyBytes
	case s.MaxBodyBytes < 0:
		return errors.New("max_body_bytes must be >= 0")
	}
	switch {
	case s.StreamBuffer == 0:
		s.StreamBuffer = DefaultStreamBuffer
	case s.StreamBuffer < 0:
		return errors.New("stream_buffer must be >= 0")
	}
	return nil
}

// Function returns the manifest entry for path, if any.
func (c *Config) Function(p string) (Function, bool) {
	for _, f := range c.Functions {
		if f.Path == p {
			return f, true
		}
	}
	return Function{}, false
}

// Page returns the manifest entry for path, if any.
func (c *Config) Page(p string) (Page, bool) {
	for _, pg := range c.Pages {
		if pg.Path == p {
			return pg, true
		}
	}
	return Page{}, false
}
