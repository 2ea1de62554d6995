package config

import (
	"fmt"
	"log/slog"

	"github.com/c360studio/diagramtype/detect"
	"github.com/c360studio/diagramtype/detect/builtin"
	"github.com/c360studio/diagramtype/detect/rules"
)

// BuildRegistry creates a detector registry from the detection section.
// Built-ins go first unless disabled, then the configured rules in order.
func (c *Config) BuildRegistry(logger *slog.Logger) (*detect.Registry, error) {
	reg := detect.NewRegistry(detect.WithLogger(logger))
	if !c.Detection.DisableBuiltins {
		builtin.Register(reg)
	}
	if err := rules.RegisterAll(reg, c.Detection.Rules); err != nil {
		return nil, fmt.Errorf("register rules: %w", err)
	}
	return reg, nil
}
