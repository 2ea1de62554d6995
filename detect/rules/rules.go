// Package rules builds detectors from declarative pattern rules.
//
// Patterns use ECMAScript regular expression syntax, matching the way
// Mermaid detectors are usually written, so lookaheads and the like work.
package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/diagramtype/detect"
	"github.com/c360studio/diagramtype/detect/builtin"
)

// DefaultMatchTimeout bounds a single pattern evaluation.
const DefaultMatchTimeout = 100 * time.Millisecond

// Rule declares one pattern detector.
type Rule struct {
	// Key is the category key the rule registers under.
	Key string `yaml:"key"`
	// Pattern is matched against normalized text.
	Pattern string `yaml:"pattern"`
	// Locator is passed through to the registry untouched.
	Locator string `yaml:"locator"`

	IgnoreCase bool `yaml:"ignore_case,omitempty"`
	Multiline  bool `yaml:"multiline,omitempty"`

	// Renderer, when set, additionally gates the rule on the configured
	// default renderer of a diagram section.
	Renderer *RendererMatch `yaml:"renderer,omitempty"`
}

// RendererMatch compares cfg[Diagram]["defaultRenderer"] with Equals.
type RendererMatch struct {
	Diagram string `yaml:"diagram"`
	Equals  string `yaml:"equals"`
	Not     bool   `yaml:"not,omitempty"`
}

// File is the on-disk rule file layout.
type File struct {
	Rules []Rule `yaml:"rules"`
}

// CompileError reports a rule that could not be turned into a detector.
type CompileError struct {
	Index int
	Key   string
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("rule %d (%s): %v", e.Index, e.Key, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Validate checks the fields every rule needs.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Key) == "" {
		return errors.New("key is required")
	}
	if r.Pattern == "" {
		return errors.New("pattern is required")
	}
	if r.Renderer != nil && r.Renderer.Diagram == "" {
		return errors.New("renderer.diagram is required")
	}
	return nil
}

// Compile turns r into a detector. A pattern that exceeds the match timeout
// counts as a non-match.
func Compile(r Rule) (detect.Detector, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	if r.IgnoreCase {
		opts |= regexp2.IgnoreCase
	}
	if r.Multiline {
		opts |= regexp2.Multiline
	}

	re, err := regexp2.Compile(r.Pattern, opts)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	re.MatchTimeout = DefaultMatchTimeout

	gate := r.Renderer
	return func(text string, cfg detect.Config) bool {
		if gate != nil && (builtin.Renderer(cfg, gate.Diagram) == gate.Equals) == gate.Not {
			return false
		}
		ok, err := re.MatchString(text)
		return err == nil && ok
	}, nil
}

// RegisterAll compiles every rule and then registers them in order. Nothing
// is registered when any rule fails to compile.
func RegisterAll(reg *detect.Registry, rules []Rule) error {
	detectors := make([]detect.Detector, len(rules))
	for i, r := range rules {
		d, err := Compile(r)
		if err != nil {
			return &CompileError{Index: i, Key: r.Key, Err: err}
		}
		detectors[i] = d
	}

	for i, r := range rules {
		reg.Register(r.Key, detectors[i], r.Locator)
	}
	return nil
}

// Parse decodes a YAML rule file.
func Parse(data []byte) ([]Rule, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return f.Rules, nil
}

// LoadFile reads and decodes a YAML rule file.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}
