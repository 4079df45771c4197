package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models scrapforge.yml.
type Config struct {
	Workshop struct {
		ID string `yaml:"id"`
	} `yaml:"workshop"`
	Phases   []Phase            `yaml:"phases"`
	Backends map[string]Backend `yaml:"backends"`
	Limits   struct {
		MaxImageBytes  int `yaml:"max_image_bytes"`
		MaxPromptChars int `yaml:"max_prompt_chars"`
	} `yaml:"limits"`
}

// Phase is one step of the build lifecycle. Order in the slice is the
// advance order; the last phase is terminal.
type Phase struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Gates       []Gate `yaml:"gates"`
}

// Gate is a named safety confirmation required before leaving a phase.
type Gate struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
}

// Backend is the reachable endpoint for one AI backend identity.
type Backend struct {
	URL            string `yaml:"url"`
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run forge init to create one", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Workshop.ID == "" {
		return fmt.Errorf("config.workshop.id is required")
	}
	if len(c.Phases) < 2 {
		return fmt.Errorf("config.phases must declare at least two phases")
	}
	seen := map[string]bool{}
	for i, p := range c.Phases {
		if p.Key == "" {
			return fmt.Errorf("phase %d has empty key", i)
		}
		if seen[p.Key] {
			return fmt.Errorf("duplicate phase key %s", p.Key)
		}
		seen[p.Key] = true
		gateIDs := map[string]bool{}
		for _, g := range p.Gates {
			if g.ID == "" {
				return fmt.Errorf("phase %s has gate with empty id", p.Key)
			}
			if gateIDs[g.ID] {
				return fmt.Errorf("phase %s has duplicate gate %s", p.Key, g.ID)
			}
			gateIDs[g.ID] = true
		}
	}
	last := c.Phases[len(c.Phases)-1]
	if len(last.Gates) > 0 {
		return fmt.Errorf("terminal phase %s cannot declare gates", last.Key)
	}
	for id, b := range c.Backends {
		switch id {
		case "foreman", "engineer", "contractor":
		default:
			return fmt.Errorf("unknown backend id %s", id)
		}
		if b.URL == "" {
			return fmt.Errorf("backend %s has empty url", id)
		}
		if b.Model == "" {
			return fmt.Errorf("backend %s has empty model", id)
		}
		if b.TimeoutSeconds <= 0 {
			return fmt.Errorf("backend %s needs timeout_seconds > 0", id)
		}
	}
	if c.Limits.MaxImageBytes <= 0 {
		return fmt.Errorf("config.limits.max_image_bytes must be > 0")
	}
	if c.Limits.MaxPromptChars <= 0 {
		return fmt.Errorf("config.limits.max_prompt_chars must be > 0")
	}
	return nil
}

// PhaseIndex returns the position of key in the phase order, or -1.
func (c *Config) PhaseIndex(key string) int {
	for i, p := range c.Phases {
		if p.Key == key {
			return i
		}
	}
	return -1
}

// PhaseByKey returns the declared phase for key.
func (c *Config) PhaseByKey(key string) (Phase, bool) {
	i := c.PhaseIndex(key)
	if i < 0 {
		return Phase{}, false
	}
	return c.Phases[i], true
}

// NextPhase returns the phase after key, or false when key is terminal
// or unknown.
func (c *Config) NextPhase(key string) (Phase, bool) {
	i := c.PhaseIndex(key)
	if i < 0 || i == len(c.Phases)-1 {
		return Phase{}, false
	}
	return c.Phases[i+1], true
}

// FirstPhase returns the initial phase of the lifecycle.
func (c *Config) FirstPhase() Phase {
	return c.Phases[0]
}

// TerminalPhase returns the last phase of the lifecycle.
func (c *Config) TerminalPhase() Phase {
	return c.Phases[len(c.Phases)-1]
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "scrapforge.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(workshopID string) string {
	return fmt.Sprintf(defaultTemplate, workshopID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a workshop.
func Default(workshopID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, workshopID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `workshop:
  id: %s

phases:
  - key: planning
    name: Planning
    description: "Review blueprint, source references, plan the build"
    gates: []

  - key: fabrication
    name: Fabrication
    description: "Cut, weld, machine and form raw stock"
    gates:
      - id: welds_inspected
        description: "All welds inspected and structural members verified"

  - key: assembly
    name: Assembly
    description: "Fit and fasten fabricated pieces"
    gates:
      - id: fasteners_torqued
        description: "All fasteners torqued and moving parts guarded"

  - key: electrical
    name: Electrical
    description: "Wiring, motor hookup, control panel"
    gates:
      - id: power_locked_out
        description: "Supply power locked out and capacitors discharged"
      - id: grounding_verified
        description: "Chassis grounding verified with a meter"

  - key: testing
    name: Testing
    description: "Power-on checks, load testing, calibration"
    gates:
      - id: guards_in_place
        description: "All guards in place and emergency stop tested"

  - key: complete
    name: Complete
    description: "Project finished and signed off"
    gates: []

backends:
  foreman:
    url: https://api.x.ai/v1/chat/completions
    model: grok-2-latest
    api_key_env: FOREMAN_API_KEY
    timeout_seconds: 60
  engineer:
    url: https://api.openai.com/v1/chat/completions
    model: gpt-4o
    api_key_env: ENGINEER_API_KEY
    timeout_seconds: 60
  contractor:
    url: https://generativelanguage.googleapis.com/v1beta/openai/chat/completions
    model: gemini-2.0-flash
    api_key_env: CONTRACTOR_API_KEY
    timeout_seconds: 90

limits:
  max_image_bytes: 10485760
  max_prompt_chars: 8000
`
