package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OptionType represents the expected type of a configuration option value.
type OptionType string

const (
	TypeString   OptionType = "string"
	TypeBool     OptionType = "bool"
	TypeInt      OptionType = "int"
	TypeDuration OptionType = "duration"
)

// ConfigOption declares a single configuration option with its type, default,
// documentation, and environment variable override.
type ConfigOption struct {
	// Key is the option name as it appears in the config file.
	Key     string
	Type    OptionType
	Default string
	// Description is a human-readable description of the option.
	Description string
	// Section is "" for global options, or a command name.
	Section string
	// EnvVar is the environment variable that overrides this option, or "".
	EnvVar string
}

// ConfigSchema declares the expected configuration options.
type ConfigSchema struct {
	options   []*ConfigOption
	byKey     map[string]*ConfigOption
	bySection map[string]map[string]*ConfigOption
}

// NewSchema creates a new empty ConfigSchema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		byKey:     make(map[string]*ConfigOption),
		bySection: make(map[string]map[string]*ConfigOption),
	}
}

// Register adds a ConfigOption to the schema. The last registration of a key
// within a section wins.
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := new(ConfigOption)
	*ref = opt
	s.options = append(s.options, ref)
	if opt.Section == "" {
		s.byKey[opt.Key] = ref
		return
	}
	if s.bySection[opt.Section] == nil {
		s.bySection[opt.Section] = make(map[string]*ConfigOption)
	}
	s.bySection[opt.Section][opt.Key] = ref
}

// RegisterAll adds multiple ConfigOptions to the schema.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Options returns every registered option in registration order.
func (s *ConfigSchema) Options() []ConfigOption {
	out := make([]ConfigOption, 0, len(s.options))
	for _, o := range s.options {
		out = append(out, *o)
	}
	return out
}

// Lookup returns the ConfigOption for a key in a given section ("" for
// global), or nil.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	if section == "" {
		return s.byKey[key]
	}
	return s.bySection[section][key]
}

// IsKnown reports whether key may appear in section. Global keys are known
// in every command section, where they override the global value.
func (s *ConfigSchema) IsKnown(section, key string) bool {
	if section != "" && s.bySection[section][key] != nil {
		return true
	}
	return s.byKey[key] != nil
}

// SectionOf returns the section that declares key: "" for global and
// unknown keys, otherwise the first section, in sorted order, declaring it.
func (s *ConfigSchema) SectionOf(key string) string {
	if s.byKey[key] != nil {
		return ""
	}
	for _, sec := range s.Sections() {
		if s.bySection[sec][key] != nil {
			return sec
		}
	}
	return ""
}

// SectionOptions returns all registered options for a section ("" for
// global).
func (s *ConfigSchema) SectionOptions(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns the sorted names of all non-global sections.
func (s *ConfigSchema) Sections() []string {
	out := make([]string, 0, len(s.bySection))
	for sec := range s.bySection {
		out = append(out, sec)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the effective value of key for a command section ("" for
// global), checking in order the declared environment variable, the section
// value, the global value, then the schema default.
func (s *ConfigSchema) Resolve(c *Config, section, key string) string {
	opt := s.Lookup(section, key)
	if opt == nil {
		opt = s.Lookup("", key)
	}
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if c != nil {
		if v, ok := c.GetCommandOption(section, key); ok {
			return v
		}
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ResolveBool is Resolve parsed as a bool; unparseable values yield false.
func (s *ConfigSchema) ResolveBool(c *Config, section, key string) bool {
	b, _ := parseBool(s.Resolve(c, section, key))
	return b
}

// ResolveInt is Resolve parsed as an int; unparseable values yield 0.
func (s *ConfigSchema) ResolveInt(c *Config, section, key string) int {
	i, _ := strconv.Atoi(s.Resolve(c, section, key))
	return i
}

// ResolveDuration is Resolve parsed as a time.Duration; unparseable values
// yield 0.
func (s *ConfigSchema) ResolveDuration(c *Config, section, key string) time.Duration {
	d, _ := time.ParseDuration(s.Resolve(c, section, key))
	return d
}

// ValidateConfig checks a loaded Config against the schema and returns a
// sorted list of human-readable issues: unknown options and type mismatches.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string

	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := validateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}

	for section, opts := range c.Commands {
		for key, value := range opts {
			if !s.IsKnown(section, key) {
				issues = append(issues, fmt.Sprintf("unknown option for command %q: %q (value: %q)", section, key, value))
				continue
			}
			opt := s.Lookup(section, key)
			if opt == nil {
				opt = s.Lookup("", key)
			}
			if err := validateType(opt.Type, value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}

	sort.Strings(issues)
	return issues
}

// Validate checks a single key and value, as entered on the command line.
func (s *ConfigSchema) Validate(section, key, value string) error {
	if !s.IsKnown(section, key) {
		return fmt.Errorf("unknown option %q", key)
	}
	opt := s.Lookup(section, key)
	if opt == nil {
		opt = s.Lookup("", key)
	}
	return validateType(opt.Type, value)
}

func validateType(t OptionType, value string) error {
	switch t {
	case TypeString, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeDuration:
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			return fmt.Errorf("expected duration, got %q", value)
		}
	default:
		return fmt.Errorf("unknown option type %q", t)
	}
	return nil
}

// FormatHelp returns a human-readable reference of all registered options,
// grouped by section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	if globals := s.SectionOptions(""); len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}
	for _, sec := range s.Sections() {
		fmt.Fprintf(&b, "\n[%s] Options:\n", sec)
		for _, o := range s.SectionOptions(sec) {
			writeOptionHelp(&b, o)
		}
	}
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	fmt.Fprintf(b, "  %-22s %s", o.Key, o.Description)
	parts := make([]string, 0, 3)
	if o.Type != "" && o.Type != TypeString {
		parts = append(parts, "type: "+string(o.Type))
	}
	if o.Default != "" {
		parts = append(parts, "default: "+o.Default)
	}
	if o.EnvVar != "" {
		parts = append(parts, "env: "+o.EnvVar)
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

// Option keys shared by the commands.
const (
	KeyLogLevel      = "log.level"
	KeyLogFile       = "log.file"
	KeyLogBuffer     = "log.buffer"
	KeyLogMaxSizeMB  = "log.max-size-mb"
	KeyLogMaxFiles   = "log.max-files"
	KeyTickInterval  = "tick.interval"
	KeyRenderFrames  = "render.frames"
	KeyRenderWidth   = "render.width"
	KeyViewAltScreen = "viewer.alt-screen"
	KeyViewMouse     = "viewer.mouse"
	KeyMetricsAddr   = "metrics.addr"
)

// DefaultSchema returns the schema declaring every option scene understands.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: KeyLogLevel, Type: TypeString, Default: "info", Description: "Log level: debug, info, warn, error", EnvVar: "SCENE_LOG_LEVEL"},
		{Key: KeyLogFile, Type: TypeString, Description: "Log file path (JSON lines)", EnvVar: "SCENE_LOG_FILE"},
		{Key: KeyLogBuffer, Type: TypeInt, Default: "1000", Description: "In-memory log buffer size (entries)"},
		{Key: KeyLogMaxSizeMB, Type: TypeInt, Default: "10", Description: "Max log file size in MB before rotation"},
		{Key: KeyLogMaxFiles, Type: TypeInt, Default: "5", Description: "Max number of rotated log backups"},
		{Key: KeyTickInterval, Type: TypeDuration, Default: "50ms", Description: "Interval between frame ticks"},
		{Key: KeyMetricsAddr, Type: TypeString, Description: "Address to serve prometheus metrics on", EnvVar: "SCENE_METRICS_ADDR"},

		{Key: KeyRenderFrames, Section: "render", Type: TypeInt, Default: "1", Description: "Frame ticks to run before printing"},
		{Key: KeyRenderWidth, Section: "render", Type: TypeInt, Default: "0", Description: "Truncate printed lines to this width (0: unlimited)"},

		{Key: KeyViewAltScreen, Section: "view", Type: TypeBool, Default: "true", Description: "Use the terminal alternate screen"},
		{Key: KeyViewMouse, Section: "view", Type: TypeBool, Default: "true", Description: "Enable mouse clicks on scene objects"},
	})
	return s
}
