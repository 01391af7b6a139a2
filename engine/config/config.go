package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/renderer"
	"github.com/spaghettifunk/multibatch/engine/renderer/batch"
	"github.com/spaghettifunk/multibatch/engine/renderer/buffer"
	"github.com/spaghettifunk/multibatch/engine/renderer/metadata"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownFormat = errors.New("unknown configuration format")
	ErrInvalidConfig = errors.New("invalid configuration")
)

type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

/** @brief One per-instance attribute and the first slot it binds to. */
type Attribute struct {
	Name       string `toml:"name" yaml:"name"`
	Kind       string `toml:"kind" yaml:"kind"`
	Components uint32 `toml:"components" yaml:"components"`
	Slot       uint32 `toml:"slot" yaml:"slot"`
}

/**
 * @brief One shape of the registry and the capacity of its batch. Source is
 * either a generator ("cube", "plane") or the path of a Wavefront OBJ file.
 */
type Shape struct {
	Name     string  `toml:"name" yaml:"name"`
	Source   string  `toml:"source" yaml:"source"`
	Size     float32 `toml:"size" yaml:"size"`
	Segments uint32  `toml:"segments" yaml:"segments"`
	Capacity uint32  `toml:"capacity" yaml:"capacity"`
}

type Config struct {
	Name     string `toml:"name" yaml:"name"`
	LogLevel string `toml:"log_level" yaml:"log_level"`
	Backend  string `toml:"backend" yaml:"backend"`
	Debug    bool   `toml:"debug" yaml:"debug"`
	// Number of frames to run; 0 runs until shutdown.
	Frames         uint64      `toml:"frames" yaml:"frames"`
	MaxVertexSlots uint32      `toml:"max_vertex_slots" yaml:"max_vertex_slots"`
	Layout         string      `toml:"layout" yaml:"layout"`
	Attributes     []Attribute `toml:"attributes" yaml:"attributes"`
	Shapes         []Shape     `toml:"shapes" yaml:"shapes"`
}

// Default returns the setup the testbed runs with when no file is given.
func Default() *Config {
	return &Config{
		Name:           "multibatch",
		LogLevel:       "info",
		Backend:        renderer.Memory.String(),
		Frames:         120,
		MaxVertexSlots: metadata.DEFAULT_MAX_VERTEX_SLOTS,
		Layout:         buffer.LayoutPacked.String(),
		Attributes: []Attribute{
			{Name: "colour", Kind: "float32", Components: 4, Slot: 2},
			{Name: "transform", Kind: "float32", Components: 16, Slot: 3},
		},
		Shapes: []Shape{
			{Name: "cube", Source: "cube", Size: 1, Capacity: 64},
			{Name: "plane", Source: "plane", Size: 4, Segments: 2, Capacity: 16},
		},
	}
}

func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Load reads, decodes and validates the file at path.
func Load(path string) (*Config, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data, fills unset scalars with their defaults and
// validates the result. Unknown keys are rejected.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := &Config{}
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Backend == "" {
		c.Backend = def.Backend
	}
	if c.MaxVertexSlots == 0 {
		c.MaxVertexSlots = def.MaxVertexSlots
	}
	if c.Layout == "" {
		c.Layout = def.Layout
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks everything that can be checked without a backend. Slot
// overlaps are left to the binder, which reports them as warnings.
func (c *Config) Validate() error {
	if c.Name == "" {
		return invalid("name is empty")
	}
	if _, err := core.ParseLogLevel(c.LogLevel); err != nil {
		return invalid("%s", err)
	}
	if _, err := renderer.ParseRendererType(c.Backend); err != nil {
		return invalid("%s", err)
	}
	if _, err := buffer.ParseLayout(c.Layout); err != nil {
		return invalid("%s", err)
	}
	if c.MaxVertexSlots <= batch.GEOMETRY_SLOTS {
		return invalid("max_vertex_slots %d leaves no room for instance attributes", c.MaxVertexSlots)
	}

	if len(c.Attributes) == 0 {
		return invalid("no attributes")
	}
	names := map[string]bool{}
	for i, a := range c.Attributes {
		if a.Name == "" {
			return invalid("attribute %d has no name", i)
		}
		if names[a.Name] {
			return invalid("attribute %q declared twice", a.Name)
		}
		names[a.Name] = true
		kind, ok := metadata.ParseAttributeKind(a.Kind)
		if !ok {
			return invalid("attribute %q has unknown kind %q", a.Name, a.Kind)
		}
		field := buffer.Field{Name: a.Name, Kind: kind, Components: a.Components}
		if a.Slot < batch.GEOMETRY_SLOTS {
			return invalid("attribute %q uses geometry slot %d", a.Name, a.Slot)
		}
		if a.Components == 0 || a.Components > 16 {
			return invalid("attribute %q has %d components", a.Name, a.Components)
		}
		if uint64(a.Slot)+uint64(field.Slots()) > uint64(c.MaxVertexSlots) {
			return invalid("attribute %q needs slots [%d, %d), max is %d", a.Name, a.Slot, a.Slot+field.Slots(), c.MaxVertexSlots)
		}
	}

	if len(c.Shapes) == 0 {
		return invalid("no shapes")
	}
	names = map[string]bool{}
	var total uint64
	for i, s := range c.Shapes {
		if s.Name == "" {
			return invalid("shape %d has no name", i)
		}
		if names[s.Name] {
			return invalid("shape %q declared twice", s.Name)
		}
		names[s.Name] = true
		if s.Source == "" {
			return invalid("shape %q has no source", s.Name)
		}
		if s.Size < 0 {
			return invalid("shape %q has negative size", s.Name)
		}
		total += uint64(s.Capacity)
	}
	if total == 0 {
		return invalid("total batch capacity is 0")
	}
	return nil
}

// Fields returns the instance record layout described by Attributes.
func (c *Config) Fields() []buffer.Field {
	fields := make([]buffer.Field, 0, len(c.Attributes))
	for _, a := range c.Attributes {
		kind, _ := metadata.ParseAttributeKind(a.Kind)
		fields = append(fields, buffer.Field{Name: a.Name, Kind: kind, Components: a.Components})
	}
	return fields
}

// Slots returns the first slot of every attribute, in declaration order.
func (c *Config) Slots() []uint32 {
	slots := make([]uint32, len(c.Attributes))
	for i, a := range c.Attributes {
		slots[i] = a.Slot
	}
	return slots
}

func (c *Config) BufferLayout() buffer.Layout {
	l, _ := buffer.ParseLayout(c.Layout)
	return l
}

func (c *Config) RendererType() renderer.RendererType {
	t, _ := renderer.ParseRendererType(c.Backend)
	return t
}

func (c *Config) Level() core.LogLevel {
	l, _ := core.ParseLogLevel(c.LogLevel)
	return l
}

// Encode writes c in format; Parse(Encode(c)) yields an equal config.
func (c *Config) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		return toml.Marshal(c)
	case FormatYAML:
		return yaml.Marshal(c)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
