package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tdq/internal/generator"
)

// Defaults applied by DefaultConfig.
const (
	DefaultDataSource       = "telemetry-signals"
	DefaultContextTimeout   = "200000"
	DefaultExampleDataAppID = "B97579B6-FFB8-4AC5-AAA7-DA5796CC5DCE"
)

// Config holds the deployment settings of a Compiler.
type Config struct {
	// DataSource replaces the document's data source unless the query runs
	// with noFilter.
	DataSource string

	// UserField is the dimension counted by user sketches.
	UserField string

	// ExampleDataAppID is the app the exampleData policy scopes to.
	ExampleDataAppID uuid.UUID

	// ContextTimeout and SkipEmptyBuckets fill the query context where the
	// document leaves them unset.
	ContextTimeout   string
	SkipEmptyBuckets bool
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		DataSource:       DefaultDataSource,
		UserField:        generator.DefaultUserField,
		ExampleDataAppID: uuid.MustParse(DefaultExampleDataAppID),
		ContextTimeout:   DefaultContextTimeout,
		SkipEmptyBuckets: false,
	}
}

// fileConfig is the YAML form of Config. Keys left out of the file keep
// their default.
type fileConfig struct {
	DataSource       string `yaml:"dataSource"`
	UserField        string `yaml:"userField"`
	ExampleDataAppID string `yaml:"exampleDataAppID"`
	ContextTimeout   string `yaml:"contextTimeout"`
	SkipEmptyBuckets bool   `yaml:"skipEmptyBuckets"`
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
// Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config data on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	def := DefaultConfig()
	fc := fileConfig{
		DataSource:       def.DataSource,
		UserField:        def.UserField,
		ExampleDataAppID: def.ExampleDataAppID.String(),
		ContextTimeout:   def.ContextTimeout,
		SkipEmptyBuckets: def.SkipEmptyBuckets,
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	appID, err := uuid.Parse(fc.ExampleDataAppID)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: exampleDataAppID: %w", err)
	}
	cfg := Config{
		DataSource:       fc.DataSource,
		UserField:        fc.UserField,
		ExampleDataAppID: appID,
		ContextTimeout:   fc.ContextTimeout,
		SkipEmptyBuckets: fc.SkipEmptyBuckets,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the required settings are present.
func (c Config) Validate() error {
	if c.DataSource == "" {
		return fmt.Errorf("invalid config: dataSource is required")
	}
	if c.UserField == "" {
		return fmt.Errorf("invalid config: userField is required")
	}
	if c.ExampleDataAppID == uuid.Nil {
		return fmt.Errorf("invalid config: exampleDataAppID is required")
	}
	return nil
}
