package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	// FrontMatterConfig tunes the duplicate front-matter detection heuristic
	// applied while merging per-page fragments. It is best effort by nature,
	// so every knob has a conservative default and the whole pass can be
	// switched off.
	FrontMatterConfig struct {
		DropArtifacts bool     `yaml:"drop_artifacts"`
		PageThreshold int      `yaml:"page_threshold" validate:"min=0"`
		StampWords    []string `yaml:"stamp_words" validate:"dive,required"`
		TitleWords    []string `yaml:"title_words" validate:"dive,required"`
	}

	FootnotesConfig struct {
		Title         string   `yaml:"title" validate:"required"`
		AnchorClasses []string `yaml:"anchor_classes" validate:"required,dive,required"`
	}

	// RegisterConfig bounds the citation linkification pass to subtrees rooted
	// at headings matching one of the keywords.
	RegisterConfig struct {
		Keywords []string `yaml:"keywords" validate:"required,dive,required"`
	}

	DocumentConfig struct {
		Language     string            `yaml:"language" validate:"omitempty,bcp47_language_tag"`
		SlugFileName bool              `yaml:"slug_file_name"`
		FrontMatter  FrontMatterConfig `yaml:"front_matter"`
		Footnotes    FootnotesConfig   `yaml:"footnotes"`
		Register     RegisterConfig    `yaml:"register"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Document  DocumentConfig `yaml:"document"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to accept only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("configuration sanitization failed: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
