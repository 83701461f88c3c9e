package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pixil98/go-errors"
	"gopkg.in/yaml.v3"
)

// Config controls where and how worlds are stored.
type Config struct {
	SaveDir           string `yaml:"save_dir" json:"save_dir"`
	Compress          bool   `yaml:"compress" json:"compress"`
	ArtifactVersion   uint   `yaml:"artifact_version" json:"artifact_version"`
	CatalogPath       string `yaml:"catalog_path" json:"catalog_path"`
	DefaultColonyName string `yaml:"default_colony_name" json:"default_colony_name"`
	MetricsNamespace  string `yaml:"metrics_namespace" json:"metrics_namespace"`
}

func DefaultConfig() Config {
	return Config{
		SaveDir:          "saves",
		ArtifactVersion:  1,
		MetricsNamespace: "persistent_worlds",
	}
}

// LoadConfig reads a yaml config file over the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

func (c *Config) Normalize() {
	c.SaveDir = filepath.Clean(strings.TrimSpace(c.SaveDir))
	c.CatalogPath = strings.TrimSpace(c.CatalogPath)
	if c.CatalogPath != "" {
		c.CatalogPath = filepath.Clean(c.CatalogPath)
	}
	c.DefaultColonyName = strings.TrimSpace(c.DefaultColonyName)
	c.MetricsNamespace = strings.TrimSpace(c.MetricsNamespace)
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if c.SaveDir == "" || c.SaveDir == "." {
		el.Add(fmt.Errorf("save_dir is required"))
	}
	if c.ArtifactVersion == 0 {
		el.Add(fmt.Errorf("artifact_version must be at least 1"))
	}
	if strings.ContainsAny(c.MetricsNamespace, " -.") {
		el.Add(fmt.Errorf("metrics_namespace %q may only contain letters, digits and underscores", c.MetricsNamespace))
	}

	return el.Err()
}
