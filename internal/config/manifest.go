package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jobrunner/stacsync/internal/domain"
)

// Manifest lists the rasters a new catalog is bootstrapped with.
type Manifest struct {
	Catalog struct {
		ID          string `yaml:"id"`
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
	} `yaml:"catalog"`
	Items []ManifestItem `yaml:"items"`
}

// ManifestItem is one raster of a bootstrap manifest.
type ManifestItem struct {
	ID        string `yaml:"id"`
	Href      string `yaml:"href"`
	MediaType string `yaml:"media_type"`
}

// LoadManifest reads a bootstrap manifest from a YAML file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes a bootstrap manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	for i, item := range m.Items {
		if item.Href == "" {
			return nil, &domain.ConfigError{
				Field:   fmt.Sprintf("items[%d].href", i),
				Message: "is required",
			}
		}
	}
	return &m, nil
}
