package http

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIFS embed.FS

var (
	openAPIJSON     []byte
	openAPIJSONOnce sync.Once
	openAPIJSONErr  error

	apiVersion = "dev"
)

// SetVersion sets the version reported in the ops API description.
// It must be called before the first request.
func SetVersion(version string) {
	if version != "" {
		apiVersion = version
	}
}

// getOpenAPIJSON returns the ops API description as JSON, rendered once.
func getOpenAPIJSON() ([]byte, error) {
	openAPIJSONOnce.Do(func() {
		openAPIJSON, openAPIJSONErr = renderOpenAPI(apiVersion)
	})
	return openAPIJSON, openAPIJSONErr
}

// renderOpenAPI reads the embedded YAML, stamps the version and encodes it
// as JSON.
func renderOpenAPI(version string) ([]byte, error) {
	data, err := openAPIFS.ReadFile("openapi.yaml")
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing openapi.yaml: %w", err)
	}

	info, ok := doc["info"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("openapi.yaml has no info section")
	}
	info["version"] = version

	return json.MarshalIndent(doc, "", "  ")
}
