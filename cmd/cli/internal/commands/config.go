package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadFile decodes a YAML or JSON request file into out. JSON documents are valid YAML.
func loadFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// override points dst at v unless v is empty.
func override(dst **string, v string) {
	if v == "" {
		return
	}
	*dst = &v
}
