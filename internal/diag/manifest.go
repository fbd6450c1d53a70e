package diag

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"
)

// Manifest is a native messaging host manifest as browsers expect it.
// Chrome-family browsers use allowed_origins, Firefox uses
// allowed_extensions.
type Manifest struct {
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	Path              string   `json:"path"`
	Type              string   `json:"type"`
	AllowedOrigins    []string `json:"allowed_origins,omitempty"`
	AllowedExtensions []string `json:"allowed_extensions,omitempty"`
}

// LoadManifest reads and decodes a manifest file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := sonic.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &manifest, nil
}

// Validate checks the manifest against what browsers enforce at
// connection time
func (m *Manifest) Validate(hostName string) error {
	if m.Name != hostName {
		return fmt.Errorf("manifest name %q does not match host name %q", m.Name, hostName)
	}
	if m.Type != "stdio" {
		return fmt.Errorf("manifest type must be %q, got %q", "stdio", m.Type)
	}
	if m.Path == "" {
		return fmt.Errorf("manifest has no host binary path")
	}
	if len(m.AllowedOrigins) == 0 && len(m.AllowedExtensions) == 0 {
		return fmt.Errorf("manifest allows no extensions, the browser will refuse to connect")
	}
	return nil
}
