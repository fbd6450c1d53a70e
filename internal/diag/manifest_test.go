package diag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validManifestJSON = `{
	"name": "com.mkd.automation",
	"description": "MKD browser automation host",
	"path": "/usr/local/bin/mkd-host",
	"type": "stdio",
	"allowed_origins": ["chrome-extension://knldjmfmopnpolahpmmgbagdohdnhkik/"]
}`

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "com.mkd.automation.json", validManifestJSON)

	manifest, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "com.mkd.automation", manifest.Name)
	assert.Equal(t, "stdio", manifest.Type)
	assert.Equal(t, "/usr/local/bin/mkd-host", manifest.Path)
	assert.Len(t, manifest.AllowedOrigins, 1)
	assert.Empty(t, manifest.AllowedExtensions)
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read manifest")
}

func TestLoadManifestRejectsGarbage(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "broken.json", "{not valid json")

	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode manifest")
}

func TestManifestValidate(t *testing.T) {
	base := Manifest{
		Name:           "com.mkd.automation",
		Path:           "/usr/local/bin/mkd-host",
		Type:           "stdio",
		AllowedOrigins: []string{"chrome-extension://abc/"},
	}

	tests := []struct {
		name    string
		mutate  func(*Manifest)
		wantErr string
	}{
		{"valid chrome style", func(*Manifest) {}, ""},
		{"valid firefox style", func(m *Manifest) {
			m.AllowedOrigins = nil
			m.AllowedExtensions = []string{"recorder@mkd.dev"}
		}, ""},
		{"name mismatch", func(m *Manifest) { m.Name = "com.other.host" }, "does not match"},
		{"wrong type", func(m *Manifest) { m.Type = "socket" }, `must be "stdio"`},
		{"missing path", func(m *Manifest) { m.Path = "" }, "no host binary path"},
		{"no extensions allowed", func(m *Manifest) { m.AllowedOrigins = nil }, "allows no extensions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manifest := base
			tt.mutate(&manifest)

			err := manifest.Validate("com.mkd.automation")
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
