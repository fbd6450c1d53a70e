package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Browser identifies a supported browser family
type Browser string

const (
	Chrome   Browser = "chrome"
	Chromium Browser = "chromium"
	Edge     Browser = "edge"
	Firefox  Browser = "firefox"
)

// ManifestDir is one candidate location for a native messaging host manifest
type ManifestDir struct {
	Browser Browser
	Path    string
	System  bool // machine-wide location
}

// ManifestFile returns the manifest filename for a host name
func ManifestFile(hostName string) string {
	return hostName + ".json"
}

// ManifestDirs returns candidate manifest directories for the current OS,
// user-level locations first. Windows registers manifests in the registry,
// so the list is empty there.
func ManifestDirs(home string) []ManifestDir {
	switch runtime.GOOS {
	case "darwin":
		return []ManifestDir{
			{Chrome, filepath.Join(home, "Library", "Application Support", "Google", "Chrome", "NativeMessagingHosts"), false},
			{Chromium, filepath.Join(home, "Library", "Application Support", "Chromium", "NativeMessagingHosts"), false},
			{Edge, filepath.Join(home, "Library", "Application Support", "Microsoft Edge", "NativeMessagingHosts"), false},
			{Firefox, filepath.Join(home, "Library", "Application Support", "Mozilla", "NativeMessagingHosts"), false},
			{Chrome, "/Library/Google/Chrome/NativeMessagingHosts", true},
			{Chromium, "/Library/Application Support/Chromium/NativeMessagingHosts", true},
			{Firefox, "/Library/Application Support/Mozilla/NativeMessagingHosts", true},
		}
	case "linux":
		return []ManifestDir{
			{Chrome, filepath.Join(home, ".config", "google-chrome", "NativeMessagingHosts"), false},
			{Chromium, filepath.Join(home, ".config", "chromium", "NativeMessagingHosts"), false},
			{Edge, filepath.Join(home, ".config", "microsoft-edge", "NativeMessagingHosts"), false},
			{Firefox, filepath.Join(home, ".mozilla", "native-messaging-hosts"), false},
			{Chrome, "/etc/opt/chrome/native-messaging-hosts", true},
			{Chromium, "/etc/chromium/native-messaging-hosts", true},
			{Firefox, "/usr/lib/mozilla/native-messaging-hosts", true},
		}
	default:
		return nil
	}
}

// BrowserRoots returns per-browser configuration roots to scan when a
// manifest is not in a standard location. Channel builds such as
// google-chrome-beta keep their own directory trees under these roots.
func BrowserRoots(home string) []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			filepath.Join(home, "Library", "Application Support", "Google"),
			filepath.Join(home, "Library", "Application Support", "Chromium"),
			filepath.Join(home, "Library", "Application Support", "Mozilla"),
		}
	case "linux":
		return []string{
			filepath.Join(home, ".config"),
			filepath.Join(home, ".mozilla"),
		}
	default:
		return nil
	}
}

// ConfigDir returns the connector's configuration directory
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config dir: %w", err)
	}
	return filepath.Join(base, "mkd"), nil
}

// ValidateHostName checks a native messaging host name against the rules
// browsers enforce: lowercase alphanumerics, underscores, and dots, with no
// leading, trailing, or consecutive dots.
func ValidateHostName(name string) error {
	if name == "" {
		return fmt.Errorf("host name cannot be empty")
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("host name cannot start or end with a dot")
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("host name cannot contain consecutive dots")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_':
		default:
			return fmt.Errorf("host name contains invalid character %q", r)
		}
	}
	return nil
}
