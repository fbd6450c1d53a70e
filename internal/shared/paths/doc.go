// Package paths provides standardized filesystem paths.
//
// This package defines where native messaging host manifests live for each
// supported browser and OS, plus the connector's own config directory.
// Installation and diagnostics should use these helpers rather than
// hardcoding locations.
//
// # Manifest Locations
//
// Browsers look up a native messaging host by name in fixed directories:
//
//	Linux (user):   ~/.config/google-chrome/NativeMessagingHosts/
//	Linux (system): /etc/opt/chrome/native-messaging-hosts/
//	macOS (user):   ~/Library/Application Support/Google/Chrome/NativeMessagingHosts/
//	macOS (system): /Library/Google/Chrome/NativeMessagingHosts/
//
// Windows uses registry keys instead of directories and is not covered here.
//
// # Usage
//
//	// Candidate manifest directories for this OS
//	for _, dir := range paths.ManifestDirs(home) {
//	    manifest := filepath.Join(dir.Path, paths.ManifestFile("com.mkd.automation"))
//	    // ...
//	}
//
//	// Validate a host name before writing a manifest
//	if err := paths.ValidateHostName(name); err != nil {
//	    // reject
//	}
package paths
