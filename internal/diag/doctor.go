package diag

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/flying-pisces/mkd-automation-sub002/internal/host"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/config"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/paths"
	"go.uber.org/zap"
)

const (
	// pingTimeout bounds the round-trip check so diagnostics never hang
	pingTimeout = 5 * time.Second

	// slowPingThreshold marks a working but degraded channel
	slowPingThreshold = time.Second

	// backlogThreshold is the pending-request count that suggests the
	// host stopped answering
	backlogThreshold = 10
)

// HostClient is the channel surface the doctor probes
type HostClient interface {
	Call(ctx context.Context, command string, params map[string]interface{}) (map[string]interface{}, error)
	Status() host.Status
}

// Doctor runs the connector's diagnostic checks
type Doctor struct {
	cfg  *config.Config
	host HostClient
	log  *logging.Logger

	manifestDirs []paths.ManifestDir
	browserRoots []string
}

// New creates a doctor. hostClient may be nil when the channel is not up,
// in which case channel checks degrade to warnings.
func New(cfg *config.Config, hostClient HostClient, log *logging.Logger) *Doctor {
	d := &Doctor{
		cfg:  cfg,
		host: hostClient,
		log:  log.Named("diag"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		d.manifestDirs = paths.ManifestDirs(home)
		d.browserRoots = paths.BrowserRoots(home)
	}
	return d
}

// Run executes every check and compiles the report
func (d *Doctor) Run(ctx context.Context) *Report {
	checks := []Check{
		d.checkConfig(),
		d.checkHostName(),
		d.checkHostBinary(),
		d.checkManifest(ctx),
		d.checkPing(ctx),
		d.checkBacklog(),
	}

	report := compile(checks)
	d.log.Info("Diagnostics complete",
		zap.Bool("healthy", report.Healthy),
		zap.Int("checks", len(report.Checks)))
	return report
}

func (d *Doctor) checkConfig() Check {
	check := Check{Name: "configuration"}

	if err := d.cfg.Validate(); err != nil {
		check.Level = Fail
		check.Detail = err.Error()
		check.Remedy = "fix the configuration value and restart the connector"
		return check
	}

	if !isLoopback(d.cfg.Server.Host) && d.cfg.Server.AuthToken == "" {
		check.Level = Warn
		check.Detail = fmt.Sprintf("server binds %s without an auth token", d.cfg.Server.Host)
		check.Remedy = "set AUTH_TOKEN or bind to 127.0.0.1"
		return check
	}

	check.Level = Pass
	check.Detail = "configuration valid"
	return check
}

func (d *Doctor) checkHostName() Check {
	check := Check{Name: "host name"}

	if err := paths.ValidateHostName(d.cfg.Host.Name); err != nil {
		check.Level = Fail
		check.Detail = err.Error()
		check.Remedy = "host names use lowercase alphanumerics, dots, and underscores"
		return check
	}

	check.Level = Pass
	check.Detail = d.cfg.Host.Name
	return check
}

func (d *Doctor) checkHostBinary() Check {
	check := Check{Name: "host binary"}
	command := d.cfg.Host.Command

	resolved, err := resolveBinary(command)
	if err != nil {
		check.Level = Fail
		check.Detail = err.Error()
		check.Remedy = "install the native host or point NATIVE_HOST_COMMAND at it"
		return check
	}

	check.Level = Pass
	check.Detail = resolved
	return check
}

func (d *Doctor) checkManifest(ctx context.Context) Check {
	check := Check{Name: "native messaging manifest"}

	if len(d.manifestDirs) == 0 && len(d.browserRoots) == 0 {
		check.Level = Warn
		check.Detail = "no standard manifest locations on this platform"
		return check
	}

	result := discoverManifests(ctx, d.cfg.Host.Name, d.manifestDirs, d.browserRoots)
	switch {
	case len(result.standard) > 0:
		if err := validateFirst(result.standard, d.cfg.Host.Name); err != nil {
			check.Level = Warn
			check.Detail = err.Error()
			check.Remedy = "regenerate the manifest so the browser accepts it"
			return check
		}
		check.Level = Pass
		check.Detail = fmt.Sprintf("found for %s", strings.Join(result.browsers, ", "))
	case len(result.stray) > 0:
		check.Level = Warn
		check.Detail = fmt.Sprintf("manifest only found outside standard locations: %s", result.stray[0])
		check.Remedy = "move or symlink the manifest into the browser's NativeMessagingHosts directory"
	default:
		check.Level = Fail
		check.Detail = "no manifest found for any browser"
		check.Remedy = fmt.Sprintf("create %s under the browser's NativeMessagingHosts directory", paths.ManifestFile(d.cfg.Host.Name))
	}
	return check
}

func (d *Doctor) checkPing(ctx context.Context) Check {
	check := Check{Name: "host round-trip"}

	if d.host == nil {
		check.Level = Warn
		check.Detail = "host channel not started"
		check.Remedy = "start the connector daemon before running diagnostics"
		return check
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	_, err := d.host.Call(ctx, host.PingCommand, nil)
	latency := time.Since(start)

	if err != nil {
		check.Level = Fail
		check.Detail = err.Error()
		check.Remedy = "check that the host process is installed and responding, then reconnect"
		return check
	}

	check.Detail = fmt.Sprintf("round-trip %s", latency.Round(time.Millisecond))
	if latency > slowPingThreshold {
		check.Level = Warn
		check.Remedy = "host responses are slow, check system load"
		return check
	}
	check.Level = Pass
	return check
}

func (d *Doctor) checkBacklog() Check {
	check := Check{Name: "pending backlog"}

	if d.host == nil {
		check.Level = Warn
		check.Detail = "host channel not started"
		return check
	}

	status := d.host.Status()
	check.Detail = fmt.Sprintf("%d pending", status.Pending)
	if !status.Connected {
		check.Level = Warn
		check.Detail = fmt.Sprintf("channel down with %d pending", status.Pending)
		check.Remedy = "reconnect the host channel"
		return check
	}
	if status.Pending > backlogThreshold {
		check.Level = Warn
		check.Remedy = "the host is not answering, consider reconnecting"
		return check
	}
	check.Level = Pass
	return check
}

// discovery is the outcome of a manifest search
type discovery struct {
	standard []string // manifest paths in standard directories
	browsers []string // browsers those belong to
	stray    []string // manifests found only by scanning browser roots
}

// discoverManifests looks for the host manifest in the standard
// directories first, then falls back to walking the browser roots for
// misplaced copies (channel builds keep their own trees).
func discoverManifests(ctx context.Context, hostName string, dirs []paths.ManifestDir, roots []string) discovery {
	filename := paths.ManifestFile(hostName)
	var result discovery

	for _, dir := range dirs {
		candidate := filepath.Join(dir.Path, filename)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			result.standard = append(result.standard, candidate)
			result.browsers = append(result.browsers, string(dir.Browser))
		}
	}
	if len(result.standard) > 0 {
		return result
	}

	// fastwalk invokes the callback concurrently
	var mu sync.Mutex
	conf := fastwalk.Config{Follow: false}
	for _, root := range roots {
		_ = fastwalk.Walk(&conf, root, func(p string, entry os.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err != nil || entry.IsDir() {
				return nil
			}
			if filepath.Base(p) == filename {
				mu.Lock()
				result.stray = append(result.stray, p)
				mu.Unlock()
			}
			return nil
		})
	}
	return result
}

func validateFirst(manifestPaths []string, hostName string) error {
	manifest, err := LoadManifest(manifestPaths[0])
	if err != nil {
		return err
	}
	return manifest.Validate(hostName)
}

func resolveBinary(command string) (string, error) {
	if filepath.IsAbs(command) {
		info, err := os.Stat(command)
		if err != nil {
			return "", fmt.Errorf("host binary %s not found", command)
		}
		if info.IsDir() || info.Mode()&0111 == 0 {
			return "", fmt.Errorf("host binary %s is not executable", command)
		}
		return command, nil
	}

	resolved, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("host binary %q not found in PATH", command)
	}
	return resolved, nil
}

func isLoopback(hostname string) bool {
	switch hostname {
	case "127.0.0.1", "::1", "localhost", "":
		return true
	}
	return false
}
