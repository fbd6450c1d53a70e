package settings

import (
	"context"
	"fmt"

	"github.com/flying-pisces/mkd-automation-sub002/internal/domain/capture"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/config"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/types"
	"go.uber.org/zap"
)

// Provider exposes runtime-adjustable connector settings as registry
// tools. Log verbosity and sanitizer toggles apply immediately; the rest
// of the configuration is reported read-only.
type Provider struct {
	log       *logging.Logger
	cfg       *config.Config
	sanitizer *capture.Sanitizer
}

// NewProvider creates a settings provider. log must be the root logger so
// level changes apply process-wide.
func NewProvider(log *logging.Logger, cfg *config.Config, sanitizer *capture.Sanitizer) *Provider {
	return &Provider{
		log:       log,
		cfg:       cfg,
		sanitizer: sanitizer,
	}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "settings",
		Name:        "Settings Service",
		Description: "Runtime connector settings",
		Category:    types.CategorySystem,
		Capabilities: []string{
			"log_level",
			"sanitizer_toggles",
			"recording_defaults",
		},
		Tools: []types.Tool{
			{
				ID:          "settings.get",
				Name:        "Get Settings",
				Description: "Current runtime settings",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "settings.set",
				Name:        "Set Setting",
				Description: "Change a runtime setting",
				Parameters: []types.Parameter{
					{Name: "key", Type: "string", Description: "Setting name (log_level, scrub_inputs)", Required: true},
					{Name: "value", Type: "any", Description: "New value", Required: true},
				},
				Returns: "object",
			},
		},
	}
}

// Execute runs a settings operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "settings.get":
		return p.get()
	case "settings.set":
		return p.set(params)
	default:
		return failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (p *Provider) get() (*types.Result, error) {
	return success(map[string]interface{}{
		"log_level": p.log.Level(),
		"recording": map[string]interface{}{
			"max_sessions":        p.cfg.Recording.MaxSessions,
			"max_actions":         p.cfg.Recording.MaxActions,
			"capture_screenshots": p.cfg.Recording.CaptureScreenshots,
			"url_filters":         p.cfg.Recording.URLFilters,
		},
		"sanitizer": map[string]interface{}{
			"scrub_inputs": p.sanitizer.ScrubInputs(),
			"rules":        p.sanitizer.RuleNames(),
		},
	})
}

func (p *Provider) set(params map[string]interface{}) (*types.Result, error) {
	key, ok := params["key"].(string)
	if !ok || key == "" {
		return failure("key parameter required")
	}

	switch key {
	case "log_level":
		level, ok := params["value"].(string)
		if !ok || level == "" {
			return failure("value must be a level name (debug/info/warn/error)")
		}
		if err := p.log.SetLevel(level); err != nil {
			return failure(fmt.Sprintf("invalid level %q", level))
		}
		p.log.Info("Log level changed", zap.String("level", level))
		return success(map[string]interface{}{"log_level": p.log.Level()})

	case "scrub_inputs":
		enabled, ok := params["value"].(bool)
		if !ok {
			return failure("value must be a boolean")
		}
		p.sanitizer.SetScrubInputs(enabled)
		return success(map[string]interface{}{"scrub_inputs": enabled})

	default:
		return failure(fmt.Sprintf("unknown setting: %s", key))
	}
}

func success(data map[string]interface{}) (*types.Result, error) {
	return &types.Result{Success: true, Data: data}, nil
}

func failure(message string) (*types.Result, error) {
	return &types.Result{Success: false, Error: &message}, nil
}
