package capture

import (
	"fmt"
	"time"

	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/id"
)

// ActionType classifies a captured user interaction
type ActionType string

const (
	ActionClick      ActionType = "click"
	ActionInput      ActionType = "input"
	ActionKeypress   ActionType = "keypress"
	ActionScroll     ActionType = "scroll"
	ActionNavigation ActionType = "navigation"
	ActionSubmit     ActionType = "submit"
	ActionSelect     ActionType = "select"
	ActionScreenshot ActionType = "screenshot"
	ActionScript     ActionType = "script"
	ActionAssert     ActionType = "assert"
)

// knownActionTypes is the ingest allowlist
var knownActionTypes = map[ActionType]bool{
	ActionClick:      true,
	ActionInput:      true,
	ActionKeypress:   true,
	ActionScroll:     true,
	ActionNavigation: true,
	ActionSubmit:     true,
	ActionSelect:     true,
	ActionScreenshot: true,
	ActionScript:     true,
	ActionAssert:     true,
}

// Target describes the element an action was performed on
type Target struct {
	Selector   string            `json:"selector,omitempty"`
	XPath      string            `json:"xpath,omitempty"`
	Tag        string            `json:"tag,omitempty"`
	Text       string            `json:"text,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// InputType returns the element's type attribute, empty when absent
func (t *Target) InputType() string {
	if t == nil || t.Attributes == nil {
		return ""
	}
	return t.Attributes["type"]
}

// Action is a single captured interaction within a recording session
type Action struct {
	ID        id.ActionID            `json:"id"`
	Type      ActionType             `json:"type"`
	Timestamp int64                  `json:"timestamp"`
	URL       string                 `json:"url,omitempty"`
	Target    *Target                `json:"target,omitempty"`
	Value     string                 `json:"value,omitempty"`
	Masked    bool                   `json:"masked,omitempty"`
	Snapshot  string                 `json:"snapshot,omitempty"`
	AssetID   id.AssetID             `json:"assetId,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// FromParams builds an Action from a raw ingest payload.
// Unknown action types and missing fields are rejected here so the
// recording manager only ever sees well-formed actions.
func FromParams(params map[string]interface{}) (*Action, error) {
	rawType, _ := params["type"].(string)
	actionType := ActionType(rawType)
	if !knownActionTypes[actionType] {
		return nil, fmt.Errorf("unknown action type: %q", rawType)
	}

	action := &Action{
		ID:        id.NewActionID(),
		Type:      actionType,
		Timestamp: time.Now().UnixMilli(),
	}

	if ts, ok := params["timestamp"].(float64); ok && ts > 0 {
		action.Timestamp = int64(ts)
	}
	if url, ok := params["url"].(string); ok {
		action.URL = url
	}
	if value, ok := params["value"].(string); ok {
		action.Value = value
	}
	if snapshot, ok := params["snapshot"].(string); ok {
		action.Snapshot = snapshot
	}
	if meta, ok := params["meta"].(map[string]interface{}); ok {
		action.Meta = meta
	}

	if rawTarget, ok := params["target"].(map[string]interface{}); ok {
		action.Target = targetFromParams(rawTarget)
	}

	if actionType == ActionNavigation && action.URL == "" {
		return nil, fmt.Errorf("navigation action requires a url")
	}
	if actionType == ActionScript && action.Value == "" {
		return nil, fmt.Errorf("script action requires a value")
	}

	return action, nil
}

func targetFromParams(raw map[string]interface{}) *Target {
	target := &Target{}
	if selector, ok := raw["selector"].(string); ok {
		target.Selector = selector
	}
	if xpath, ok := raw["xpath"].(string); ok {
		target.XPath = xpath
	}
	if tag, ok := raw["tag"].(string); ok {
		target.Tag = tag
	}
	if text, ok := raw["text"].(string); ok {
		target.Text = text
	}
	if rawAttrs, ok := raw["attributes"].(map[string]interface{}); ok {
		attrs := make(map[string]string, len(rawAttrs))
		for k, v := range rawAttrs {
			if s, ok := v.(string); ok {
				attrs[k] = s
			}
		}
		if len(attrs) > 0 {
			target.Attributes = attrs
		}
	}
	return target
}
