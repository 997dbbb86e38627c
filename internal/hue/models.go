package hue

import (
	"encoding/json"
	"strings"

	"github.com/amimof/huego"
)

// Value ranges accepted by the bridge.
const (
	MinBrightness = 1
	MaxBrightness = 254
	MinColorTemp  = 154
	MaxColorTemp  = 500
)

// AllLightsGroup is the bridge's built-in group containing every light.
const AllLightsGroup = 0

// Light is a light as reported by the bridge (v1 API).
type Light struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	ModelID    string `json:"model_id,omitempty"`
	On         bool   `json:"on"`
	Brightness int    `json:"bri"`
	ColorTemp  int    `json:"ct,omitempty"`
	Reachable  bool   `json:"reachable"`

	// SupportsColorTemp is derived from the light type and capabilities.
	SupportsColorTemp bool `json:"supports_color_temp"`
}

// wireLight is the v1 light object. huego covers the common fields; the
// capabilities block is decoded separately for color temperature detection.
type wireLight struct {
	huego.Light
	Capabilities struct {
		Control map[string]json.RawMessage `json:"control"`
	} `json:"capabilities"`
}

var colorTempTypes = []string{
	"color temperature light",
	"extended color light",
	"color light",
	"tunable white light",
}

func (w *wireLight) toModel(id int) Light {
	l := Light{
		ID:      id,
		Name:    w.Name,
		Type:    w.Type,
		ModelID: w.ModelID,
	}
	if w.State != nil {
		l.On = w.State.On
		l.Brightness = int(w.State.Bri)
		l.ColorTemp = int(w.State.Ct)
		l.Reachable = w.State.Reachable
	}

	lightType := strings.ToLower(w.Type)
	for _, t := range colorTempTypes {
		if strings.Contains(lightType, t) {
			l.SupportsColorTemp = true
			break
		}
	}
	if _, ok := w.Capabilities.Control["ct"]; ok {
		l.SupportsColorTemp = true
	}
	return l
}

// BridgeInfo is the identifying subset of the bridge configuration.
type BridgeInfo struct {
	Name       string `json:"name"`
	SwVersion  string `json:"swversion"`
	APIVersion string `json:"apiversion"`
	Mac        string `json:"mac"`
	BridgeID   string `json:"bridge_id"`
	ModelID    string `json:"model_id"`
}

func bridgeInfoFromConfig(c *huego.Config) *BridgeInfo {
	orUnknown := func(s string) string {
		if s == "" {
			return "Unknown"
		}
		return s
	}
	return &BridgeInfo{
		Name:       orUnknown(c.Name),
		SwVersion:  orUnknown(c.SwVersion),
		APIVersion: orUnknown(c.APIVersion),
		Mac:        orUnknown(c.Mac),
		BridgeID:   orUnknown(c.BridgeID),
		ModelID:    orUnknown(c.ModelID),
	}
}

// Action is the requested power change.
type Action string

const (
	ActionOn     Action = "on"
	ActionOff    Action = "off"
	ActionToggle Action = "toggle"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionOn, ActionOff, ActionToggle:
		return a, nil
	}
	return "", validationErrorf("invalid action '%s'. Must be 'on', 'off', or 'toggle'", s)
}

// DesiredState is a requested mutation of one light or group.
type DesiredState struct {
	Action     Action
	Brightness *int
	ColorTemp  *int
}

// Validate checks the action and value ranges.
func (d DesiredState) Validate() error {
	if _, err := ParseAction(string(d.Action)); err != nil {
		return err
	}
	if d.Brightness != nil && (*d.Brightness < MinBrightness || *d.Brightness > MaxBrightness) {
		return validationErrorf("brightness %d out of range %d-%d", *d.Brightness, MinBrightness, MaxBrightness)
	}
	if d.ColorTemp != nil && (*d.ColorTemp < MinColorTemp || *d.ColorTemp > MaxColorTemp) {
		return validationErrorf("color temperature %d out of range %d-%d", *d.ColorTemp, MinColorTemp, MaxColorTemp)
	}
	return nil
}

// needsRead reports whether the current state must be read before writing.
func (d DesiredState) needsRead() bool {
	return d.Action == ActionToggle || (d.Action == ActionOn && d.ColorTemp != nil)
}

// StateUpdate is the body of PUT lights/{id}/state and groups/{id}/action.
type StateUpdate struct {
	On  *bool   `json:"on,omitempty"`
	Bri *uint8  `json:"bri,omitempty"`
	Ct  *uint16 `json:"ct,omitempty"`
}

// buildUpdate resolves a desired state into a request body. currentOn is
// only consulted for toggle; includeCT is false for lights without color
// temperature support.
func buildUpdate(d DesiredState, currentOn, includeCT bool) StateUpdate {
	action := d.Action
	if action == ActionToggle {
		if currentOn {
			action = ActionOff
		} else {
			action = ActionOn
		}
	}

	on := action == ActionOn
	u := StateUpdate{On: &on}
	if !on {
		return u
	}
	if d.Brightness != nil {
		bri := uint8(*d.Brightness)
		u.Bri = &bri
	}
	if d.ColorTemp != nil && includeCT {
		ct := uint16(*d.ColorTemp)
		u.Ct = &ct
	}
	return u
}

// Target is the resolved destination of a room operation: either an explicit
// ordered list of light IDs or the bridge's all-lights group.
type Target struct {
	All      bool
	LightIDs []int
}

// AllLights targets group 0.
func AllLights() Target {
	return Target{All: true}
}

// Lights targets the given IDs in order.
func Lights(ids ...int) Target {
	return Target{LightIDs: ids}
}

// Outcome is the result for one light, or for one group on the group path.
type Outcome struct {
	LightID  int
	GroupID  int
	IsGroup  bool
	Success  bool
	Err      error
	Response json.RawMessage
	// Sent is the body that was written, nil if nothing was written.
	Sent *StateUpdate
}

// ErrorType returns the classification name of the failure, or "".
func (o Outcome) ErrorType() string {
	if o.Err == nil {
		return ""
	}
	return ErrorType(o.Err)
}

// Aggregate is the combined result of a room operation.
type Aggregate struct {
	Outcomes []Outcome
	// Group is set when the operation was issued as one group call.
	Group bool
}

// Success is true iff every outcome succeeded.
func (a *Aggregate) Success() bool {
	for _, o := range a.Outcomes {
		if !o.Success {
			return false
		}
	}
	return true
}

// Succeeded counts successful outcomes.
func (a *Aggregate) Succeeded() int {
	n := 0
	for _, o := range a.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// Failed counts failed outcomes.
func (a *Aggregate) Failed() int {
	return len(a.Outcomes) - a.Succeeded()
}
