// Package lights implements the five upward operations (control a light,
// control a room, read one light, list lights, discover the bridge) on top
// of the bridge client and reports each as a uniform Response.
package lights

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightctl/internal/hue"
	"github.com/dokzlo13/lightctl/internal/ledger"
)

// Defaults applied when a request leaves brightness or color temperature unset.
const (
	DefaultBrightness = 200
	DefaultColorTemp  = 366
)

// AllRoom is the reserved room addressing every light through group 0.
const AllRoom = "all"

// BridgeClient is the subset of *hue.Client the manager uses.
type BridgeClient interface {
	SetLightState(ctx context.Context, id int, desired hue.DesiredState) (*hue.Outcome, error)
	ControlRoom(ctx context.Context, target hue.Target, desired hue.DesiredState) (*hue.Aggregate, error)
	GetLight(ctx context.Context, id int) (*hue.Light, error)
	GetLights(ctx context.Context) (map[int]hue.Light, error)
	BridgeConfig(ctx context.Context) (*hue.BridgeInfo, error)
}

// Recorder persists operation history.
type Recorder interface {
	Append(ctx context.Context, e *ledger.Entry) error
}

// Options configures a Manager.
type Options struct {
	// Rooms maps room names to ordered light IDs. "all" must not be present.
	Rooms map[string][]int
	// AllLightIDs is reported as lights_affected for the "all" room.
	AllLightIDs []int
	// Recorder is optional; nil disables recording.
	Recorder Recorder
}

// Manager resolves rooms, applies request defaults and shapes results.
type Manager struct {
	client   BridgeClient
	rooms    map[string][]int
	allIDs   []int
	recorder Recorder
}

// NewManager creates a manager.
func NewManager(client BridgeClient, opts Options) *Manager {
	rooms := make(map[string][]int, len(opts.Rooms))
	for name, ids := range opts.Rooms {
		rooms[strings.ToLower(name)] = append([]int(nil), ids...)
	}
	return &Manager{
		client:   client,
		rooms:    rooms,
		allIDs:   append([]int(nil), opts.AllLightIDs...),
		recorder: opts.Recorder,
	}
}

// LightRequest asks for a change to one light.
type LightRequest struct {
	LightID    int
	Action     string
	Brightness *int // nil = DefaultBrightness
	ColorTemp  *int // nil = DefaultColorTemp
}

// RoomRequest asks for a change to every light of a room.
type RoomRequest struct {
	Room       string
	Action     string
	Brightness *int
	ColorTemp  *int
}

// Rooms returns room names with their light IDs, including "all".
func (m *Manager) Rooms() map[string][]int {
	result := make(map[string][]int, len(m.rooms)+1)
	for name, ids := range m.rooms {
		result[name] = append([]int(nil), ids...)
	}
	result[AllRoom] = append([]int(nil), m.allIDs...)
	return result
}

// RoomNames returns the sorted room names, "all" last.
func (m *Manager) RoomNames() []string {
	names := make([]string, 0, len(m.rooms)+1)
	for name := range m.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return append(names, AllRoom)
}

// resolveRoom maps a room name to a bridge target and the IDs it affects.
func (m *Manager) resolveRoom(room string) (hue.Target, []int, error) {
	name := strings.ToLower(strings.TrimSpace(room))
	if name == AllRoom {
		return hue.AllLights(), m.allIDs, nil
	}
	ids, ok := m.rooms[name]
	if !ok {
		return hue.Target{}, nil, &hue.Error{
			Kind:    hue.KindValidation,
			Message: fmt.Sprintf("Unknown room '%s'. Available rooms: [%s]", room, strings.Join(m.RoomNames(), ", ")),
		}
	}
	return hue.Lights(ids...), ids, nil
}

func desiredState(action string, brightness, colorTemp *int) (hue.DesiredState, error) {
	a, err := hue.ParseAction(action)
	if err != nil {
		return hue.DesiredState{}, err
	}
	bri, ct := DefaultBrightness, DefaultColorTemp
	if brightness != nil {
		bri = *brightness
	}
	if colorTemp != nil {
		ct = *colorTemp
	}
	d := hue.DesiredState{Action: a, Brightness: &bri, ColorTemp: &ct}
	return d, d.Validate()
}

// ControlLight changes one light.
func (m *Manager) ControlLight(ctx context.Context, req LightRequest) *Response {
	target := fmt.Sprintf("light:%d", req.LightID)

	desired, err := desiredState(req.Action, req.Brightness, req.ColorTemp)
	if err == nil {
		var out *hue.Outcome
		out, err = m.client.SetLightState(ctx, req.LightID, desired)
		if err == nil {
			log.Info().Int("light", req.LightID).Str("action", req.Action).Msg("Light controlled")

			resp := &Response{
				Success:        true,
				Message:        fmt.Sprintf("Light %d %s successfully", req.LightID, desired.Action),
				Data:           map[string]any{"state": out.Sent, "response": rawOrNil(out.Response)},
				LightsAffected: []int{req.LightID},
			}
			m.record(ctx, ledger.EventLightControl, target, resp, requestPayload(req.Action, req.Brightness, req.ColorTemp))
			return resp
		}
	}

	log.Error().Err(err).Int("light", req.LightID).Msg("Failed to control light")
	resp := failure(err)
	m.record(ctx, ledger.EventLightControl, target, resp, requestPayload(req.Action, req.Brightness, req.ColorTemp))
	return resp
}

// ControlRoom changes every light of a room. "all" is one group call; any
// other room fans out one call per light. Both paths report the same shape.
func (m *Manager) ControlRoom(ctx context.Context, req RoomRequest) *Response {
	target := "room:" + strings.ToLower(strings.TrimSpace(req.Room))
	payload := requestPayload(req.Action, req.Brightness, req.ColorTemp)

	resp, err := m.controlRoom(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("room", req.Room).Msg("Failed to control room")
		resp = failure(err)
	}
	m.record(ctx, ledger.EventRoomControl, target, resp, payload)
	return resp
}

func (m *Manager) controlRoom(ctx context.Context, req RoomRequest) (*Response, error) {
	bridgeTarget, ids, err := m.resolveRoom(req.Room)
	if err != nil {
		return nil, err
	}
	desired, err := desiredState(req.Action, req.Brightness, req.ColorTemp)
	if err != nil {
		return nil, err
	}

	agg, err := m.client.ControlRoom(ctx, bridgeTarget, desired)
	if err != nil {
		return nil, err
	}

	details := make([]map[string]any, 0, len(agg.Outcomes))
	for _, out := range agg.Outcomes {
		details = append(details, outcomeDetail(out))
	}
	data := map[string]any{
		"successful_operations": agg.Succeeded(),
		"failed_operations":     agg.Failed(),
		"details":               details,
	}

	var message string
	if agg.Group {
		if agg.Success() {
			message = fmt.Sprintf("All lights %s successfully", desired.Action)
		} else {
			message = "Failed to control all lights: " + errorMessage(agg.Outcomes[0].Err)
			data["error_type"] = agg.Outcomes[0].ErrorType()
		}
	} else {
		message = fmt.Sprintf("Controlled %d/%d lights in %s", agg.Succeeded(), len(ids), strings.ToLower(strings.TrimSpace(req.Room)))
	}

	log.Info().
		Str("room", req.Room).
		Str("action", string(desired.Action)).
		Int("succeeded", agg.Succeeded()).
		Int("total", len(agg.Outcomes)).
		Msg("Room control completed")

	return &Response{
		Success:        agg.Success(),
		Message:        message,
		Data:           data,
		LightsAffected: append([]int(nil), ids...),
	}, nil
}

func outcomeDetail(out hue.Outcome) map[string]any {
	d := map[string]any{"success": out.Success}
	if out.IsGroup {
		d["group_id"] = out.GroupID
	} else {
		d["light_id"] = out.LightID
	}
	if out.Err != nil {
		d["error"] = errorMessage(out.Err)
		d["error_type"] = out.ErrorType()
	}
	if out.Sent != nil {
		d["state"] = out.Sent
	}
	return d
}

// GetLightState reads one light.
func (m *Manager) GetLightState(ctx context.Context, lightID int) *Response {
	target := fmt.Sprintf("light:%d", lightID)

	light, err := m.client.GetLight(ctx, lightID)
	if err != nil {
		log.Error().Err(err).Int("light", lightID).Msg("Failed to get light status")
		resp := failure(err)
		m.record(ctx, ledger.EventStateQuery, target, resp, nil)
		return resp
	}

	resp := &Response{
		Success: true,
		Message: fmt.Sprintf("Retrieved status for light %d", lightID),
		Data:    light,
	}
	m.record(ctx, ledger.EventStateQuery, target, resp, nil)
	return resp
}

// ListLights reads every light.
func (m *Manager) ListLights(ctx context.Context) *Response {
	lights, err := m.client.GetLights(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list lights")
		resp := failure(err)
		m.record(ctx, ledger.EventStateQuery, "lights", resp, nil)
		return resp
	}

	resp := &Response{
		Success: true,
		Message: fmt.Sprintf("Retrieved %d lights", len(lights)),
		Data:    lights,
	}
	m.record(ctx, ledger.EventStateQuery, "lights", resp, nil)
	return resp
}

// DiscoverBridge checks connectivity and reads bridge identity.
func (m *Manager) DiscoverBridge(ctx context.Context) *Response {
	info, err := m.client.BridgeConfig(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to discover bridge")
		resp := failure(err)
		m.record(ctx, ledger.EventBridgeCheck, "bridge", resp, nil)
		return resp
	}

	resp := &Response{
		Success: true,
		Message: "Bridge connection successful",
		Data:    info,
	}
	m.record(ctx, ledger.EventBridgeCheck, "bridge", resp, nil)
	return resp
}

func requestPayload(action string, brightness, colorTemp *int) map[string]any {
	p := map[string]any{"action": action}
	if brightness != nil {
		p["brightness"] = *brightness
	}
	if colorTemp != nil {
		p["color_temp"] = *colorTemp
	}
	return p
}

// record appends to the ledger. Failures are logged, never returned.
func (m *Manager) record(ctx context.Context, eventType ledger.EventType, target string, resp *Response, payload map[string]any) {
	if m.recorder == nil {
		return
	}

	if len(resp.LightsAffected) > 0 {
		if payload == nil {
			payload = make(map[string]any)
		}
		payload["lights_affected"] = resp.LightsAffected
	}

	entry := &ledger.Entry{
		EventType: eventType,
		Target:    target,
		Success:   resp.Success,
		ErrorType: resp.ErrorType(),
		Message:   resp.Message,
		Payload:   payload,
	}
	if err := m.recorder.Append(context.WithoutCancel(ctx), entry); err != nil {
		log.Warn().Err(err).Str("target", target).Msg("Failed to record operation")
	}
}
