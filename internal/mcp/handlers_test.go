package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dokzlo13/lightctl/internal/lights"
)

type stubController struct {
	lightReq *lights.LightRequest
	roomReq  *lights.RoomRequest
	stateID  int
	resp     *lights.Response
}

func (c *stubController) ControlLight(ctx context.Context, req lights.LightRequest) *lights.Response {
	c.lightReq = &req
	return c.resp
}

func (c *stubController) ControlRoom(ctx context.Context, req lights.RoomRequest) *lights.Response {
	c.roomReq = &req
	return c.resp
}

func (c *stubController) GetLightState(ctx context.Context, lightID int) *lights.Response {
	c.stateID = lightID
	return c.resp
}

func (c *stubController) ListLights(ctx context.Context) *lights.Response {
	return c.resp
}

func (c *stubController) DiscoverBridge(ctx context.Context) *lights.Response {
	return c.resp
}

func (c *stubController) RoomNames() []string {
	return []string{"kitchen", "office", "all"}
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func decodeResult(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content = %d items, want 1", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want mcp.TextContent", res.Content[0])
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text.Text), &out); err != nil {
		t.Fatalf("result is not JSON: %v (%s)", err, text.Text)
	}
	return out
}

func okResponse(msg string) *lights.Response {
	return &lights.Response{Success: true, Message: msg}
}

func TestHandleControlLight(t *testing.T) {
	ctrl := &stubController{resp: okResponse("Light 3 on successfully")}
	s := NewServer(ctrl, "test", 17)

	res, err := s.handleControlLight(context.Background(), callRequest("hue_control_light", map[string]any{
		"light_id":   float64(3),
		"action":     "on",
		"brightness": float64(120),
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Error("IsError = true for a successful operation")
	}
	out := decodeResult(t, res)
	if out["success"] != true || out["message"] != "Light 3 on successfully" {
		t.Errorf("result = %v", out)
	}

	req := ctrl.lightReq
	if req == nil || req.LightID != 3 || req.Action != "on" || *req.Brightness != 120 || req.ColorTemp != nil {
		t.Errorf("controller request = %+v", req)
	}
}

func TestHandleControlLight_InvalidParams(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing_light_id", map[string]any{"action": "on"}},
		{"fractional_light_id", map[string]any{"light_id": 2.5, "action": "on"}},
		{"string_light_id", map[string]any{"light_id": "three", "action": "on"}},
		{"missing_action", map[string]any{"light_id": float64(3)}},
		{"non_numeric_brightness", map[string]any{"light_id": float64(3), "action": "on", "brightness": "high"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &stubController{resp: okResponse("unused")}
			s := NewServer(ctrl, "test", 17)

			res, err := s.handleControlLight(context.Background(), callRequest("hue_control_light", tt.args))
			if err != nil {
				t.Fatal(err)
			}
			if !res.IsError {
				t.Error("IsError = false for invalid parameters")
			}
			out := decodeResult(t, res)
			if out["success"] != false {
				t.Errorf("result = %v", out)
			}
			if data := out["data"].(map[string]any); data["error_type"] != "ValidationError" {
				t.Errorf("error_type = %v", data["error_type"])
			}
			if ctrl.lightReq != nil {
				t.Error("controller called with invalid parameters")
			}
		})
	}
}

func TestHandleControlRoom(t *testing.T) {
	ctrl := &stubController{resp: &lights.Response{
		Success:        false,
		Message:        "Controlled 3/4 lights in kitchen",
		LightsAffected: []int{10, 12, 13, 17},
	}}
	s := NewServer(ctrl, "test", 17)

	res, err := s.handleControlRoom(context.Background(), callRequest("hue_control_room", map[string]any{
		"room":   "kitchen",
		"action": "toggle",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("IsError = false for a partially failed room")
	}
	out := decodeResult(t, res)
	if affected := out["lights_affected"].([]any); len(affected) != 4 {
		t.Errorf("lights_affected = %v", affected)
	}
	if ctrl.roomReq.Room != "kitchen" || ctrl.roomReq.Action != "toggle" || ctrl.roomReq.Brightness != nil {
		t.Errorf("controller request = %+v", ctrl.roomReq)
	}
}

func TestHandleReadTools(t *testing.T) {
	ctrl := &stubController{resp: okResponse("ok")}
	s := NewServer(ctrl, "test", 17)
	ctx := context.Background()

	res, err := s.handleGetLightState(ctx, callRequest("hue_get_light_state", map[string]any{"light_id": float64(7)}))
	if err != nil || res.IsError {
		t.Fatalf("get light state: %v %+v", err, res)
	}
	if ctrl.stateID != 7 {
		t.Errorf("state requested for light %d, want 7", ctrl.stateID)
	}

	for name, handler := range map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"hue_list_lights":     s.handleListLights,
		"hue_discover_bridge": s.handleDiscoverBridge,
	} {
		res, err := handler(ctx, callRequest(name, nil))
		if err != nil || res.IsError {
			t.Errorf("%s: %v %+v", name, err, res)
		}
	}
}
