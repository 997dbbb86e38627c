package lights

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/dokzlo13/lightctl/internal/hue"
	"github.com/dokzlo13/lightctl/internal/ledger"
)

// stubClient records calls and returns canned results.
type stubClient struct {
	mu sync.Mutex

	lightCalls []int
	lastState  hue.DesiredState
	roomTarget *hue.Target
	lightErr   map[int]error

	lights    map[int]hue.Light
	bridge    *hue.BridgeInfo
	readErr   error
	bridgeErr error
}

func (s *stubClient) SetLightState(ctx context.Context, id int, desired hue.DesiredState) (*hue.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lightCalls = append(s.lightCalls, id)
	s.lastState = desired
	if err := desired.Validate(); err != nil {
		return nil, err
	}
	if err := s.lightErr[id]; err != nil {
		return &hue.Outcome{LightID: id, Err: err}, err
	}
	on := desired.Action != hue.ActionOff
	return &hue.Outcome{LightID: id, Success: true, Sent: &hue.StateUpdate{On: &on}}, nil
}

func (s *stubClient) ControlRoom(ctx context.Context, target hue.Target, desired hue.DesiredState) (*hue.Aggregate, error) {
	s.mu.Lock()
	s.roomTarget = &target
	s.lastState = desired
	s.mu.Unlock()

	if target.All {
		return &hue.Aggregate{Group: true, Outcomes: []hue.Outcome{{IsGroup: true, Success: true}}}, nil
	}
	agg := &hue.Aggregate{}
	for _, id := range target.LightIDs {
		out := hue.Outcome{LightID: id, Success: true}
		if err := s.lightErr[id]; err != nil {
			out.Success = false
			out.Err = err
		}
		agg.Outcomes = append(agg.Outcomes, out)
	}
	return agg, nil
}

func (s *stubClient) GetLight(ctx context.Context, id int) (*hue.Light, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	l, ok := s.lights[id]
	if !ok {
		return nil, &hue.Error{Kind: hue.KindValidation, Message: "resource not found"}
	}
	return &l, nil
}

func (s *stubClient) GetLights(ctx context.Context) (map[int]hue.Light, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.lights, nil
}

func (s *stubClient) BridgeConfig(ctx context.Context) (*hue.BridgeInfo, error) {
	if s.bridgeErr != nil {
		return nil, s.bridgeErr
	}
	return s.bridge, nil
}

type memRecorder struct {
	mu      sync.Mutex
	entries []*ledger.Entry
	err     error
}

func (r *memRecorder) Append(ctx context.Context, e *ledger.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return r.err
}

func testRooms() map[string][]int {
	return map[string][]int{
		"kitchen": {10, 12, 13, 17},
		"office":  {7},
	}
}

func newTestManager(client BridgeClient, rec Recorder) *Manager {
	return NewManager(client, Options{
		Rooms:       testRooms(),
		AllLightIDs: []int{1, 3, 7, 10, 12, 13, 17},
		Recorder:    rec,
	})
}

func intPtr(v int) *int {
	return &v
}

func TestControlLight_AppliesDefaults(t *testing.T) {
	client := &stubClient{}
	rec := &memRecorder{}
	m := newTestManager(client, rec)

	resp := m.ControlLight(context.Background(), LightRequest{LightID: 3, Action: "on"})
	if !resp.Success {
		t.Fatalf("ControlLight() = %+v", resp)
	}
	if resp.Message != "Light 3 on successfully" {
		t.Errorf("message = %q", resp.Message)
	}
	if !reflect.DeepEqual(resp.LightsAffected, []int{3}) {
		t.Errorf("lights_affected = %v", resp.LightsAffected)
	}
	if *client.lastState.Brightness != DefaultBrightness || *client.lastState.ColorTemp != DefaultColorTemp {
		t.Errorf("desired = bri %d ct %d", *client.lastState.Brightness, *client.lastState.ColorTemp)
	}

	if len(rec.entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(rec.entries))
	}
	e := rec.entries[0]
	if e.EventType != ledger.EventLightControl || e.Target != "light:3" || !e.Success {
		t.Errorf("entry = %+v", e)
	}
}

func TestControlLight_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		req  LightRequest
	}{
		{"bad_action", LightRequest{LightID: 3, Action: "blink"}},
		{"bad_brightness", LightRequest{LightID: 3, Action: "on", Brightness: intPtr(0)}},
		{"bad_color_temp", LightRequest{LightID: 3, Action: "on", ColorTemp: intPtr(600)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubClient{}
			m := newTestManager(client, nil)

			resp := m.ControlLight(context.Background(), tt.req)
			if resp.Success {
				t.Fatal("Success = true")
			}
			if resp.ErrorType() != "ValidationError" {
				t.Errorf("error_type = %q", resp.ErrorType())
			}
			if len(client.lightCalls) != 0 {
				t.Errorf("client called for invalid request: %v", client.lightCalls)
			}
		})
	}
}

func TestControlLight_ClientError(t *testing.T) {
	client := &stubClient{lightErr: map[int]error{5: &hue.Error{Kind: hue.KindTimeout, Message: "operation deadline exceeded"}}}
	rec := &memRecorder{}
	m := newTestManager(client, rec)

	resp := m.ControlLight(context.Background(), LightRequest{LightID: 5, Action: "off"})
	if resp.Success || resp.ErrorType() != "TimeoutError" || resp.Message != "operation deadline exceeded" {
		t.Errorf("response = %+v", resp)
	}
	if rec.entries[0].ErrorType != "TimeoutError" || rec.entries[0].Success {
		t.Errorf("entry = %+v", rec.entries[0])
	}
}

func TestControlRoom_PartialFailure(t *testing.T) {
	client := &stubClient{lightErr: map[int]error{12: &hue.Error{Kind: hue.KindConnection, Message: "request timed out"}}}
	m := newTestManager(client, nil)

	resp := m.ControlRoom(context.Background(), RoomRequest{Room: "kitchen", Action: "on"})
	if resp.Success {
		t.Error("Success = true, want false")
	}
	if !reflect.DeepEqual(resp.LightsAffected, []int{10, 12, 13, 17}) {
		t.Errorf("lights_affected = %v", resp.LightsAffected)
	}
	if resp.Message != "Controlled 3/4 lights in kitchen" {
		t.Errorf("message = %q", resp.Message)
	}

	data := resp.Data.(map[string]any)
	if data["successful_operations"] != 3 || data["failed_operations"] != 1 {
		t.Errorf("counts = %v/%v", data["successful_operations"], data["failed_operations"])
	}
	details := data["details"].([]map[string]any)
	for i, id := range []int{10, 12, 13, 17} {
		if details[i]["light_id"] != id {
			t.Errorf("details[%d] = %v", i, details[i])
		}
		wantOK := id != 12
		if details[i]["success"] != wantOK {
			t.Errorf("light %d success = %v", id, details[i]["success"])
		}
	}
	if details[1]["error_type"] != "ConnectionError" {
		t.Errorf("light 12 error_type = %v", details[1]["error_type"])
	}
}

func TestControlRoom_AllUsesGroup(t *testing.T) {
	client := &stubClient{}
	m := newTestManager(client, nil)

	resp := m.ControlRoom(context.Background(), RoomRequest{Room: "ALL", Action: "off"})
	if !resp.Success || resp.Message != "All lights off successfully" {
		t.Errorf("response = %+v", resp)
	}
	if client.roomTarget == nil || !client.roomTarget.All {
		t.Errorf("target = %+v, want all-lights group", client.roomTarget)
	}
	if !reflect.DeepEqual(resp.LightsAffected, []int{1, 3, 7, 10, 12, 13, 17}) {
		t.Errorf("lights_affected = %v", resp.LightsAffected)
	}
	data := resp.Data.(map[string]any)
	if data["successful_operations"] != 1 || data["failed_operations"] != 0 {
		t.Errorf("data = %v", data)
	}
}

func TestControlRoom_UnknownRoom(t *testing.T) {
	client := &stubClient{}
	m := newTestManager(client, nil)

	resp := m.ControlRoom(context.Background(), RoomRequest{Room: "garage", Action: "on"})
	if resp.Success || resp.ErrorType() != "ValidationError" {
		t.Fatalf("response = %+v", resp)
	}
	if !strings.Contains(resp.Message, "Unknown room 'garage'") || !strings.Contains(resp.Message, "kitchen") {
		t.Errorf("message = %q", resp.Message)
	}
	if client.roomTarget != nil {
		t.Error("client called for unknown room")
	}
}

func TestGetLightState(t *testing.T) {
	client := &stubClient{lights: map[int]hue.Light{4: {ID: 4, Name: "Bedside", On: true}}}
	m := newTestManager(client, nil)

	resp := m.GetLightState(context.Background(), 4)
	if !resp.Success || resp.Message != "Retrieved status for light 4" {
		t.Fatalf("response = %+v", resp)
	}
	if l := resp.Data.(*hue.Light); l.Name != "Bedside" {
		t.Errorf("data = %+v", l)
	}

	resp = m.GetLightState(context.Background(), 9)
	if resp.Success || resp.ErrorType() != "ValidationError" {
		t.Errorf("missing light response = %+v", resp)
	}
}

func TestListLights(t *testing.T) {
	client := &stubClient{lights: map[int]hue.Light{1: {ID: 1}, 2: {ID: 2}}}
	m := newTestManager(client, nil)

	resp := m.ListLights(context.Background())
	if !resp.Success || resp.Message != "Retrieved 2 lights" {
		t.Errorf("response = %+v", resp)
	}

	client.readErr = errors.New("socket closed")
	resp = m.ListLights(context.Background())
	if resp.Success || resp.ErrorType() != "UnexpectedError" {
		t.Errorf("response = %+v", resp)
	}
}

func TestDiscoverBridge(t *testing.T) {
	client := &stubClient{bridge: &hue.BridgeInfo{Name: "Philips hue", BridgeID: "001788FFFE"}}
	rec := &memRecorder{}
	m := newTestManager(client, rec)

	resp := m.DiscoverBridge(context.Background())
	if !resp.Success || resp.Message != "Bridge connection successful" {
		t.Errorf("response = %+v", resp)
	}

	client.bridgeErr = &hue.Error{Kind: hue.KindConnection, Message: "request failed: connection refused"}
	resp = m.DiscoverBridge(context.Background())
	if resp.Success || resp.ErrorType() != "ConnectionError" {
		t.Errorf("response = %+v", resp)
	}

	if len(rec.entries) != 2 || rec.entries[1].EventType != ledger.EventBridgeCheck || rec.entries[1].Success {
		t.Errorf("entries = %+v", rec.entries)
	}
}

func TestRecorderFailureDoesNotFailOperation(t *testing.T) {
	m := newTestManager(&stubClient{}, &memRecorder{err: errors.New("disk full")})

	if resp := m.ControlLight(context.Background(), LightRequest{LightID: 1, Action: "off"}); !resp.Success {
		t.Errorf("response = %+v", resp)
	}
}

func TestRoomNames(t *testing.T) {
	m := newTestManager(&stubClient{}, nil)
	want := []string{"kitchen", "office", "all"}
	if got := m.RoomNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("RoomNames() = %v, want %v", got, want)
	}
	if rooms := m.Rooms(); len(rooms) != 3 || len(rooms["all"]) != 7 {
		t.Errorf("Rooms() = %v", rooms)
	}
}

func TestResponse_JSON(t *testing.T) {
	resp := failure(&hue.Error{Kind: hue.KindRateLimit, Message: "bridge rate limit exceeded"})

	var decoded map[string]any
	if err := json.Unmarshal([]byte(resp.JSON()), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["success"] != false || decoded["message"] != "bridge rate limit exceeded" {
		t.Errorf("decoded = %v", decoded)
	}
	if _, ok := decoded["lights_affected"]; ok {
		t.Error("lights_affected must be omitted when empty")
	}
	if data := decoded["data"].(map[string]any); data["error_type"] != "RateLimitError" {
		t.Errorf("data = %v", data)
	}
}

// TestManager_AgainstBridge drives the real client against an HTTP bridge
// double.
func TestManager_AgainstBridge(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		path := strings.TrimPrefix(r.URL.Path, "/api/testtoken/")

		mu.Lock()
		calls = append(calls, r.Method+" "+path+" "+string(body))
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && path == "lights/12":
			io.WriteString(w, `[{"error":{"type":3,"address":"/lights/12","description":"resource, /lights/12, not available"}}]`)
		case r.Method == http.MethodGet:
			io.WriteString(w, `{"name":"Lamp","type":"Extended color light","state":{"on":false,"bri":1,"reachable":true}}`)
		default:
			io.WriteString(w, `[{"success":{"/`+path+`/on":true}}]`)
		}
	}))
	defer srv.Close()

	client := hue.NewClient(hue.Config{Bridge: srv.URL, Token: "testtoken", MaxLightID: 17})
	defer client.Close()
	m := newTestManager(client, nil)
	ctx := context.Background()

	resp := m.ControlRoom(ctx, RoomRequest{Room: "all", Action: "off"})
	if !resp.Success {
		t.Fatalf("all off = %+v", resp)
	}
	mu.Lock()
	if len(calls) != 1 || calls[0] != `PUT groups/0/action {"on":false}` {
		t.Errorf("calls = %v, want one group call", calls)
	}
	calls = nil
	mu.Unlock()

	resp = m.ControlRoom(ctx, RoomRequest{Room: "kitchen", Action: "on"})
	if resp.Success {
		t.Error("kitchen with missing light 12 reported success")
	}
	details := resp.Data.(map[string]any)["details"].([]map[string]any)
	if details[1]["light_id"] != 12 || details[1]["error_type"] != "ValidationError" {
		t.Errorf("light 12 detail = %v", details[1])
	}
	if details[0]["success"] != true {
		t.Errorf("light 10 detail = %v", details[0])
	}
}
