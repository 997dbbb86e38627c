package mcp

import (
	"context"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightctl/internal/hue"
	"github.com/dokzlo13/lightctl/internal/lights"
)

func (s *Server) handleControlLight(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lightID, err := requiredInt(request, "light_id")
	if err != nil {
		return invalidParams(err), nil
	}
	action, err := requiredString(request, "action")
	if err != nil {
		return invalidParams(err), nil
	}
	brightness, err := optionalInt(request, "brightness")
	if err != nil {
		return invalidParams(err), nil
	}
	colorTemp, err := optionalInt(request, "color_temp")
	if err != nil {
		return invalidParams(err), nil
	}

	resp := s.controller.ControlLight(ctx, lights.LightRequest{
		LightID:    lightID,
		Action:     action,
		Brightness: brightness,
		ColorTemp:  colorTemp,
	})
	log.Info().Int("light", lightID).Str("action", action).Bool("success", resp.Success).Msg("Light control tool executed")

	return result(resp), nil
}

func (s *Server) handleControlRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	room, err := requiredString(request, "room")
	if err != nil {
		return invalidParams(err), nil
	}
	action, err := requiredString(request, "action")
	if err != nil {
		return invalidParams(err), nil
	}
	brightness, err := optionalInt(request, "brightness")
	if err != nil {
		return invalidParams(err), nil
	}
	colorTemp, err := optionalInt(request, "color_temp")
	if err != nil {
		return invalidParams(err), nil
	}

	resp := s.controller.ControlRoom(ctx, lights.RoomRequest{
		Room:       room,
		Action:     action,
		Brightness: brightness,
		ColorTemp:  colorTemp,
	})
	log.Info().Str("room", room).Str("action", action).Bool("success", resp.Success).Msg("Room control tool executed")

	return result(resp), nil
}

func (s *Server) handleGetLightState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lightID, err := requiredInt(request, "light_id")
	if err != nil {
		return invalidParams(err), nil
	}
	return result(s.controller.GetLightState(ctx, lightID)), nil
}

func (s *Server) handleListLights(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(s.controller.ListLights(ctx)), nil
}

func (s *Server) handleDiscoverBridge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(s.controller.DiscoverBridge(ctx)), nil
}

// result returns the envelope as text; failed operations are flagged as
// tool errors so clients can tell them apart without parsing.
func result(resp *lights.Response) *mcp.CallToolResult {
	if !resp.Success {
		return mcp.NewToolResultError(resp.JSON())
	}
	return mcp.NewToolResultText(resp.JSON())
}

func invalidParams(err error) *mcp.CallToolResult {
	resp := lights.Failure(&hue.Error{Kind: hue.KindValidation, Message: "Invalid parameters: " + err.Error()})
	return mcp.NewToolResultError(resp.JSON())
}

func requiredString(request mcp.CallToolRequest, key string) (string, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("required parameter %q is missing", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

func requiredInt(request mcp.CallToolRequest, key string) (int, error) {
	v, err := optionalInt(request, key)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, fmt.Errorf("required parameter %q is missing", key)
	}
	return *v, nil
}

// optionalInt returns nil when key is absent. JSON numbers arrive as
// float64 and must be integral.
func optionalInt(request mcp.CallToolRequest, key string) (*int, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}

	var n int
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) {
			return nil, fmt.Errorf("parameter %q must be an integer", key)
		}
		n = int(x)
	case int:
		n = x
	case int64:
		n = int(x)
	default:
		return nil, fmt.Errorf("parameter %q must be a number", key)
	}
	return &n, nil
}
