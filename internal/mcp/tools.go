package mcp

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dokzlo13/lightctl/internal/hue"
	"github.com/dokzlo13/lightctl/internal/lights"
)

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	lightIDDesc := "Light ID"
	if s.maxLightID > 0 {
		lightIDDesc = fmt.Sprintf("Light ID (1-%d)", s.maxLightID)
	}

	s.mcpServer.AddTool(
		mcp.NewTool("hue_control_light",
			mcp.WithDescription("Control an individual Hue light by ID. Returns a JSON result envelope."),
			mcp.WithNumber("light_id",
				mcp.Required(),
				mcp.Description(lightIDDesc),
			),
			mcp.WithString("action",
				mcp.Required(),
				mcp.Description(`"on", "off", or "toggle"`),
				mcp.Enum("on", "off", "toggle"),
			),
			brightnessParam(),
			colorTempParam(),
		),
		s.handleControlLight,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("hue_control_room",
			mcp.WithDescription("Control all lights in a room concurrently. The room \"all\" addresses every light in one group command."),
			mcp.WithString("room",
				mcp.Required(),
				mcp.Description("Room name"),
				mcp.Enum(s.controller.RoomNames()...),
			),
			mcp.WithString("action",
				mcp.Required(),
				mcp.Description(`"on", "off", or "toggle"`),
				mcp.Enum("on", "off", "toggle"),
			),
			brightnessParam(),
			colorTempParam(),
		),
		s.handleControlRoom,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("hue_get_light_state",
			mcp.WithDescription("Get the current state of a specific Hue light"),
			mcp.WithNumber("light_id",
				mcp.Required(),
				mcp.Description(lightIDDesc),
			),
		),
		s.handleGetLightState,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("hue_list_lights",
			mcp.WithDescription("List all Hue lights and their current states"),
		),
		s.handleListLights,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("hue_discover_bridge",
			mcp.WithDescription("Test connectivity to the Hue bridge and return bridge information"),
		),
		s.handleDiscoverBridge,
	)
}

func brightnessParam() mcp.ToolOption {
	return mcp.WithNumber("brightness",
		mcp.Description(fmt.Sprintf("Brightness level (%d-%d), default %d", hue.MinBrightness, hue.MaxBrightness, lights.DefaultBrightness)),
		mcp.Min(hue.MinBrightness),
		mcp.Max(hue.MaxBrightness),
		mcp.DefaultNumber(lights.DefaultBrightness),
	)
}

func colorTempParam() mcp.ToolOption {
	return mcp.WithNumber("color_temp",
		mcp.Description(fmt.Sprintf("Color temperature in mireds (%d-%d), default %d. Ignored by lights without color temperature support.", hue.MinColorTemp, hue.MaxColorTemp, lights.DefaultColorTemp)),
		mcp.Min(hue.MinColorTemp),
		mcp.Max(hue.MaxColorTemp),
		mcp.DefaultNumber(lights.DefaultColorTemp),
	)
}
