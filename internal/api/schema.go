package api

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Request body schemas.
const (
	lightStateSchema = `{
	"type": "object",
	"required": ["action"],
	"properties": {
		"action": {"type": "string", "enum": ["on", "off", "toggle"]},
		"brightness": {"type": "integer", "minimum": 1, "maximum": 254},
		"color_temp": {"type": "integer", "minimum": 154, "maximum": 500}
	},
	"additionalProperties": false
}`
	roomActionSchema = lightStateSchema
)

// bodySchemas holds the compiled request schemas, built once per router.
type bodySchemas struct {
	lightState *jsonschema.Schema
	roomAction *jsonschema.Schema
}

func compileBodySchemas() (*bodySchemas, error) {
	light, err := compileSchema("light_state.json", lightStateSchema)
	if err != nil {
		return nil, err
	}
	room, err := compileSchema("room_action.json", roomActionSchema)
	if err != nil {
		return nil, err
	}
	return &bodySchemas{lightState: light, roomAction: room}, nil
}

func compileSchema(name, doc string) (*jsonschema.Schema, error) {
	var schemaMap any
	if err := json.Unmarshal([]byte(doc), &schemaMap); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, schemaMap); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	compiled, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return compiled, nil
}
