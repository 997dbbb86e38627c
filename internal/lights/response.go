package lights

import (
	"encoding/json"
	"errors"

	"github.com/dokzlo13/lightctl/internal/hue"
)

// Response is the uniform result envelope of every operation.
type Response struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	Data           any    `json:"data,omitempty"`
	LightsAffected []int  `json:"lights_affected,omitempty"`
}

// ErrorType returns data.error_type of a failed response, or "".
func (r *Response) ErrorType() string {
	if data, ok := r.Data.(map[string]any); ok {
		if s, ok := data["error_type"].(string); ok {
			return s
		}
	}
	return ""
}

// JSON encodes the response. Encoding a Response cannot fail for the data
// types the manager produces; a failure still yields a valid envelope.
func (r *Response) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		fallback, _ := json.Marshal(Response{
			Success: false,
			Message: "failed to encode response: " + err.Error(),
			Data:    map[string]any{"error_type": "UnexpectedError"},
		})
		return string(fallback)
	}
	return string(data)
}

// Failure builds the envelope for err.
func Failure(err error) *Response {
	return failure(err)
}

func failure(err error) *Response {
	return &Response{
		Success: false,
		Message: errorMessage(err),
		Data:    map[string]any{"error_type": hue.ErrorType(err)},
	}
}

// errorMessage returns the human-readable part of err without the kind prefix.
func errorMessage(err error) string {
	var he *hue.Error
	if errors.As(err, &he) && he.Message != "" {
		return he.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func rawOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
