package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/dokzlo13/lightctl/internal/hue"
	"github.com/dokzlo13/lightctl/internal/ledger"
	"github.com/dokzlo13/lightctl/internal/lights"
)

const (
	healthCheckTimeout = 5 * time.Second
	defaultLedgerLimit = 50
	maxLedgerLimit     = 500
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Bridge    string    `json:"bridge"`
	ErrorType string    `json:"error_type,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// stateBody is the body of PUT /lights/:id/state and PUT /rooms/:room.
type stateBody struct {
	Action     string `json:"action"`
	Brightness *int   `json:"brightness"`
	ColorTemp  *int   `json:"color_temp"`
}

// statusFor maps an envelope to an HTTP status.
func statusFor(resp *lights.Response) int {
	if resp.Success {
		return http.StatusOK
	}
	switch resp.ErrorType() {
	case hue.KindValidation.String():
		return http.StatusBadRequest
	case hue.KindRateLimit.String():
		return http.StatusTooManyRequests
	case hue.KindTimeout.String():
		return http.StatusGatewayTimeout
	case hue.KindConnection.String(), hue.KindBridge.String():
		return http.StatusBadGateway
	case "":
		// Partial room failure: per-light results are in data.details.
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}

func respond(c *gin.Context, resp *lights.Response) {
	c.JSON(statusFor(resp), resp)
}

func badRequest(c *gin.Context, msg string) {
	resp := lights.Failure(&hue.Error{Kind: hue.KindValidation, Message: msg})
	c.JSON(http.StatusBadRequest, resp)
}

// health handles GET /health
func (r *Router) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	ok, err := r.deps.Bridge.TestConnection(ctx)
	if ok {
		c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Bridge: "connected", Timestamp: time.Now()})
		return
	}
	c.JSON(http.StatusServiceUnavailable, HealthResponse{
		Status:    "degraded",
		Bridge:    "disconnected",
		ErrorType: hue.ErrorType(err),
		Timestamp: time.Now(),
	})
}

// listLights handles GET /api/v1/lights
func (r *Router) listLights(c *gin.Context) {
	respond(c, r.deps.Controller.ListLights(c.Request.Context()))
}

// getLight handles GET /api/v1/lights/:id
func (r *Router) getLight(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		badRequest(c, "light ID must be an integer")
		return
	}
	respond(c, r.deps.Controller.GetLightState(c.Request.Context(), id))
}

// setLightState handles PUT /api/v1/lights/:id/state
func (r *Router) setLightState(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		badRequest(c, "light ID must be an integer")
		return
	}

	body, ok := r.bindState(c, r.schemas.lightState)
	if !ok {
		return
	}

	respond(c, r.deps.Controller.ControlLight(c.Request.Context(), lights.LightRequest{
		LightID:    id,
		Action:     body.Action,
		Brightness: body.Brightness,
		ColorTemp:  body.ColorTemp,
	}))
}

// listRooms handles GET /api/v1/rooms
func (r *Router) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": r.deps.Controller.Rooms()})
}

// controlRoom handles PUT /api/v1/rooms/:room
func (r *Router) controlRoom(c *gin.Context) {
	body, ok := r.bindState(c, r.schemas.roomAction)
	if !ok {
		return
	}

	respond(c, r.deps.Controller.ControlRoom(c.Request.Context(), lights.RoomRequest{
		Room:       c.Param("room"),
		Action:     body.Action,
		Brightness: body.Brightness,
		ColorTemp:  body.ColorTemp,
	}))
}

// bridge handles GET /api/v1/bridge
func (r *Router) bridge(c *gin.Context) {
	respond(c, r.deps.Controller.DiscoverBridge(c.Request.Context()))
}

// history handles GET /api/v1/ledger?limit=N&target=T
func (r *Router) history(c *gin.Context) {
	if r.deps.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ledger is disabled"})
		return
	}

	limit := defaultLedgerLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxLedgerLimit {
			badRequest(c, "limit must be between 1 and "+strconv.Itoa(maxLedgerLimit))
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	var (
		entries []*ledger.Entry
		err     error
	)
	if target := c.Query("target"); target != "" {
		entries, err = r.deps.History.ByTarget(ctx, target, limit)
	} else {
		entries, err = r.deps.History.Recent(ctx, limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// bindState reads the body, validates it against schema and decodes it.
// On failure the error response has been written.
func (r *Router) bindState(c *gin.Context, schema *jsonschema.Schema) (stateBody, bool) {
	var body stateBody

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "failed to read request body")
		return body, false
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		badRequest(c, "Invalid request body")
		return body, false
	}
	if err := schema.Validate(payload); err != nil {
		badRequest(c, "Invalid parameters: "+err.Error())
		return body, false
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		badRequest(c, "Invalid request body")
		return body, false
	}
	return body, true
}
