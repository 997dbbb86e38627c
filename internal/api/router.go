package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dokzlo13/lightctl/internal/ledger"
	"github.com/dokzlo13/lightctl/internal/lights"
)

// Controller is the set of light operations served over HTTP.
type Controller interface {
	ControlLight(ctx context.Context, req lights.LightRequest) *lights.Response
	ControlRoom(ctx context.Context, req lights.RoomRequest) *lights.Response
	GetLightState(ctx context.Context, lightID int) *lights.Response
	ListLights(ctx context.Context) *lights.Response
	DiscoverBridge(ctx context.Context) *lights.Response
	Rooms() map[string][]int
}

// BridgeChecker reports bridge reachability.
type BridgeChecker interface {
	TestConnection(ctx context.Context) (bool, error)
}

// History reads recorded operations.
type History interface {
	Recent(ctx context.Context, limit int) ([]*ledger.Entry, error)
	ByTarget(ctx context.Context, target string, limit int) ([]*ledger.Entry, error)
}

// Deps are the router's collaborators. History may be nil when the ledger
// is disabled.
type Deps struct {
	Controller  Controller
	Bridge      BridgeChecker
	History     History
	CORSOrigins []string
}

// Router holds the Gin engine and dependencies
type Router struct {
	engine  *gin.Engine
	deps    Deps
	schemas *bodySchemas
}

// NewRouter creates a new API router
func NewRouter(deps Deps) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine, deps.CORSOrigins)

	// The schemas are constants; failing to compile them is a programming error
	schemas, err := compileBodySchemas()
	if err != nil {
		panic(err)
	}

	router := &Router{
		engine:  engine,
		deps:    deps,
		schemas: schemas,
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.health)

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", r.health)

		lightsGroup := v1.Group("/lights")
		{
			lightsGroup.GET("", r.listLights)
			lightsGroup.GET("/:id", r.getLight)
			lightsGroup.PUT("/:id/state", r.setLightState)
		}

		rooms := v1.Group("/rooms")
		{
			rooms.GET("", r.listRooms)
			rooms.PUT("/:room", r.controlRoom)
		}

		v1.GET("/bridge", r.bridge)
		v1.GET("/ledger", r.history)
	}
}

// Handler returns the HTTP handler.
func (r *Router) Handler() http.Handler {
	return r.engine
}
