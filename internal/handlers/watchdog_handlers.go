// Package handlers exposes direct watchdog control over HTTP. It is the
// control surface of the proxy service; the supervisor daemon does not use
// it. Running both binaries against the same device is unsupported.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"swmon/internal/middleware"
	"swmon/internal/utils"
	"swmon/internal/version"
	"swmon/internal/watchdog"
)

// WatchdogHandlers owns the HTTP view of a single watchdog handle.
type WatchdogHandlers struct {
	handle *watchdog.Handle
	auth   *middleware.AuthService
	hub    *middleware.Hub
	logger *utils.Logger
}

func NewWatchdogHandlers(handle *watchdog.Handle, auth *middleware.AuthService, hub *middleware.Hub, logger *utils.Logger) *WatchdogHandlers {
	return &WatchdogHandlers{handle: handle, auth: auth, hub: hub, logger: logger}
}

// NewRouter assembles the full control-plane router: security middleware,
// rate limiting, the API routes, the dashboard, and the websocket endpoint.
func NewRouter(h *WatchdogHandlers, limiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	if limiter != nil {
		r.Use(limiter.Middleware())
	}
	r.HandleMethodNotAllowed = true

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": version.String()})
	})

	r.GET("/", h.Dashboard)
	r.GET("/index.html", h.Dashboard)
	if h.hub != nil {
		r.GET("/ws", h.hub.HandleWebSocket())
	}

	api := r.Group("/api")
	api.GET("/status", h.Status)
	api.GET("/info", h.Info)
	api.POST("/login", h.Login)

	control := api.Group("")
	control.Use(h.auth.RequireAPIAuth())
	control.POST("/start", h.Start)
	control.POST("/trigger", h.Trigger)
	control.POST("/stop", h.Stop)
	control.POST("/configure", h.Configure)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown endpoint"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	return r
}

// Status reports the running flag and the stored timing parameters.
func (h *WatchdogHandlers) Status(c *gin.Context) {
	p := h.handle.Params()
	running := h.handle.Running()

	resp := gin.H{
		"running":    running,
		"delay_time": p.Delay.Milliseconds(),
		"event_time": p.Event.Milliseconds(),
		"reset_time": p.Reset.Milliseconds(),
		"event_type": uint32(p.Type),
	}
	if running {
		resp["max_total_time_ms"] = (p.Delay + p.Event + p.Reset).Milliseconds()
	}
	c.JSON(http.StatusOK, resp)
}

// Info reports device capabilities. A device that cannot answer the support
// query is reported as unsupported rather than failing the request.
func (h *WatchdogHandlers) Info(c *gin.Context) {
	resp := gin.H{}

	if _, ok := h.handle.Capability(watchdog.CapSupportFlags); !ok {
		resp["supported"] = false
		resp["error"] = "Watchdog is not supported or failed to get capabilities"
		c.JSON(http.StatusOK, resp)
		return
	}

	resp["supported"] = true
	caps := []watchdog.CapKey{
		watchdog.CapUnitMinimum,
		watchdog.CapDelayMinimum,
		watchdog.CapDelayMaximum,
		watchdog.CapResetMinimum,
		watchdog.CapResetMaximum,
	}
	for _, key := range caps {
		if value, ok := h.handle.Capability(key); ok {
			resp[key.String()] = value
		}
	}
	c.JSON(http.StatusOK, resp)
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

// Login exchanges the configured control password for a bearer token.
func (h *WatchdogHandlers) Login(c *gin.Context) {
	if !h.auth.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Authentication is not configured"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password required"})
		return
	}
	if !h.auth.CheckPassword(req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid password"})
		return
	}

	token, err := h.auth.GenerateToken("operator")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Start arms the watchdog. Optional delay/event/reset/type query parameters
// overlay the stored values before arming.
func (h *WatchdogHandlers) Start(c *gin.Context) {
	q, err := middleware.BindTimingQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid timing parameters"})
		return
	}

	params := q.Apply(h.handle.Params())
	if err := h.handle.Start(params); err != nil {
		if errors.Is(err, watchdog.ErrRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": "Watchdog is already running"})
			return
		}
		h.logf("Failed to start watchdog: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start watchdog"})
		return
	}

	h.logf("Watchdog started (delay=%dms event=%dms reset=%dms type=%s)",
		params.Delay.Milliseconds(), params.Event.Milliseconds(), params.Reset.Milliseconds(), params.Type)
	h.broadcast("start", params)

	c.JSON(http.StatusOK, withParams(gin.H{"status": "Watchdog started"}, params))
}

// Trigger feeds the watchdog, resetting its countdown.
func (h *WatchdogHandlers) Trigger(c *gin.Context) {
	if err := h.handle.Trigger(); err != nil {
		if errors.Is(err, watchdog.ErrNotRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": "Watchdog is not running"})
			return
		}
		h.logf("Failed to trigger watchdog: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to trigger watchdog"})
		return
	}

	h.broadcast("trigger", h.handle.Params())
	c.JSON(http.StatusOK, gin.H{"status": "Watchdog triggered (reset timer)"})
}

// Stop disarms the watchdog.
func (h *WatchdogHandlers) Stop(c *gin.Context) {
	if err := h.handle.Stop(); err != nil {
		if errors.Is(err, watchdog.ErrNotRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": "Watchdog is not running"})
			return
		}
		h.logf("Failed to stop watchdog: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to stop watchdog"})
		return
	}

	h.logf("Watchdog stopped")
	h.broadcast("stop", h.handle.Params())
	c.JSON(http.StatusOK, gin.H{"status": "Watchdog stopped"})
}

// Configure updates the stored timing parameters. Only permitted while the
// watchdog is stopped.
func (h *WatchdogHandlers) Configure(c *gin.Context) {
	q, err := middleware.BindTimingQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid timing parameters"})
		return
	}

	params := q.Apply(h.handle.Params())
	if err := h.handle.Configure(params); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Cannot configure watchdog while running. Stop it first."})
		return
	}

	h.broadcast("configure", params)
	c.JSON(http.StatusOK, withParams(gin.H{"status": "Watchdog configured"}, params))
}

func withParams(resp gin.H, p watchdog.Params) gin.H {
	resp["delay"] = p.Delay.Milliseconds()
	resp["event"] = p.Event.Milliseconds()
	resp["reset"] = p.Reset.Milliseconds()
	resp["type"] = uint32(p.Type)
	return resp
}

func (h *WatchdogHandlers) broadcast(event string, p watchdog.Params) {
	if h.hub == nil {
		return
	}
	h.hub.BroadcastEvent(event, map[string]interface{}{
		"delay": p.Delay.Milliseconds(),
		"event": p.Event.Milliseconds(),
		"reset": p.Reset.Milliseconds(),
		"type":  uint32(p.Type),
	})
}

func (h *WatchdogHandlers) logf(format string, args ...interface{}) {
	if h.logger != nil {
		h.logger.Writef(format, args...)
	}
}

// Dashboard serves a single-page status view with curl examples.
func (h *WatchdogHandlers) Dashboard(c *gin.Context) {
	state, class := "Stopped", "stopped"
	if h.handle.Running() {
		state, class = "Running", "running"
	}

	page := fmt.Sprintf(dashboardHTML, class, state)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Watchdog HTTP Service</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; line-height: 1.6; }
        h1 { color: #333; }
        .status { display: inline-block; padding: 5px 10px; border-radius: 4px; }
        .running { background-color: #d4edda; color: #155724; }
        .stopped { background-color: #f8d7da; color: #721c24; }
        .endpoints { background-color: #f8f9fa; padding: 15px; border-radius: 4px; }
        pre { background-color: #f1f1f1; padding: 10px; border-radius: 4px; }
    </style>
</head>
<body>
    <h1>Watchdog HTTP Service</h1>
    <p>Status: <span class='status %s'>%s</span></p>
    <h2>Available Endpoints</h2>
    <div class='endpoints'>
        <h3>Status</h3>
        <p>GET /api/status - Current watchdog status (JSON)</p>
        <p>GET /api/info - Watchdog capabilities (JSON)</p>
        <h3>Control</h3>
        <p>POST /api/start - Start the watchdog</p>
        <p>POST /api/trigger - Feed/trigger the watchdog</p>
        <p>POST /api/stop - Stop the watchdog</p>
        <p>POST /api/configure - Configure watchdog parameters</p>
    </div>
    <h2>Example Usage</h2>
    <pre>curl http://localhost:9101/api/status</pre>
    <pre>curl -X POST http://localhost:9101/api/start</pre>
    <pre>curl -X POST "http://localhost:9101/api/configure?delay=15000&event=5000&reset=1000&type=0"</pre>
</body>
</html>`
