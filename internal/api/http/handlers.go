package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/rtdcs/internal/shm"
)

// StateSource exposes the segment held by the process.
type StateSource interface {
	Snapshot() (shm.Snapshot, error)
}

// Handlers serves the diagnostics endpoints of one process.
type Handlers struct {
	process  string
	instance string
	state    StateSource
	metrics  *monitoring.Metrics
}

// NewHandlers creates diagnostics handlers.
func NewHandlers(process, instance string, state StateSource, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		process:  process,
		instance: instance,
		state:    state,
		metrics:  metrics,
	}
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status   string `json:"status"`
	Process  string `json:"process"`
	Instance string `json:"instance"`
	Segment  string `json:"segment"`
}

// Health reports 200 while the segment is attached and its magic intact.
func (h *Handlers) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:   "healthy",
		Process:  h.process,
		Instance: h.instance,
		Segment:  "valid",
	}

	snap, err := h.state.Snapshot()
	switch {
	case err != nil:
		resp.Status, resp.Segment = "unhealthy", "detached"
	case !snap.Valid:
		resp.Status, resp.Segment = "unhealthy", "invalid magic"
	}

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

// State returns every field of the segment.
func (h *Handlers) State(c *gin.Context) {
	snap, err := h.state.Snapshot()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshot": snap,
		"read_at":  time.Now().UTC(),
	})
}

// Stats returns counters for the JSON API.
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}
