package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/rtdcs/internal/shm"
)

type fakeState struct {
	snap shm.Snapshot
	err  error
}

func (f fakeState) Snapshot() (shm.Snapshot, error) { return f.snap, f.err }

func validSnapshot() shm.Snapshot {
	return shm.Snapshot{
		Magic:        shm.Magic,
		Valid:        true,
		Temperature:  shm.TemperatureReading{Celsius: 27.5, Timestamp: 1.5, SampleCount: 15},
		Compensation: shm.Compensation{X: -3, Y: -2, Timestamp: 1700000000},
	}
}

func setupRouter(state StateSource) (*gin.Engine, *monitoring.Metrics) {
	gin.SetMode(gin.TestMode)
	metrics := monitoring.NewMetrics("rtdcs_test")
	h := NewHandlers("thermal-monitor", "inst_test", state, metrics)
	return NewRouter(h, metrics, true), metrics
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	invalid := validSnapshot()
	invalid.Valid = false

	tests := []struct {
		name        string
		state       fakeState
		wantStatus  int
		wantSegment string
	}{
		{"valid", fakeState{snap: validSnapshot()}, http.StatusOK, "valid"},
		{"detached", fakeState{err: shm.ErrNotAttached}, http.StatusServiceUnavailable, "detached"},
		{"corrupt", fakeState{snap: invalid}, http.StatusServiceUnavailable, "invalid magic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupRouter(tt.state)
			w := get(router, "/health")

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantSegment, resp.Segment)
			assert.Equal(t, "thermal-monitor", resp.Process)
		})
	}
}

func TestState(t *testing.T) {
	router, _ := setupRouter(fakeState{snap: validSnapshot()})
	w := get(router, "/state")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Snapshot shm.Snapshot `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, validSnapshot(), body.Snapshot)

	router, _ = setupRouter(fakeState{err: shm.ErrNotAttached})
	assert.Equal(t, http.StatusServiceUnavailable, get(router, "/state").Code)
}

func TestStatsAndMetrics(t *testing.T) {
	router, metrics := setupRouter(fakeState{snap: validSnapshot()})
	metrics.RecordSample(25)

	w := get(router, "/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var stats monitoring.MetricsSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, uint64(1), stats.SamplesWritten)

	w = get(router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "rtdcs_test_samples_written_total 1"), body)
	assert.Contains(t, body, "rtdcs_test_http_requests_total")
}
