package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/metrics"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMaster answers like the controller behind the master actor.
type fakeMaster struct {
	state   domain.PowerState
	silent  bool
	healthy bool
}

func (m *fakeMaster) Receive(ctx actor.Context) {
	if m.silent {
		return
	}
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: m.healthy})
	case domain.GetStateRequest:
		ctx.Respond(domain.PowerStateResponse{State: m.state, BatteryState: domain.BatteryIdle})
	case domain.SetStateRequest:
		m.state = msg.State
		ctx.Respond(domain.PowerStateResponse{State: m.state, BatteryState: domain.BatteryCharging})
	case domain.InChangeRequest:
		ctx.Respond(domain.ChangeResponse{Result: domain.ChangeOk, Power: msg.Power, Current: 100 + msg.Power})
	case domain.UpdateOptimizeTargetRequest:
		if msg.Min != nil && msg.Max != nil && *msg.Min > *msg.Max {
			ctx.Respond(domain.SetOptimizeTargetResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: domain.ErrInvalidTarget},
				Min:                -50,
				Max:                50,
			})
			return
		}
		resp := domain.SetOptimizeTargetResponse{Min: -50, Max: 50}
		if msg.Min != nil {
			resp.Min = *msg.Min
		}
		if msg.Max != nil {
			resp.Max = *msg.Max
		}
		ctx.Respond(resp)
	case domain.OutEvaluateRequest:
		enabled := msg.Limit == nil || *msg.Limit > 0.2
		ctx.Respond(domain.OutEvaluateResponse{Enabled: enabled, Price: 0.2})
	case domain.GetStatusRequest:
		price := 0.25
		ctx.Respond(domain.GetStatusResponse{Status: domain.ControllerStatus{
			PowerState:   m.state,
			BatterySOC:   64,
			CurrentPrice: &price,
		}})
	}
}

func newTestServer(t *testing.T, master *fakeMaster) http.Handler {
	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor { return master }))
	s := &Server{
		rootContext: as.Root,
		masterActor: pid,
		metrics:     metrics.NewMetrics().Handler(),
	}
	return s.RegisterRoutes()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {

	h := newTestServer(t, &fakeMaster{healthy: true})
	rec := do(h, http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK", rec.Body.String())

	h = newTestServer(t, &fakeMaster{healthy: false})
	rec = do(h, http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStateRoutes(t *testing.T) {

	require := require.New(t)

	h := newTestServer(t, &fakeMaster{})

	rec := do(h, http.MethodGet, "/api/power/state", "")
	require.Equal(http.StatusOK, rec.Code)
	require.Equal("off", decode(t, rec)["state"])

	rec = do(h, http.MethodPost, "/api/power/state", `{"state":"in"}`)
	require.Equal(http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Equal("in", body["state"])
	require.Equal("charging", body["battery_state"])

	rec = do(h, http.MethodPost, "/api/power/state", `{"state":-1}`)
	require.Equal(http.StatusOK, rec.Code)
	require.Equal("out", decode(t, rec)["state"])

	rec = do(h, http.MethodPost, "/api/power/state", `{"state":"sideways"}`)
	require.Equal(http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/api/power/state", `{}`)
	require.Equal(http.StatusBadRequest, rec.Code)
}

func TestChangeRoute(t *testing.T) {

	h := newTestServer(t, &fakeMaster{})

	rec := do(h, http.MethodPost, "/api/power/in/change", `{"power":50}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["result"])
	assert.Equal(t, 50.0, body["power"])
	assert.Equal(t, 150.0, body["current_power_in"])

	rec = do(h, http.MethodPost, "/api/power/in/change", `{"power":"lots"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/api/power/in/change", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptimizeTargetRoute(t *testing.T) {

	h := newTestServer(t, &fakeMaster{})

	rec := do(h, http.MethodPost, "/api/power/optimize/target", `{"max":120}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, -50.0, body["min"])
	assert.Equal(t, 120.0, body["max"])

	rec = do(h, http.MethodPost, "/api/power/optimize/target", `{"min":100,"max":-100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOutEvaluateRoute(t *testing.T) {

	h := newTestServer(t, &fakeMaster{})

	rec := do(h, http.MethodPost, "/api/power/out/evaluate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["enabled"])

	rec = do(h, http.MethodPost, "/api/power/out/evaluate", `{"limit":0.1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["enabled"])
}

func TestStatusRoute(t *testing.T) {

	h := newTestServer(t, &fakeMaster{state: domain.PowerIn})

	rec := do(h, http.MethodGet, "/api/power/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "in", body["power_state"])
	assert.Equal(t, 64.0, body["battery_soc"])
	assert.Equal(t, 0.25, body["current_price"])
}

func TestControllerTimeout(t *testing.T) {

	if testing.Short() {
		t.Skip("waits for the request timeout")
	}
	h := newTestServer(t, &fakeMaster{silent: true})

	rec := do(h, http.MethodPost, "/api/power/capacity/reset", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsRoute(t *testing.T) {

	h := newTestServer(t, &fakeMaster{})

	rec := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "powerpilot_power_state")
}
