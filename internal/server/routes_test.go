package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/berfenger/ws3000mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeMaster(healthy bool, topology domain.Topology) actor.ReceiveFunc {
	return func(ctx actor.Context) {
		switch ctx.Message().(type) {
		case domain.ActorHealthRequest:
			ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: healthy})
		case domain.GetTopologyRequest:
			ctx.Respond(domain.GetTopologyResponse{
				Topology: topology,
				Config:   &domain.StationConfig{Units: topology.Units, Model: "WS3000"},
			})
		}
	}
}

func newTestServer(t *testing.T, master actor.ReceiveFunc) http.Handler {
	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)
	pid := as.Root.Spawn(actor.PropsFromFunc(master))
	s := &Server{rootContext: as.Root, masterActor: pid}
	return s.RegisterRoutes()
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthCheckHandler(t *testing.T) {

	rec := get(newTestServer(t, fakeMaster(true, domain.Topology{})), "/healthcheck")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK", rec.Body.String())

	rec = get(newTestServer(t, fakeMaster(false, domain.Topology{})), "/healthcheck")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTopologyHandler(t *testing.T) {

	topology := domain.NewTopology(domain.UNITS_CELSIUS, []domain.ChannelMeasurement{
		{Channel: 2, Measurement: domain.MEASUREMENT_HUMIDITY},
		{Channel: 1, Measurement: domain.MEASUREMENT_TEMPERATURE},
	})
	rec := get(newTestServer(t, fakeMaster(true, topology)), "/topology")
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		Established bool `json:"established"`
		Topology    struct {
			Units  string `json:"units"`
			Active []struct {
				Channel     int    `json:"channel"`
				Measurement string `json:"measurement"`
			} `json:"active"`
		} `json:"topology"`
		Station struct {
			Model string `json:"model"`
		} `json:"station"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Established)
	assert.Equal(t, "celsius", view.Topology.Units)
	require.Len(t, view.Topology.Active, 2)
	assert.Equal(t, 1, view.Topology.Active[0].Channel)
	assert.Equal(t, "humidity", view.Topology.Active[1].Measurement)
	assert.Equal(t, "WS3000", view.Station.Model)
}
