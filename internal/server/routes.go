package server

import (
	"net/http"
	"time"

	"github.com/berfenger/ws3000mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/topology", s.TopologyHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

type topologyView struct {
	Established bool                  `json:"established"`
	Topology    domain.Topology       `json:"topology"`
	Station     *domain.StationConfig `json:"station,omitempty"`
}

// TopologyHandler exposes what the bridge believes is connected to the console.
func (s *Server) TopologyHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetTopologyRequest{}, 10*time.Second).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.GetTopologyResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected topology response")
	}
	if response.HasResponseError() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, response.GetResponseError().Error())
	}
	return c.JSON(http.StatusOK, topologyView{
		Established: response.Topology.Established(),
		Topology:    response.Topology,
		Station:     response.Config,
	})
}
