package server

import (
	"net/http"
	"time"

	"github.com/berfenger/sensorist2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type entityView struct {
	UniqueId string                `json:"unique_id"`
	ApiId    int64                 `json:"api_id"`
	Name     string                `json:"name"`
	Type     string                `json:"type"`
	Reading  *domain.SensorReading `json:"reading,omitempty"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/entities", s.EntitiesHandler)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

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

func (s *Server) EntitiesHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ListEntitiesRequest{}, 5*time.Second).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.ListEntitiesResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	if response.HasResponseError() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, response.GetResponseError().Error())
	}

	views := make([]entityView, 0, len(response.Entities))
	for _, ref := range response.Entities {
		view := entityView{
			UniqueId: ref.Entity.UniqueID(),
			ApiId:    int64(ref.Entity.APIID()),
			Name:     ref.Entity.Name(),
			Type:     entityType(ref.Entity),
		}
		if ref.PID != nil {
			view.Reading = s.sensorReading(ref)
		}
		views = append(views, view)
	}
	return c.JSON(http.StatusOK, views)
}

// sensorReading asks a sensor actor for its current reading. A sensor that
// does not answer in time is reported without one.
func (s *Server) sensorReading(ref domain.EntityRef) *domain.SensorReading {
	res, err := s.rootContext.RequestFuture(ref.PID, domain.GetSensorReadingRequest{}, time.Second).Result()
	if err != nil {
		return nil
	}
	response, ok := res.(domain.GetSensorReadingResponse)
	if !ok {
		return nil
	}
	return &response.Reading
}

func entityType(entity domain.Entity) string {
	switch entity.(type) {
	case *domain.GatewayEntity:
		return "gateway"
	case *domain.DeviceEntity:
		return "device"
	case *domain.SensorEntity:
		return "sensor"
	}
	return "unknown"
}
