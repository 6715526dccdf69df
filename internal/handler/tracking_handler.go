package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tamilselvan8428/person-tracking/internal/middleware"
	"github.com/tamilselvan8428/person-tracking/internal/tracking"
	"github.com/tamilselvan8428/person-tracking/pkg/logger"
	"github.com/tamilselvan8428/person-tracking/prometheus"
	"go.uber.org/zap"
)

// TrackingHandler serves observation ingestion and the current-locations view.
type TrackingHandler struct {
	tracking *tracking.Service
}

// NewTrackingHandler creates a tracking handler.
func NewTrackingHandler(tracking *tracking.Service) *TrackingHandler {
	return &TrackingHandler{tracking: tracking}
}

// Update ingests one proximity report from a person device. Unauthenticated:
// this is the device-to-server channel, ownership is established through the
// registered device_uid pair.
func (h *TrackingHandler) Update(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.ObservationCounter.Inc()

	var req struct {
		PersonDeviceUID string `json:"person_device_uid"`
		RoomDeviceUID   string `json:"room_device_uid"`
		RSSI            int    `json:"rssi"`
		TS              *int64 `json:"ts"` // epoch millis from the device clock
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse tracking update", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	observation, err := h.tracking.SubmitObservation(tracking.ObservationInput{
		PersonUID: req.PersonDeviceUID,
		RoomUID:   req.RoomDeviceUID,
		RSSI:      req.RSSI,
		ClientTS:  req.TS,
	})
	if err != nil {
		return respondError(c, log, err)
	}

	log.Debug("Observation ingested",
		zap.String("person_uid", req.PersonDeviceUID),
		zap.String("room_uid", req.RoomDeviceUID),
		zap.Int("rssi", req.RSSI))
	return c.JSON(http.StatusOK, echo.Map{
		"ok": true,
		"ts": observation.ObservedAt.Unix(),
	})
}

// Locations returns each person's freshest observation within the recency
// window, paired with the person device's own online state.
func (h *TrackingHandler) Locations(c echo.Context) error {
	log := logger.FromEcho(c)

	p := middleware.GetPrincipal(c)
	if p == nil {
		prometheus.RecordAuthError("missing_principal")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	tenantID, err := p.ResolveTenant(queryTenantID(c))
	if err != nil {
		return respondError(c, log, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	locations, err := h.tracking.CurrentLocations(tenantID)
	if err != nil {
		return respondError(c, log, err)
	}

	items := make([]echo.Map, len(locations))
	for i, loc := range locations {
		var room echo.Map
		if loc.Room != nil {
			room = echo.Map{
				"id":         loc.Room.ID,
				"name":       loc.Room.Name,
				"device_uid": loc.Room.DeviceUID,
			}
		}
		items[i] = echo.Map{
			"person": echo.Map{
				"id":         loc.Person.ID,
				"name":       loc.Person.Name,
				"device_uid": loc.Person.DeviceUID,
			},
			"room":   room,
			"rssi":   loc.RSSI,
			"ts":     loc.ObservedAt.Unix(),
			"online": loc.Online,
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
