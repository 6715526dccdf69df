package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tamilselvan8428/person-tracking/internal/middleware"
	"github.com/tamilselvan8428/person-tracking/internal/model"
	"github.com/tamilselvan8428/person-tracking/internal/registry"
	"github.com/tamilselvan8428/person-tracking/pkg/logger"
	"github.com/tamilselvan8428/person-tracking/prometheus"
	"go.uber.org/zap"
)

// DeviceHandler serves device registration, listing, heartbeat and the
// unauthenticated config lookup devices call on boot.
type DeviceHandler struct {
	registry *registry.Service
}

// NewDeviceHandler creates a device handler.
func NewDeviceHandler(registry *registry.Service) *DeviceHandler {
	return &DeviceHandler{registry: registry}
}

// Register upserts a device under the caller's tenant context. Platform
// admins name the tenant explicitly; everyone else is pinned to their own.
func (h *DeviceHandler) Register(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RegisterDeviceCounter.Inc()

	p := middleware.GetPrincipal(c)
	if p == nil {
		prometheus.RecordAuthError("missing_principal")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		DeviceUID string `json:"device_uid"`
		Name      string `json:"name"`
		Type      string `json:"type"`
		TenantID  *uint  `json:"tenant_id,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse device registration request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	tenantID, err := p.ResolveTenant(req.TenantID)
	if err != nil {
		return respondError(c, log, err)
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	device, err := h.registry.Register(tenantID, registry.RegisterInput{
		DeviceUID: req.DeviceUID,
		Name:      req.Name,
		Type:      model.DeviceType(req.Type),
	})
	if err != nil {
		return respondError(c, log, err)
	}

	log.Info("Device registered",
		zap.String("device_uid", device.DeviceUID),
		zap.String("type", string(device.Type)),
		zap.Uint("tenant_id", device.TenantID))
	return c.JSON(http.StatusOK, echo.Map{
		"ok": true,
		"id": device.ID,
	})
}

// List returns the tenant's devices with presence derived at call time.
func (h *DeviceHandler) List(c echo.Context) error {
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
	statuses, err := h.registry.List(tenantID)
	if err != nil {
		return respondError(c, log, err)
	}

	devices := make([]echo.Map, len(statuses))
	for i, s := range statuses {
		devices[i] = echo.Map{
			"id":           s.Device.ID,
			"device_uid":   s.Device.DeviceUID,
			"name":         s.Device.Name,
			"type":         s.Device.Type,
			"last_contact": unixOrNil(s.Device.LastContact),
			"online":       s.Online,
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"devices": devices})
}

// Heartbeat refreshes a device's last contact time. Unauthenticated: this is
// the device-to-server channel.
func (h *DeviceHandler) Heartbeat(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.HeartbeatCounter.Inc()

	var req struct {
		DeviceUID string `json:"device_uid"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse heartbeat request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	ts, err := h.registry.Heartbeat(req.DeviceUID)
	if err != nil {
		return respondError(c, log, err)
	}

	log.Debug("Heartbeat received", zap.String("device_uid", req.DeviceUID))
	return c.JSON(http.StatusOK, echo.Map{
		"ok": true,
		"ts": ts.Unix(),
	})
}

// Config is the unauthenticated lookup a device uses to self-configure:
// identity plus the process-wide reporting intervals.
func (h *DeviceHandler) Config(c echo.Context) error {
	log := logger.FromEcho(c)

	deviceUID := c.QueryParam("device_uid")

	defer prometheus.TrackDBOperation("query")(time.Now())
	cfg, err := h.registry.ResolveConfig(deviceUID)
	if err != nil {
		return respondError(c, log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":                     cfg.Device.ID,
		"tenant_id":              cfg.Device.TenantID,
		"device_uid":             cfg.Device.DeviceUID,
		"name":                   cfg.Device.Name,
		"type":                   cfg.Device.Type,
		"heartbeat_interval_sec": int(cfg.HeartbeatInterval.Seconds()),
		"tracking_interval_sec":  int(cfg.TrackingInterval.Seconds()),
	})
}
