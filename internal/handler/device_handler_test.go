package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tamilselvan8428/person-tracking/internal/model"
)

func TestDeviceRegister(t *testing.T) {
	env := setupEnv(t)
	tenantID := env.createTenant(t, "org-1")
	admin := env.createTenantAdmin(t, "admin@org1.test", "secret", tenantID)
	adminToken := env.adminToken(t, admin)

	t.Run("admin registers a device", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/devices/register", adminToken, echo.Map{
			"device_uid": "esp32-001",
			"name":       "Lobby",
			"type":       "room",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["ok"])

		var device model.Device
		require.NoError(t, env.db.Where("device_uid = ?", "esp32-001").First(&device).Error)
		assert.Equal(t, tenantID, device.TenantID)
	})

	t.Run("invalid type is a bad request", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/devices/register", adminToken, echo.Map{
			"device_uid": "esp32-002",
			"type":       "gateway",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing device_uid is a bad request", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/devices/register", adminToken, echo.Map{
			"type": "room",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("config-scoped user may register", func(t *testing.T) {
		user := env.createTenantUser(t, "cfg@org1.test", "secret", tenantID, "config")
		rec := env.request(t, http.MethodPost, "/devices/register", env.tenantUserToken(t, user), echo.Map{
			"device_uid": "esp32-003",
			"type":       "person",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("tracking-scoped user is forbidden", func(t *testing.T) {
		user := env.createTenantUser(t, "trk@org1.test", "secret", tenantID, "tracking")
		rec := env.request(t, http.MethodPost, "/devices/register", env.tenantUserToken(t, user), echo.Map{
			"device_uid": "esp32-004",
			"type":       "person",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("re-registration from a foreign tenant is forbidden", func(t *testing.T) {
		otherID := env.createTenant(t, "org-2")
		other := env.createTenantAdmin(t, "admin@org2.test", "secret", otherID)
		rec := env.request(t, http.MethodPost, "/devices/register", env.adminToken(t, other), echo.Map{
			"device_uid": "esp32-001",
			"type":       "room",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("platform admin must name a tenant", func(t *testing.T) {
		platform := env.createPlatformAdmin(t, "root@platform.test", "secret")
		token := env.adminToken(t, platform)

		rec := env.request(t, http.MethodPost, "/devices/register", token, echo.Map{
			"device_uid": "esp32-005",
			"type":       "room",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.request(t, http.MethodPost, "/devices/register", token, echo.Map{
			"device_uid": "esp32-005",
			"type":       "room",
			"tenant_id":  tenantID,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var device model.Device
		require.NoError(t, env.db.Where("device_uid = ?", "esp32-005").First(&device).Error)
		assert.Equal(t, tenantID, device.TenantID)
	})
}

func TestDeviceHeartbeat(t *testing.T) {
	env := setupEnv(t)
	tenantID := env.createTenant(t, "org-1")
	admin := env.createTenantAdmin(t, "admin@org1.test", "secret", tenantID)
	env.registerDevice(t, env.adminToken(t, admin), "esp32-001", "Badge", model.DeviceTypePerson)

	t.Run("heartbeat refreshes last contact", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/devices/heartbeat", "", echo.Map{
			"device_uid": "esp32-001",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.EqualValues(t, env.clk.Now().Unix(), body["ts"])
	})

	t.Run("unknown device is not found and not created", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/devices/heartbeat", "", echo.Map{
			"device_uid": "ghost",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var count int64
		require.NoError(t, env.db.Model(&model.Device{}).Where("device_uid = ?", "ghost").Count(&count).Error)
		assert.EqualValues(t, 0, count)
	})
}

func TestDeviceList(t *testing.T) {
	env := setupEnv(t)
	tenantID := env.createTenant(t, "org-1")
	admin := env.createTenantAdmin(t, "admin@org1.test", "secret", tenantID)
	token := env.adminToken(t, admin)

	env.registerDevice(t, token, "p-1", "Badge", model.DeviceTypePerson)
	env.registerDevice(t, token, "r-1", "Lobby", model.DeviceTypeRoom)

	rec := env.request(t, http.MethodPost, "/devices/heartbeat", "", echo.Map{"device_uid": "p-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	env.clk.Advance(120 * time.Second)

	rec = env.request(t, http.MethodGet, "/devices", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	devices := body["devices"].([]interface{})
	require.Len(t, devices, 2)

	byUID := map[string]map[string]interface{}{}
	for _, d := range devices {
		entry := d.(map[string]interface{})
		byUID[entry["device_uid"].(string)] = entry
	}
	assert.Equal(t, true, byUID["p-1"]["online"], "contact 120s ago is inside the 360s threshold")
	assert.NotNil(t, byUID["p-1"]["last_contact"])
	assert.Equal(t, false, byUID["r-1"]["online"], "no contact yet")
	assert.Nil(t, byUID["r-1"]["last_contact"])
}

func TestDeviceConfig(t *testing.T) {
	env := setupEnv(t)
	tenantID := env.createTenant(t, "org-1")
	admin := env.createTenantAdmin(t, "admin@org1.test", "secret", tenantID)
	env.registerDevice(t, env.adminToken(t, admin), "esp32-001", "Badge", model.DeviceTypePerson)

	t.Run("registered device fetches its config", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/devices/config?device_uid=esp32-001", "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, "esp32-001", body["device_uid"])
		assert.Equal(t, "person", body["type"])
		assert.EqualValues(t, 60, body["heartbeat_interval_sec"])
		assert.EqualValues(t, 300, body["tracking_interval_sec"])
		assert.EqualValues(t, tenantID, body["tenant_id"].(float64))
	})

	t.Run("unregistered device is not found", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/devices/config?device_uid=ghost", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing uid is a bad request", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/devices/config", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDeviceListTenantPinning(t *testing.T) {
	env := setupEnv(t)
	tenant1 := env.createTenant(t, "org-1")
	tenant2 := env.createTenant(t, "org-2")
	admin1 := env.createTenantAdmin(t, "admin@org1.test", "secret", tenant1)
	admin2 := env.createTenantAdmin(t, "admin@org2.test", "secret", tenant2)

	env.registerDevice(t, env.adminToken(t, admin1), "p-1", "Badge", model.DeviceTypePerson)
	env.registerDevice(t, env.adminToken(t, admin2), "p-2", "Badge", model.DeviceTypePerson)

	// A tenant admin asking for another tenant still only sees its own.
	path := fmt.Sprintf("/devices?tenant_id=%d", tenant2)
	rec := env.request(t, http.MethodGet, path, env.adminToken(t, admin1), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	devices := body["devices"].([]interface{})
	require.Len(t, devices, 1)
	assert.Equal(t, "p-1", devices[0].(map[string]interface{})["device_uid"])

	// A platform admin acts on the tenant it names.
	platform := env.createPlatformAdmin(t, "root@platform.test", "secret")
	rec = env.request(t, http.MethodGet, path, env.adminToken(t, platform), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	devices = body["devices"].([]interface{})
	require.Len(t, devices, 1)
	assert.Equal(t, "p-2", devices[0].(map[string]interface{})["device_uid"])
}
