// Package registry is the durable device catalog: registration upserts,
// device heartbeats, tenant device listings and the unauthenticated config
// lookup devices use to self-configure.
package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/tamilselvan8428/person-tracking/internal/apperr"
	"github.com/tamilselvan8428/person-tracking/internal/clock"
	"github.com/tamilselvan8428/person-tracking/internal/model"
	"github.com/tamilselvan8428/person-tracking/internal/presence"
	"github.com/tamilselvan8428/person-tracking/pkg/config"
	"github.com/tamilselvan8428/person-tracking/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service implements the device registry operations.
type Service struct {
	db  *gorm.DB
	clk clock.Clock
	cfg config.TrackingConfig
	log *zap.Logger
}

// NewService creates a registry service.
func NewService(db *gorm.DB, clk clock.Clock, cfg config.TrackingConfig, log *zap.Logger) *Service {
	return &Service{db: db, clk: clk, cfg: cfg, log: log}
}

// RegisterInput carries the registration payload for a device.
type RegisterInput struct {
	DeviceUID string
	Name      string
	Type      model.DeviceType
}

// Register upserts a device by its device_uid. A new device is created under
// the caller's tenant with no last contact. An existing device gets its type
// updated and its name replaced only when a non-empty name is supplied.
// Re-registering a device owned by a different tenant fails with
// ErrCrossTenant: a guessable device_uid must not be enough to pull a device
// into another tenant.
func (s *Service) Register(tenantID uint, in RegisterInput) (*model.Device, error) {
	if in.DeviceUID == "" {
		return nil, fmt.Errorf("%w: missing device_uid", apperr.ErrInvalidPayload)
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: invalid device type %q", apperr.ErrInvalidPayload, in.Type)
	}

	var device model.Device
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("device_uid = ?", in.DeviceUID).First(&device).Error
		if err == nil {
			if device.TenantID != tenantID {
				s.log.Warn("device re-registration from foreign tenant rejected",
					zap.String("device_uid", in.DeviceUID),
					zap.Uint("owner_tenant_id", device.TenantID),
					zap.Uint("caller_tenant_id", tenantID))
				prometheus.RecordCrossTenantViolation("register")
				return fmt.Errorf("%w: device %s is owned by another tenant", apperr.ErrCrossTenant, in.DeviceUID)
			}
			device.Type = in.Type
			if in.Name != "" {
				device.Name = in.Name
			}
			return tx.Save(&device).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		device = model.Device{
			TenantID:  tenantID,
			DeviceUID: in.DeviceUID,
			Name:      in.Name,
			Type:      in.Type,
		}
		if err := tx.Create(&device).Error; err != nil {
			// The unique index on device_uid closes the check-then-insert race
			// under concurrent first registration of the same physical device.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: device %s already exists", apperr.ErrConflict, in.DeviceUID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// Heartbeat refreshes a device's last contact time. Unknown devices fail with
// ErrNotFound and are never auto-created, so an unregistered unit cannot make
// itself appear present.
func (s *Service) Heartbeat(deviceUID string) (time.Time, error) {
	if deviceUID == "" {
		return time.Time{}, fmt.Errorf("%w: missing device_uid", apperr.ErrInvalidPayload)
	}

	now := s.clk.Now()
	result := s.db.Model(&model.Device{}).
		Where("device_uid = ?", deviceUID).
		Update("last_contact", now)
	if result.Error != nil {
		return time.Time{}, result.Error
	}
	if result.RowsAffected == 0 {
		return time.Time{}, fmt.Errorf("%w: device %s", apperr.ErrNotFound, deviceUID)
	}
	return now, nil
}

// DeviceStatus pairs a device with its online state derived at read time.
type DeviceStatus struct {
	Device model.Device
	Online bool
}

// List returns all devices of a tenant with presence computed against the
// current time. The online flag is never read from storage.
func (s *Service) List(tenantID uint) ([]DeviceStatus, error) {
	var devices []model.Device
	if err := s.db.Where("tenant_id = ?", tenantID).Order("id").Find(&devices).Error; err != nil {
		return nil, err
	}

	now := s.clk.Now()
	statuses := make([]DeviceStatus, len(devices))
	for i, d := range devices {
		statuses[i] = DeviceStatus{
			Device: d,
			Online: presence.IsOnline(d.LastContact, now, s.cfg.OfflineAfter),
		}
	}
	return statuses, nil
}

// DeviceConfig is the self-configuration payload a device fetches on boot.
type DeviceConfig struct {
	Device            model.Device
	HeartbeatInterval time.Duration
	TrackingInterval  time.Duration
}

// ResolveConfig looks up a device by its uid and returns its identity plus
// the process-wide operating intervals.
func (s *Service) ResolveConfig(deviceUID string) (*DeviceConfig, error) {
	if deviceUID == "" {
		return nil, fmt.Errorf("%w: missing device_uid", apperr.ErrInvalidPayload)
	}

	var device model.Device
	if err := s.db.Where("device_uid = ?", deviceUID).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: device %s is not registered", apperr.ErrNotFound, deviceUID)
		}
		return nil, err
	}

	return &DeviceConfig{
		Device:            device,
		HeartbeatInterval: s.cfg.HeartbeatInterval,
		TrackingInterval:  s.cfg.TrackingInterval,
	}, nil
}
