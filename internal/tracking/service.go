// Package tracking ingests person-to-room proximity observations and
// resolves each person's current location as the newest observation inside
// the staleness window.
package tracking

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

// futureSkewTolerance bounds how far ahead of server time a client-supplied
// observation timestamp may be before it is replaced with server time. A
// device with a broken clock must not be able to pin itself online forever.
const futureSkewTolerance = 30 * time.Second

// Service implements the proximity tracking operations.
type Service struct {
	db  *gorm.DB
	clk clock.Clock
	cfg config.TrackingConfig
	log *zap.Logger
}

// NewService creates a tracking service.
func NewService(db *gorm.DB, clk clock.Clock, cfg config.TrackingConfig, log *zap.Logger) *Service {
	return &Service{db: db, clk: clk, cfg: cfg, log: log}
}

// ObservationInput carries one proximity report from a person device.
// RoomUID may be empty when the device saw no room in range. ClientTS, when
// set, is the device's clock in epoch milliseconds.
type ObservationInput struct {
	PersonUID string
	RoomUID   string
	RSSI      int
	ClientTS  *int64
}

// SubmitObservation validates the reporting pair, appends an immutable
// observation and refreshes the person device's last contact time. The
// append and the refresh commit or roll back together; a partial write would
// let the presence view and the tracking view disagree.
func (s *Service) SubmitObservation(in ObservationInput) (*model.Observation, error) {
	if in.PersonUID == "" {
		return nil, fmt.Errorf("%w: missing person_device_uid", apperr.ErrInvalidPayload)
	}

	person, err := s.findTyped(in.PersonUID, model.DeviceTypePerson)
	if err != nil {
		return nil, err
	}

	var room *model.Device
	if in.RoomUID != "" {
		room, err = s.findTyped(in.RoomUID, model.DeviceTypeRoom)
		if err != nil {
			return nil, err
		}
		if room.TenantID != person.TenantID {
			s.log.Warn("cross-tenant observation rejected",
				zap.String("person_uid", in.PersonUID),
				zap.String("room_uid", in.RoomUID),
				zap.Uint("person_tenant_id", person.TenantID),
				zap.Uint("room_tenant_id", room.TenantID))
			prometheus.RecordCrossTenantViolation("observation")
			return nil, fmt.Errorf("%w: devices belong to different tenants", apperr.ErrCrossTenant)
		}
	}

	observedAt := s.observationTime(in.ClientTS)

	observation := model.Observation{
		TenantID:       person.TenantID,
		PersonDeviceID: person.ID,
		RSSI:           in.RSSI,
		ObservedAt:     observedAt,
	}
	if room != nil {
		observation.RoomDeviceID = &room.ID
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&observation).Error; err != nil {
			return err
		}
		return tx.Model(&model.Device{}).
			Where("id = ?", person.ID).
			Update("last_contact", observedAt).Error
	})
	if err != nil {
		return nil, err
	}
	return &observation, nil
}

// observationTime interprets an optional client timestamp in epoch millis.
// Timestamps beyond the future skew tolerance collapse to server time; past
// timestamps are accepted as-is and age out of the staleness window.
func (s *Service) observationTime(clientTS *int64) time.Time {
	now := s.clk.Now()
	if clientTS == nil {
		return now
	}
	ts := time.Unix(*clientTS/1000, 0).UTC()
	if ts.After(now.Add(futureSkewTolerance)) {
		return now
	}
	return ts
}

// Location is one person's freshest observation, paired with the person
// device's own presence state. The two can diverge: a heartbeat after the
// last report keeps the person online while the location ages.
type Location struct {
	Person     model.Device
	Room       *model.Device
	RSSI       int
	ObservedAt time.Time
	Online     bool
}

// CurrentLocations returns the newest observation per person device within
// the recency window, ordered newest first. Ties on the observation time are
// broken by insertion order.
func (s *Service) CurrentLocations(tenantID uint) ([]Location, error) {
	now := s.clk.Now()
	cutoff := now.Add(-s.cfg.TrackingWindow)

	var observations []model.Observation
	err := s.db.
		Preload("PersonDevice").
		Preload("RoomDevice").
		Where("tenant_id = ? AND observed_at >= ?", tenantID, cutoff).
		Order("observed_at DESC").
		Order("id DESC").
		Find(&observations).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]bool, len(observations))
	locations := make([]Location, 0, len(observations))
	for _, obs := range observations {
		if seen[obs.PersonDeviceID] {
			continue
		}
		seen[obs.PersonDeviceID] = true

		locations = append(locations, Location{
			Person:     obs.PersonDevice,
			Room:       obs.RoomDevice,
			RSSI:       obs.RSSI,
			ObservedAt: obs.ObservedAt,
			Online:     presence.IsOnline(obs.PersonDevice.LastContact, now, s.cfg.OfflineAfter),
		})
	}
	return locations, nil
}

// findTyped resolves a device_uid and checks its type. Wrong-type devices
// are reported the same way as unknown ones.
func (s *Service) findTyped(deviceUID string, deviceType model.DeviceType) (*model.Device, error) {
	var device model.Device
	err := s.db.Where("device_uid = ? AND type = ?", deviceUID, deviceType).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no %s device with uid %s", apperr.ErrNotFound, deviceType, deviceUID)
		}
		return nil, err
	}
	return &device, nil
}
