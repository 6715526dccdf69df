// Package presence derives a device's online/offline state from its last
// contact time. The same threshold must be used everywhere the state is
// displayed, so the registry and tracking views can never disagree about the
// same timestamp.
package presence

import "time"

// IsOnline reports whether a device with the given last contact time is
// considered online at now. A device that has never made contact is offline.
func IsOnline(lastContact *time.Time, now time.Time, threshold time.Duration) bool {
	if lastContact == nil {
		return false
	}
	return now.Sub(*lastContact) <= threshold
}
