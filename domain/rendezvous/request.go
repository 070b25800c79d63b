// Package rendezvous holds the value types exchanged while two already
// paired peers schedule a direct connection through the coordination server.
package rendezvous

import (
	"time"

	"duet/domain/identity"
)

// ConnectionRequest is a scheduled rendezvous between two paired peers:
// Initiator wants to connect to Target at ScheduledAt (a UTC instant both
// sides independently sleep until).
type ConnectionRequest struct {
	Initiator   identity.PublicKey
	Target      identity.PublicKey
	ScheduledAt time.Time
}

// MissedSlack is how far past ScheduledAt a side may discover the request
// and still treat it as on time; beyond this it must fail with
// MissedSynchronisation rather than attempt an immediate rendezvous.
const MissedSlack = 5 * time.Second

// Missed reports whether now is far enough past ScheduledAt that the
// rendezvous should be abandoned rather than attempted late.
func (r ConnectionRequest) Missed(now time.Time) bool {
	return now.Sub(r.ScheduledAt) > MissedSlack
}
