package gateway

import "wagate/internal/engine"

// Status is the caller-visible connection state. AUTHENTICATED and CONNECTED
// are both usable for sending; they are distinguished only for reporting.
type Status string

const (
	StatusDisconnected  Status = "DISCONNECTED"
	StatusQRPending     Status = "QR_PENDING"
	StatusAuthenticated Status = "AUTHENTICATED"
	StatusConnected     Status = "CONNECTED"
)

func (s Status) Usable() bool {
	return s == StatusConnected || s == StatusAuthenticated
}

// Snapshot is a point-in-time read of the session for polling callers.
type Snapshot struct {
	Status   Status
	QRCode   string
	Identity *engine.Identity
}

// Status returns the current snapshot. It never blocks and never mutates
// state.
func (m *Manager) Status() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{Status: m.status, QRCode: m.qrDataURL}
	if m.identity != nil {
		id := *m.identity
		snap.Identity = &id
	}
	return snap
}
