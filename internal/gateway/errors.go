package gateway

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned by Send when no connection handle exists.
var ErrNotInitialized = errors.New("whatsapp client not initialized")

// NotReadyError is returned by Send when a handle exists but the session is
// not in a usable state. It carries the status so callers can tell the user
// what to do (usually: scan the QR code, or retry shortly).
type NotReadyError struct {
	Status Status
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("whatsapp is not connected (status: %s), please scan the QR code", e.Status)
}
