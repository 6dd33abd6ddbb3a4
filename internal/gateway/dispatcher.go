package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"wagate/internal/constants"
	"wagate/internal/engine"
)

// Send normalizes the recipient number, resolves it to a protocol address,
// and sends text over the active connection. It fails fast when the session
// is not usable: initialization is asynchronous, so a lazy initialize-then-
// send would race the handshake. Callers are expected to retry shortly.
func (m *Manager) Send(ctx context.Context, rawNumber, text string) (json.RawMessage, error) {
	m.mu.Lock()
	handle := m.handle
	status := m.status
	countryCode := m.countryCode
	addrSuffix := m.addrSuffix
	m.mu.Unlock()

	log.Printf("📤 Sending WhatsApp message to %s (status: %s)", rawNumber, status)

	if handle == nil {
		return nil, ErrNotInitialized
	}
	if !status.Usable() {
		return nil, &NotReadyError{Status: status}
	}

	digits := normalizeNumber(rawNumber, countryCode)

	address, err := handle.ResolveAddress(ctx, digits)
	if err != nil {
		// Resolution is flaky; fall back to manual construction.
		log.Printf("⚠️  Address resolution failed for %s: %v", digits, err)
		address = digits + "@" + addrSuffix
	}

	// Mark-seen stays off: leaving it on destabilizes some engine
	// implementations mid-session.
	resp, err := handle.Send(ctx, address, text, engine.SendOptions{MarkSeen: false})
	if err != nil {
		log.Printf("❌ Send to %s failed: %v", address, err)
		m.logError(err)
		return nil, humanizeSendError(err)
	}

	log.Printf("✅ Message sent to %s", address)
	return resp, nil
}

// normalizeNumber strips everything but digits and applies the country-code
// heuristic: a national trunk prefix (0) is replaced with the country code, a
// bare 10-digit local number is prefixed, and an already-prefixed number is
// left alone. Best effort, not validation.
func normalizeNumber(raw, countryCode string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, countryCode) && len(digits) > constants.LocalNumberLength:
		return digits
	case strings.HasPrefix(digits, "0"):
		return countryCode + digits[1:]
	case len(digits) == constants.LocalNumberLength:
		return countryCode + digits
	}
	return digits
}

// humanizeSendError translates known-unstable engine failures into messages
// a caller can act on. The raw engine error never reaches the caller.
func humanizeSendError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "markedUnread"):
		return errors.New("whatsapp session sync issue: please log out and scan the QR code again")
	case msg == "t" || errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timed out"):
		return errors.New("whatsapp session timeout: please retry, or log out and reconnect")
	}
	return fmt.Errorf("failed to send whatsapp message: %s", msg)
}
