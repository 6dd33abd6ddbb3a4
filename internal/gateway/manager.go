package gateway

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"wagate/internal/authstate"
	"wagate/internal/constants"
	"wagate/internal/credstore"
	"wagate/internal/engine"
	"wagate/internal/logger"
	"wagate/internal/qr"
)

// Manager owns the single logical connection to the chat network and drives
// it through connect → authenticate → ready → disconnect → reconnect. All
// transitions happen under m.mu; every asynchronous completion (dial, QR
// render, reconnect timer) is stamped with a generation and discarded when it
// arrives after the session it belonged to was replaced.
type Manager struct {
	store credstore.StoreInterface
	dial  engine.Dialer
	cfg   engine.Config
	log   *logger.Logger

	reconnectDelay time.Duration
	hardResetDelay time.Duration

	mu             sync.Mutex
	handle         engine.Engine
	status         Status
	countryCode    string
	addrSuffix     string
	qrDataURL      string
	identity       *engine.Identity
	retries        int
	gen            uint64
	reconnectTimer *time.Timer
}

func NewManager(store credstore.StoreInterface, dial engine.Dialer, cfg engine.Config, lg *logger.Logger) *Manager {
	return &Manager{
		store:          store,
		dial:           dial,
		cfg:            cfg,
		log:            lg,
		countryCode:    constants.DefaultCountryCode,
		addrSuffix:     constants.DefaultAddressSuffix,
		reconnectDelay: constants.ReconnectDelay,
		hardResetDelay: constants.HardResetDelay,
		status:         StatusDisconnected,
	}
}

// SetAddressing overrides the country-code heuristic and address suffix.
func (m *Manager) SetAddressing(countryCode, suffix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if countryCode != "" {
		m.countryCode = countryCode
	}
	if suffix != "" {
		m.addrSuffix = suffix
	}
}

// Initialize opens the connection. It is a no-op while a handle exists, does
// not block on the handshake, and never returns an error: lifecycle failures
// reset the status to DISCONNECTED and are observable through Status().
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	if m.handle != nil {
		m.mu.Unlock()
		return
	}
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	log.Println("📲 Initializing WhatsApp client...")
	m.logEvent("initializing")

	auth, err := authstate.Load(ctx, m.store)
	if err != nil {
		log.Printf("❌ Error loading session state: %v", err)
		m.failInit(gen, err)
		return
	}

	cfg := m.cfg
	cfg.Auth = auth
	cfg.Log = m.log

	handle, err := m.dial(cfg)
	if err != nil {
		log.Printf("❌ Error initializing WhatsApp: %v", err)
		m.failInit(gen, err)
		return
	}

	m.mu.Lock()
	if gen != m.gen || m.handle != nil {
		// A logout, hard reset, or competing initialize superseded this
		// dial while it was in flight.
		m.mu.Unlock()
		handle.Terminate(errors.New("superseded by a newer session"))
		return
	}
	m.handle = handle
	m.mu.Unlock()

	go m.eventLoop(handle, auth, gen)
}

func (m *Manager) failInit(gen uint64, err error) {
	m.logError(err)
	m.mu.Lock()
	if gen == m.gen {
		m.status = StatusDisconnected
	}
	m.mu.Unlock()
}

func (m *Manager) eventLoop(h engine.Engine, auth *authstate.State, gen uint64) {
	for ev := range h.Events() {
		switch ev.Type {
		case engine.EventCredentialsChanged:
			// Persistence must not block event processing.
			go func() {
				if err := auth.SaveCredentials(context.Background()); err != nil {
					log.Printf("⚠️  Failed to persist credentials: %v", err)
					m.logError(err)
				}
			}()

		case engine.EventPairingChallenge:
			m.mu.Lock()
			if gen != m.gen {
				m.mu.Unlock()
				return
			}
			m.status = StatusQRPending
			m.qrDataURL = ""
			m.mu.Unlock()

			log.Println("📱 WhatsApp QR code received")
			m.logStatus(StatusQRPending)
			go m.renderQR(ev.Raw, gen)

		case engine.EventAuthenticated:
			m.mu.Lock()
			if gen != m.gen {
				m.mu.Unlock()
				return
			}
			m.status = StatusAuthenticated
			m.mu.Unlock()

			log.Println("🔐 WhatsApp authenticated")
			m.logStatus(StatusAuthenticated)

		case engine.EventOpened:
			m.mu.Lock()
			if gen != m.gen {
				m.mu.Unlock()
				return
			}
			m.status = StatusConnected
			m.qrDataURL = ""
			m.retries = 0
			m.identity = ev.Identity
			if m.identity != nil && m.identity.PushName == "" {
				m.identity.PushName = constants.DefaultPushName
			}
			m.mu.Unlock()

			log.Println("✅ WhatsApp client is ready")
			m.logStatus(StatusConnected)

		case engine.EventClosed:
			m.handleClose(ev.Reason, gen)
			return
		}
	}

	// Event channel closed without a close event: the engine went away.
	m.handleClose(engine.CloseConnectionLost, gen)
}

func (m *Manager) handleClose(reason engine.CloseReason, gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}

	handle := m.handle
	m.handle = nil
	m.status = StatusDisconnected
	m.qrDataURL = ""
	m.identity = nil

	reconnect := false
	if reason == engine.CloseLoggedOut {
		m.retries = 0
	} else if m.retries < constants.MaxReconnects {
		m.retries++
		reconnect = true
		m.scheduleReconnectLocked(gen)
	}
	m.mu.Unlock()

	// A close event does not tear the engine's transport down on its own;
	// terminate the old handle so a reconnect never leaves a stale session
	// serving credential requests behind the new one.
	if handle != nil {
		handle.Terminate(nil)
	}

	log.Printf("🔌 WhatsApp disconnected: %s", reason)
	m.logStatus(StatusDisconnected)

	if reason == engine.CloseLoggedOut {
		log.Println("🚪 Logged out, waiting for explicit re-initialization")
		return
	}
	if !reconnect {
		log.Printf("🛑 Reconnect attempts exhausted (%d), manual initialization required", constants.MaxReconnects)
		m.logEvent("reconnect attempts exhausted, manual intervention required")
	}
}

// scheduleReconnectLocked arms the backoff timer. A previously pending timer
// is stopped first so racing close events cannot stack reconnects.
func (m *Manager) scheduleReconnectLocked(gen uint64) {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
	}

	attempt := m.retries
	m.reconnectTimer = time.AfterFunc(m.reconnectDelay, func() {
		m.mu.Lock()
		stale := gen != m.gen || m.handle != nil
		m.mu.Unlock()
		if stale {
			return
		}
		log.Printf("🔄 Reconnecting (attempt %d/%d)...", attempt, constants.MaxReconnects)
		m.Initialize(context.Background())
	})
}

func (m *Manager) renderQR(raw string, gen uint64) {
	dataURL, err := qr.DataURL(raw)
	if err != nil {
		// The challenge is still pending network-side; the status stays
		// QR_PENDING with no image.
		log.Printf("❌ Error generating QR code: %v", err)
		m.logError(err)
		return
	}

	m.mu.Lock()
	if gen == m.gen && m.status == StatusQRPending {
		m.qrDataURL = dataURL
	}
	m.mu.Unlock()
}

// Logout requests a protocol-level logout and unconditionally clears local
// state. It always succeeds from the caller's perspective: the local session
// must never be left believing it is connected.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	handle := m.handle
	m.gen++
	m.handle = nil
	m.status = StatusDisconnected
	m.qrDataURL = ""
	m.identity = nil
	m.retries = 0
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.mu.Unlock()

	if handle != nil {
		lctx, cancel := context.WithTimeout(ctx, constants.LogoutTimeout)
		defer cancel()
		if err := handle.Logout(lctx); err != nil {
			log.Printf("⚠️  Network-side logout failed: %v", err)
			m.logError(err)
		}
		handle.Terminate(nil)
	}

	log.Println("🚪 WhatsApp logged out")
	m.logStatus(StatusDisconnected)
	return nil
}

// HardReset wipes all persisted session state and forces re-pairing from
// scratch. The handle is terminated with a synthetic local error so the
// close never enters the reconnect path, and re-initialization is delayed to
// let the wipe reach durable storage before a fresh credential set is
// generated.
func (m *Manager) HardReset(ctx context.Context) error {
	m.mu.Lock()
	handle := m.handle
	m.gen++
	gen := m.gen
	m.handle = nil
	m.status = StatusDisconnected
	m.qrDataURL = ""
	m.identity = nil
	m.retries = 0
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.mu.Unlock()

	if handle != nil {
		handle.Terminate(errors.New("hard reset"))
	}

	if err := m.store.WipeAll(ctx); err != nil {
		log.Printf("⚠️  Failed to wipe persisted session: %v", err)
		m.logError(err)
	}

	log.Printf("🧹 Session wiped, re-initializing in %s", m.hardResetDelay)
	m.logEvent("hard reset")

	time.AfterFunc(m.hardResetDelay, func() {
		m.mu.Lock()
		stale := gen != m.gen
		m.mu.Unlock()
		if stale {
			return
		}
		m.Initialize(context.Background())
	})

	return nil
}

// Close tears the connection down locally without a protocol-level logout,
// so the persisted credentials survive a process restart.
func (m *Manager) Close() {
	m.mu.Lock()
	handle := m.handle
	m.gen++
	m.handle = nil
	m.status = StatusDisconnected
	m.qrDataURL = ""
	m.identity = nil
	m.retries = 0
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.mu.Unlock()

	if handle != nil {
		handle.Terminate(nil)
	}
}

func (m *Manager) logEvent(message string) {
	if m.log != nil {
		m.log.LogEvent("gateway", message)
	}
}

func (m *Manager) logStatus(status Status) {
	if m.log != nil {
		m.log.LogStatus("gateway", string(status))
	}
}

func (m *Manager) logError(err error) {
	if m.log != nil {
		m.log.LogError("gateway", err)
	}
}
