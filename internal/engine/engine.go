package engine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"wagate/internal/authstate"
	"wagate/internal/logger"
)

// CloseReason classifies a connection-closed event. LoggedOut is the one
// terminal reason: it must never trigger the reconnect path.
type CloseReason string

const (
	CloseLoggedOut      CloseReason = "loggedOut"
	CloseConnectionLost CloseReason = "connectionLost"
)

type EventType int

const (
	EventPairingChallenge EventType = iota
	EventAuthenticated
	EventOpened
	EventClosed
	EventCredentialsChanged
)

// Event is one entry on the engine's event stream. Raw is set for pairing
// challenges, Reason for closes, Identity for opens.
type Event struct {
	Type     EventType
	Raw      string
	Reason   CloseReason
	Identity *Identity
}

// Identity is the protocol-level self after a successful open.
type Identity struct {
	JID      string `json:"jid"`
	PushName string `json:"pushName"`
	Platform string `json:"platform"`
}

type SendOptions struct {
	MarkSeen bool `json:"markSeen"`
}

// ErrUnregistered reports that address resolution found the target number is
// not reachable on the network. Resolution is flaky, so callers fall back to
// manual address construction instead of failing the send.
var ErrUnregistered = errors.New("number is not registered on whatsapp")

// Engine is the opaque protocol capability: it emits lifecycle events and
// accepts sends. The events channel is closed when the engine goes away.
type Engine interface {
	Events() <-chan Event
	Send(ctx context.Context, address, text string, opts SendOptions) (json.RawMessage, error)
	ResolveAddress(ctx context.Context, number string) (string, error)
	Logout(ctx context.Context) error
	Terminate(reason error)
}

// Config is the bundle an engine is opened with.
type Config struct {
	BridgeURL      string
	ConnectTimeout time.Duration
	Platform       string
	SkipTLSVerify  bool
	Auth           *authstate.State
	Log            *logger.Logger
}

// Dialer opens a new engine handle. It is pluggable so the connection
// lifecycle can be exercised against a fake engine in tests.
type Dialer func(cfg Config) (Engine, error)
