package constants

import "time"

// Connection lifecycle
const (
	ConnectTimeout = 20 * time.Second
	ReconnectDelay = 3 * time.Second
	MaxReconnects  = 5
	HardResetDelay = 2 * time.Second
	LogoutTimeout  = 10 * time.Second
)

// Credential storage
const (
	CredentialsKey          = "creds"
	StoreKeyPrefix          = "wagate:session:"
	AppStateSyncKeyCategory = "app-state-sync-key"
	MaxRegistrationID       = 16380
)

// Message addressing
const (
	DefaultCountryCode   = "92"
	DefaultAddressSuffix = "s.whatsapp.net"
	LocalNumberLength    = 10
	DefaultPushName      = "WhatsApp User"
	DefaultPlatform      = "wagate"
)

// Bridge transport
const (
	DefaultBridgeURL   = "ws://localhost:3500/engine"
	WSBufferSize       = 131072 // 128KB WebSocket buffer
	WSHandshakeTimeout = 10 * time.Second
	MaxWSMessageSize   = 4 * 1024 * 1024
	RPCTimeout         = 30 * time.Second
)

// Yamux session tuning
const (
	YamuxMaxStreamWindowSize = 1024 * 1024
	YamuxAcceptBacklog       = 64
	YamuxEnableKeepAlive     = true
	YamuxKeepAliveInterval   = 30 * time.Second
)

// Stream type bytes on the bridge session
const (
	StreamTypeEvents byte = 0x1
	StreamTypeRPC    byte = 0x2
	StreamTypeKeys   byte = 0x3
)

// API endpoints
const (
	EndpointInit   = "/api/whatsapp/init"
	EndpointStatus = "/api/whatsapp/status"
	EndpointSend   = "/api/whatsapp/send"
	EndpointLogout = "/api/whatsapp/logout"
	EndpointReset  = "/api/whatsapp/reset"
)

// HTTP server
const (
	DefaultPort     = "8080"
	ShutdownTimeout = 5 * time.Second
)

// Messages
const (
	MsgInvalidJSON      = "Invalid JSON"
	MsgMethodNotAllowed = "Method not allowed"
	MsgMissingNumber    = "Recipient number is required"
	MsgMissingMessage   = "Message body is required"
)
