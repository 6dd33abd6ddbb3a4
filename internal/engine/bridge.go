package engine

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/yamux"

	"wagate/internal/constants"
	"wagate/internal/logger"
)

// Wire frames exchanged with the engine sidecar. The sidecar owns the chat
// network's wire protocol; this side only moves JSON frames over yamux
// streams. The first byte of every stream selects its role: the sidecar
// pushes lifecycle events and credential-key requests, the gateway opens RPC
// streams for send/resolve/logout.
type eventFrame struct {
	Type        string          `json:"type"`
	Raw         string          `json:"raw,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Identity    *Identity       `json:"identity,omitempty"`
	Credentials json.RawMessage `json:"credentials,omitempty"`
}

type rpcRequest struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type keysRequest struct {
	Op       string                                `json:"op"`
	Category string                                `json:"category,omitempty"`
	IDs      []string                              `json:"ids,omitempty"`
	Updates  map[string]map[string]json.RawMessage `json:"updates,omitempty"`
}

type keysResponse struct {
	Data  map[string]json.RawMessage `json:"data,omitempty"`
	Error string                     `json:"error,omitempty"`
}

type configureParams struct {
	Platform    string          `json:"platform"`
	Credentials json.RawMessage `json:"credentials"`
}

type sendParams struct {
	Address  string `json:"address"`
	Text     string `json:"text"`
	MarkSeen bool   `json:"markSeen"`
}

type resolveParams struct {
	Number string `json:"number"`
}

type resolveResult struct {
	JID    string `json:"jid"`
	Exists bool   `json:"exists"`
}

// BridgeEngine drives a protocol-engine sidecar over a single websocket
// multiplexed with yamux.
type BridgeEngine struct {
	conn    *websocket.Conn
	session *yamux.Session
	cfg     Config
	log     *logger.Logger
	events  chan Event

	mu         sync.Mutex
	terminated bool
}

// Dial connects to the engine sidecar, hands it the loaded credentials, and
// starts consuming its event stream.
func Dial(cfg Config) (Engine, error) {
	wsURL := cfg.BridgeURL
	if wsURL == "" {
		wsURL = constants.DefaultBridgeURL
	}

	handshakeTimeout := cfg.ConnectTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = constants.WSHandshakeTimeout
	}

	dialer := &websocket.Dialer{
		ReadBufferSize:    constants.WSBufferSize,
		WriteBufferSize:   constants.WSBufferSize,
		EnableCompression: false,
		HandshakeTimeout:  handshakeTimeout,
	}

	if cfg.SkipTLSVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	conn, resp, err := dialer.Dial(wsURL, nil)
	if err != nil {
		errMsg := "failed to connect to engine bridge"
		if resp != nil && resp.StatusCode == 404 {
			errMsg = "engine bridge not found (is the sidecar running?)"
		} else if resp != nil {
			errMsg = fmt.Sprintf("engine bridge returned %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	conn.SetReadLimit(int64(constants.MaxWSMessageSize))

	wrapper := &wsConnWrapper{conn: conn, log: cfg.Log}

	session, err := yamux.Client(wrapper, yamuxConfig())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create yamux client: %w", err)
	}

	e := &BridgeEngine{
		conn:    conn,
		session: session,
		cfg:     cfg,
		log:     cfg.Log,
		events:  make(chan Event, 16),
	}

	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()
	if err := e.call(ctx, "configure", configureParams{
		Platform:    e.platform(),
		Credentials: e.credentialsBlob(),
	}, nil); err != nil {
		session.Close()
		conn.Close()
		return nil, fmt.Errorf("engine configuration failed: %w", err)
	}

	if e.log != nil {
		e.log.LogEvent("bridge", "engine bridge session established")
	}

	go e.acceptLoop()

	return e, nil
}

func yamuxConfig() *yamux.Config {
	config := yamux.DefaultConfig()
	config.MaxStreamWindowSize = constants.YamuxMaxStreamWindowSize
	config.AcceptBacklog = constants.YamuxAcceptBacklog
	config.EnableKeepAlive = constants.YamuxEnableKeepAlive
	config.KeepAliveInterval = constants.YamuxKeepAliveInterval
	return config
}

func (e *BridgeEngine) platform() string {
	if e.cfg.Platform != "" {
		return e.cfg.Platform
	}
	return constants.DefaultPlatform
}

func (e *BridgeEngine) credentialsBlob() json.RawMessage {
	if e.cfg.Auth == nil {
		return nil
	}
	blob, err := json.Marshal(e.cfg.Auth.Credentials())
	if err != nil {
		return nil
	}
	return blob
}

func (e *BridgeEngine) Events() <-chan Event {
	return e.events
}

func (e *BridgeEngine) Send(ctx context.Context, address, text string, opts SendOptions) (json.RawMessage, error) {
	var result json.RawMessage
	err := e.call(ctx, "send", sendParams{
		Address:  address,
		Text:     text,
		MarkSeen: opts.MarkSeen,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *BridgeEngine) ResolveAddress(ctx context.Context, number string) (string, error) {
	var res resolveResult
	if err := e.call(ctx, "resolve", resolveParams{Number: number}, &res); err != nil {
		return "", err
	}
	if !res.Exists || res.JID == "" {
		return "", ErrUnregistered
	}
	return res.JID, nil
}

func (e *BridgeEngine) Logout(ctx context.Context) error {
	return e.call(ctx, "logout", nil, nil)
}

// Terminate tears the bridge down locally. It does not emit a closed event;
// callers that terminate already own the cleanup.
func (e *BridgeEngine) Terminate(reason error) {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return
	}
	e.terminated = true
	e.mu.Unlock()

	if e.log != nil {
		if reason != nil {
			e.log.LogEvent("bridge", "terminating: "+reason.Error())
		} else {
			e.log.LogEvent("bridge", "terminating")
		}
	}

	e.session.Close()
	e.conn.Close()
}

func (e *BridgeEngine) isTerminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated
}

// call runs one RPC over a fresh stream: type byte, request frame, response
// frame.
func (e *BridgeEngine) call(ctx context.Context, method string, params, result interface{}) error {
	stream, err := e.session.OpenStream()
	if err != nil {
		return fmt.Errorf("engine bridge unavailable: %w", err)
	}
	defer stream.Close()

	deadline := time.Now().Add(constants.RPCTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	stream.SetDeadline(deadline)

	if _, err := stream.Write([]byte{constants.StreamTypeRPC}); err != nil {
		return err
	}

	var rawParams json.RawMessage
	if params != nil {
		rawParams, err = json.Marshal(params)
		if err != nil {
			return err
		}
	}

	req := rpcRequest{ID: uuid.New().String(), Method: method, Params: rawParams}
	if err := json.NewEncoder(stream).Encode(req); err != nil {
		return fmt.Errorf("failed to send %s request: %w", method, err)
	}

	var resp rpcResponse
	if err := json.NewDecoder(stream).Decode(&resp); err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("malformed %s response: %w", method, err)
		}
	}
	return nil
}

func (e *BridgeEngine) acceptLoop() {
	for {
		stream, err := e.session.AcceptStream()
		if err != nil {
			if !e.isTerminated() {
				e.emit(Event{Type: EventClosed, Reason: CloseConnectionLost})
			}
			return
		}
		go e.handleStream(stream)
	}
}

func (e *BridgeEngine) handleStream(stream net.Conn) {
	typeBuf := make([]byte, 1)
	if _, err := io.ReadFull(stream, typeBuf); err != nil {
		stream.Close()
		return
	}

	switch typeBuf[0] {
	case constants.StreamTypeEvents:
		e.readEvents(stream)
	case constants.StreamTypeKeys:
		e.serveKeys(stream)
	default:
		stream.Close()
	}
}

func (e *BridgeEngine) readEvents(stream net.Conn) {
	defer stream.Close()

	dec := json.NewDecoder(stream)
	for {
		var frame eventFrame
		if err := dec.Decode(&frame); err != nil {
			return
		}

		switch frame.Type {
		case "qr":
			e.emit(Event{Type: EventPairingChallenge, Raw: frame.Raw})
		case "auth":
			e.emit(Event{Type: EventAuthenticated})
		case "open":
			e.emit(Event{Type: EventOpened, Identity: frame.Identity})
		case "close":
			e.emit(Event{Type: EventClosed, Reason: closeReason(frame.Reason)})
		case "creds":
			if e.cfg.Auth != nil && len(frame.Credentials) > 0 {
				if err := e.cfg.Auth.ApplyCredentials(frame.Credentials); err != nil {
					if e.log != nil {
						e.log.LogError("bridge", err)
					}
					continue
				}
			}
			e.emit(Event{Type: EventCredentialsChanged})
		}
	}
}

// serveKeys answers the sidecar's credential-key requests out of the loaded
// auth state.
func (e *BridgeEngine) serveKeys(stream net.Conn) {
	defer stream.Close()

	dec := json.NewDecoder(stream)
	enc := json.NewEncoder(stream)
	for {
		var req keysRequest
		if err := dec.Decode(&req); err != nil {
			return
		}

		var resp keysResponse
		if e.cfg.Auth == nil {
			resp.Error = "auth state not loaded"
		} else {
			switch req.Op {
			case "get":
				data, err := e.cfg.Auth.Keys().Get(context.Background(), req.Category, req.IDs)
				if err != nil {
					resp.Error = err.Error()
				} else {
					resp.Data = data
				}
			case "set":
				if err := e.cfg.Auth.Keys().Set(context.Background(), req.Updates); err != nil {
					resp.Error = err.Error()
				}
			default:
				resp.Error = "unknown op: " + req.Op
			}
		}

		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (e *BridgeEngine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		if e.log != nil {
			e.log.LogEvent("bridge", "event buffer full, dropping event")
		}
	}
}

func closeReason(reason string) CloseReason {
	if reason == string(CloseLoggedOut) {
		return CloseLoggedOut
	}
	if reason == "" {
		return CloseConnectionLost
	}
	return CloseReason(reason)
}
