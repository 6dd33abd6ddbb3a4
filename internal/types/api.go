package types

import "encoding/json"

type SendRequest struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

type SendResponse struct {
	Success  bool            `json:"success"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type StatusResponse struct {
	Status   string        `json:"status"`
	QRCode   string        `json:"qrCodeUrl,omitempty"`
	Identity *IdentityInfo `json:"info,omitempty"`
}

type IdentityInfo struct {
	JID      string `json:"wid"`
	PushName string `json:"pushname"`
	Platform string `json:"platform"`
}

type ActionResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`
}
