package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"wagate/internal/constants"
	"wagate/internal/gateway"
	"wagate/internal/types"
)

func (s *Server) HandleInit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	// Initialization is asynchronous; callers poll the status endpoint.
	go s.Manager.Initialize(context.Background())

	writeJSON(w, http.StatusAccepted, types.ActionResponse{
		Success: true,
		Status:  string(s.Manager.Status().Status),
	})
}

func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	snap := s.Manager.Status()
	resp := types.StatusResponse{
		Status: string(snap.Status),
		QRCode: snap.QRCode,
	}
	if snap.Identity != nil {
		resp.Identity = &types.IdentityInfo{
			JID:      snap.Identity.JID,
			PushName: snap.Identity.PushName,
			Platform: snap.Identity.Platform,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) HandleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	var req types.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, constants.MsgInvalidJSON, http.StatusBadRequest)
		return
	}
	if req.Number == "" {
		http.Error(w, constants.MsgMissingNumber, http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, constants.MsgMissingMessage, http.StatusBadRequest)
		return
	}

	resp, err := s.Manager.Send(r.Context(), req.Number, req.Message)
	if err != nil {
		status := http.StatusBadGateway
		var notReady *gateway.NotReadyError
		if errors.Is(err, gateway.ErrNotInitialized) || errors.As(err, &notReady) {
			status = http.StatusConflict
		}
		writeJSON(w, status, types.SendResponse{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, types.SendResponse{Success: true, Response: resp})
}

func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	s.Manager.Logout(r.Context())
	writeJSON(w, http.StatusOK, types.ActionResponse{Success: true})
}

func (s *Server) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	s.Manager.HardReset(r.Context())
	writeJSON(w, http.StatusAccepted, types.ActionResponse{Success: true})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
