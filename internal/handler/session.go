package handler

import (
	"net/http"
	"time"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/hostapi"
	"github.com/usedplus/core/internal/middleware"
)

// SessionHandler issues farm-session tokens against the harness's host
// adapter, binding the wire protocol's connId to the authenticated FarmId
// for the lifetime of the token (see handler.connIDFor).
type SessionHandler struct {
	Host *hostapi.FakeHost
	Auth *middleware.FarmAuth
	TTL  time.Duration
}

type sessionRequest struct {
	FarmID domain.FarmId `json:"farmId" validate:"required"`
}

type sessionResponse struct {
	Token string `json:"token"`
}

// Create handles POST /api/v1/session: binds the connection and returns a
// bearer token for subsequent requests, standing in for the host game's
// own connection handshake.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body sessionRequest
	if err := decodeJSONOnly(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	if !h.Host.FarmExists(body.FarmID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown farm"})
		return
	}

	h.Host.BindConnection(connIDFor(body.FarmID), body.FarmID)

	token, err := h.Auth.Sign(body.FarmID, h.TTL)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token})
}
