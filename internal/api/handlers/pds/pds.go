// Package pds serves the endpoints PDS providers and operators call: DID
// challenges, service registration and registration status.
package pds

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"Fedgate/internal/api/handlers"
	"Fedgate/internal/api/request"
	"Fedgate/internal/core/challenges"
	"Fedgate/internal/core/registrations"
)

// ChallengeResponder is implemented by *challenges.Service.
type ChallengeResponder interface {
	Respond(ctx context.Context, req challenges.Request) (*challenges.Response, error)
	CheckVerificationStatus(ctx context.Context, registrationID, pdsURL string) (map[string]any, error)
}

// Registrar is implemented by *registrations.Service.
type Registrar interface {
	Register(ctx context.Context, pdsURL string) (*registrations.Registration, error)
}

type Handler struct {
	challenges ChallengeResponder
	registrar  Registrar
}

func NewHandler(responder ChallengeResponder, registrar Registrar) *Handler {
	return &Handler{challenges: responder, registrar: registrar}
}

// HandleDIDChallenge signs a PDS ownership challenge
// POST /pds/did-challenge
//
// Body: { "registrationId": "...", "challenge": "..." | {...}, "timestamp"?: ..., "pdsUrl"?: "..." }
func (h *Handler) HandleDIDChallenge(w http.ResponseWriter, r *http.Request) {
	var req challenges.Request
	if err := request.Decode(w, r, &req); err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}

	resp, err := h.challenges.Respond(r.Context(), req)
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, resp)
}

type registerRequest struct {
	PDSURL string `json:"pdsUrl" validate:"required,url"`
}

// HandleRegister registers this service with a PDS provider
// POST /pds/register
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := request.Decode(w, r, &req); err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}

	reg, err := h.registrar.Register(r.Context(), req.PDSURL)
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, reg)
}

// HandleStatus fetches and records the registration status from the PDS
// GET /pds/register/{id}/status?pdsUrl=
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireParam("id", chi.URLParam(r, "id"))
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}

	status, err := h.challenges.CheckVerificationStatus(r.Context(), id, r.URL.Query().Get("pdsUrl"))
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, status)
}
