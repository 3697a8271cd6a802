// Package credentials serves the customer-facing credential endpoints.
//
// Every route takes an optional audience as a query parameter (or, for the
// form-data POST, in the body): a single value or a comma-separated list.
package credentials

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"Fedgate/internal/api/handlers"
	"Fedgate/internal/api/middleware"
	"Fedgate/internal/api/request"
	"Fedgate/internal/core/apperr"
	"Fedgate/internal/core/credentials"
	"Fedgate/internal/solid/webid"
)

// Gateway is implemented by *credentials.Service.
type Gateway interface {
	Store(ctx context.Context, customerID string, credential any, audience string) (json.RawMessage, error)
	Retrieve(ctx context.Context, customerID string, opts credentials.RetrieveOptions) ([]credentials.Credential, error)
	FormData(ctx context.Context, customerID string, audience webid.Audience) (map[string]any, error)
	GetByID(ctx context.Context, customerID, credentialID, audience string) credentials.Credential
	StoreFormData(ctx context.Context, customerID string, formData map[string]any, audience string) (*credentials.FormDataResult, error)
}

type Handler struct {
	gateway Gateway
}

func NewHandler(gateway Gateway) *Handler {
	return &Handler{gateway: gateway}
}

// HandleList lists credentials
// GET /credentials?type=&audience=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	creds, err := h.gateway.Retrieve(r.Context(), middleware.GetCustomerID(r), credentials.RetrieveOptions{
		Type:     q.Get("type"),
		Audience: webid.ParseAudience(q.Get("audience")),
	})
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}
	if creds == nil {
		creds = []credentials.Credential{}
	}
	handlers.WriteJSON(w, http.StatusOK, creds)
}

type storeResponse struct {
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// HandleStore stores the request body as a credential
// POST /credentials?audience=
func (h *Handler) HandleStore(w http.ResponseWriter, r *http.Request) {
	credential, err := request.DecodeObject(w, r)
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}

	audience, err := singleAudience(r.URL.Query().Get("audience"))
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}

	result, err := h.gateway.Store(r.Context(), middleware.GetCustomerID(r), credential, audience)
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, storeResponse{Message: "Credential stored successfully", Result: result})
}

// HandleGet fetches one credential
// GET /credentials/{id}?audience=
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireParam("id", chi.URLParam(r, "id"))
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}
	audience, err := singleAudience(r.URL.Query().Get("audience"))
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}

	cred := h.gateway.GetByID(r.Context(), middleware.GetCustomerID(r), id, audience)
	if cred == nil {
		handlers.WriteError(w, http.StatusNotFound, "CredentialNotFound", "Credential not found")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, cred)
}

// HandleGetFormData returns the newest saved form data
// GET /credentials/form-data?audience=
func (h *Handler) HandleGetFormData(w http.ResponseWriter, r *http.Request) {
	data, err := h.gateway.FormData(r.Context(), middleware.GetCustomerID(r), webid.ParseAudience(r.URL.Query().Get("audience")))
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}
	if data == nil {
		handlers.WriteError(w, http.StatusNotFound, "FormDataNotFound", "No form data found")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, data)
}

type storeFormDataRequest struct {
	FormData map[string]any `json:"formData" validate:"required"`
	Audience string         `json:"audience,omitempty"`
}

type storeFormDataResponse struct {
	Message      string          `json:"message"`
	CredentialID string          `json:"credentialId"`
	Result       json.RawMessage `json:"result"`
}

// HandleStoreFormData saves form data as a FormDataCredential
// POST /credentials/form-data
//
// Body: { "formData": {...}, "audience"?: "..." }
func (h *Handler) HandleStoreFormData(w http.ResponseWriter, r *http.Request) {
	var req storeFormDataRequest
	if err := request.Decode(w, r, &req); err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}
	if req.Audience == "" {
		req.Audience = r.URL.Query().Get("audience")
	}
	audience, err := singleAudience(req.Audience)
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}

	res, err := h.gateway.StoreFormData(r.Context(), middleware.GetCustomerID(r), req.FormData, audience)
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, storeFormDataResponse{
		Message:      "Form data stored successfully as a verifiable credential",
		CredentialID: res.CredentialID,
		Result:       res.Result,
	})
}

// singleAudience rejects lists where a write or single read can only target one store.
func singleAudience(raw string) (string, error) {
	aud := webid.ParseAudience(raw)
	if aud.IsMulti() {
		return "", apperr.Validation("audience must be a single value here")
	}
	return aud.First(), nil
}
