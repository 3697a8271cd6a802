package auth

import (
	"net/http"

	"Fedgate/internal/api/handlers"
	"Fedgate/internal/api/request"
	"Fedgate/internal/core/apperr"
	"Fedgate/internal/solid/oidc"
)

type tokenRequest struct {
	GrantType    string `json:"grant_type" validate:"required,oneof=authorization_code refresh_token"`
	Code         string `json:"code" validate:"required_if=GrantType authorization_code"`
	RefreshToken string `json:"refresh_token" validate:"required_if=GrantType refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// HandleToken proxies a token grant to the provider with the client credentials
// POST /auth/token
//
// Body: { "grant_type": "authorization_code" | "refresh_token", "code"?: "...", "refresh_token"?: "..." }
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := request.Decode(w, r, &req); err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}

	var (
		tokens *oidc.TokenSet
		err    error
	)
	switch req.GrantType {
	case "authorization_code":
		tokens, err = h.provider.ExchangeCode(r.Context(), req.Code)
	case "refresh_token":
		tokens, err = h.provider.Refresh(r.Context(), req.RefreshToken)
	default:
		err = apperr.Validation("unsupported grant_type %q", req.GrantType)
	}
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		IDToken:      tokens.IDToken,
		TokenType:    tokens.TokenType,
		ExpiresIn:    tokens.ExpiresIn,
	})
}
