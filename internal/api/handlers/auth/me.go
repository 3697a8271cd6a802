package auth

import (
	"context"
	"net/http"

	"Fedgate/internal/api/handlers"
	"Fedgate/internal/api/middleware"
	"Fedgate/internal/core/users"
)

// UserReader is the part of users.UserService the profile endpoint reads.
type UserReader interface {
	GetByCustomerID(ctx context.Context, customerID string) (*users.User, error)
	Aliases(ctx context.Context, customerID string) ([]*users.WebIDAlias, error)
}

type ProfileHandler struct {
	users UserReader
}

func NewProfileHandler(userReader UserReader) *ProfileHandler {
	return &ProfileHandler{users: userReader}
}

type profileResponse struct {
	*users.User
	Aliases []*users.WebIDAlias `json:"webIdAliases"`
}

// HandleMe returns the logged-in user with the WebID aliases presented so far
// GET /auth/me
func (h *ProfileHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	customerID := middleware.GetCustomerID(r)

	user, err := h.users.GetByCustomerID(r.Context(), customerID)
	if users.IsNotFound(err) {
		handlers.WriteError(w, http.StatusNotFound, "UserNotFound", "No user for this session")
		return
	}
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}

	aliases, err := h.users.Aliases(r.Context(), customerID)
	if err != nil {
		handlers.HandleServiceError(w, r, err)
		return
	}
	if aliases == nil {
		aliases = []*users.WebIDAlias{}
	}

	handlers.WriteJSON(w, http.StatusOK, profileResponse{User: user, Aliases: aliases})
}
