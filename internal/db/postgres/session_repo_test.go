package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Fedgate/internal/core/sessions"
)

func TestSessionRepo_SaveFindDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	customerID := uuid.NewString()
	t.Cleanup(func() { _, _ = db.Exec("DELETE FROM pds_sessions WHERE customer_id = $1", customerID) })

	created := time.Now().UTC().Truncate(time.Microsecond)
	first, err := repo.Save(ctx, &sessions.Session{
		CustomerID:   customerID,
		PDSProvider:  "pods.example",
		WebID:        "https://pods.example/alice#me",
		AccessToken:  "sealed-access",
		RefreshToken: "sealed-refresh",
		ExpiresAt:    created.Add(time.Hour),
		UpdatedAt:    created,
	})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	refreshed := created.Add(time.Minute)
	second, err := repo.Save(ctx, &sessions.Session{
		CustomerID:   customerID,
		PDSProvider:  "pods.example",
		WebID:        "https://pods.example/alice#me",
		AccessToken:  "sealed-access-2",
		RefreshToken: "sealed-refresh-2",
		ExpiresAt:    refreshed.Add(time.Hour),
		UpdatedAt:    refreshed,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

	found, err := repo.FindActive(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, "sealed-access-2", found.AccessToken)

	require.NoError(t, repo.Delete(ctx, customerID))
	_, err = repo.FindActive(ctx, customerID)
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, customerID), sessions.ErrSessionNotFound)
}

func TestSessionRepo_FindActivePicksMostRecent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	customerID := uuid.NewString()
	t.Cleanup(func() { _, _ = db.Exec("DELETE FROM pds_sessions WHERE customer_id = $1", customerID) })

	base := time.Now().UTC()
	for i, provider := range []string{"a.example", "b.example"} {
		_, err := repo.Save(ctx, &sessions.Session{
			CustomerID:  customerID,
			PDSProvider: provider,
			WebID:       "https://" + provider + "/me",
			AccessToken: "t",
			ExpiresAt:   base.Add(time.Hour),
			UpdatedAt:   base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	found, err := repo.FindActive(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, "b.example", found.PDSProvider)
}

func TestSessionRepo_TokenEndpointRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	customerID := uuid.NewString()
	t.Cleanup(func() { _, _ = db.Exec("DELETE FROM pds_sessions WHERE customer_id = $1", customerID) })

	now := time.Now().UTC()
	saved, err := repo.Save(ctx, &sessions.Session{
		CustomerID:    customerID,
		PDSProvider:   "pods.example",
		WebID:         "https://pods.example/alice#me",
		TokenEndpoint: "https://pods.example/oauth/token",
		AccessToken:   "sealed",
		ExpiresAt:     now.Add(time.Hour),
		UpdatedAt:     now,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pods.example/oauth/token", saved.TokenEndpoint)

	found, err := repo.FindActive(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, "https://pods.example/oauth/token", found.TokenEndpoint)
}
