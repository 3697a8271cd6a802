package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"Fedgate/internal/api/middleware"
	coreauth "Fedgate/internal/core/auth"
	"Fedgate/internal/core/users"
	"Fedgate/internal/solid/oidc"
)

const testSecret = "a-session-secret-that-is-long-enough-for-tests"

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) AuthorizationURL(state, scope string) (*oidc.AuthRequest, error) {
	args := m.Called(state, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oidc.AuthRequest), args.Error(1)
}

func (m *MockProvider) ExchangeCode(ctx context.Context, code string) (*oidc.TokenSet, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oidc.TokenSet), args.Error(1)
}

func (m *MockProvider) Refresh(ctx context.Context, refreshToken string) (*oidc.TokenSet, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oidc.TokenSet), args.Error(1)
}

type MockLogins struct {
	mock.Mock
}

func (m *MockLogins) CompleteLogin(ctx context.Context, code, expectedNonce string) (*coreauth.Login, error) {
	args := m.Called(ctx, code, expectedNonce)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coreauth.Login), args.Error(1)
}

type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) End(ctx context.Context, customerID string) error {
	return m.Called(ctx, customerID).Error(0)
}

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByCustomerID(ctx context.Context, customerID string) (*users.User, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockUsers) Aliases(ctx context.Context, customerID string) ([]*users.WebIDAlias, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*users.WebIDAlias), args.Error(1)
}

func newTestHandler(t *testing.T) (*Handler, *MockProvider, *MockLogins, *MockSessions) {
	t.Helper()
	cookies, err := middleware.NewCookieAuth(testSecret, false)
	require.NoError(t, err)
	provider, logins, sess := &MockProvider{}, &MockLogins{}, &MockSessions{}
	return NewHandler(provider, logins, sess, cookies), provider, logins, sess
}

// authorize runs the authorize-url step and returns the cookies it set.
func authorize(t *testing.T, h *Handler, provider *MockProvider) []*http.Cookie {
	t.Helper()
	provider.On("AuthorizationURL", "state-1", "").
		Return(&oidc.AuthRequest{URL: "https://idp.example/authorize?state=state-1", State: "state-1", Nonce: "nonce-1"}, nil).Once()

	rec := httptest.NewRecorder()
	h.HandleAuthorizeURL(rec, httptest.NewRequest(http.MethodGet, "/auth/authorize-url?state=state-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Result().Cookies()
}

func TestHandleAuthorizeURL(t *testing.T) {
	h, provider, _, _ := newTestHandler(t)
	cookies := authorize(t, h, provider)

	require.NotEmpty(t, cookies)
	assert.Equal(t, middleware.SessionName, cookies[0].Name)
}

func TestHandleAuthorizeURL_GeneratesState(t *testing.T) {
	h, provider, _, _ := newTestHandler(t)
	provider.On("AuthorizationURL", mock.MatchedBy(func(s string) bool { return s != "" }), "openid").
		Return(&oidc.AuthRequest{URL: "https://idp.example/authorize", State: "generated", Nonce: "n"}, nil)

	rec := httptest.NewRecorder()
	h.HandleAuthorizeURL(rec, httptest.NewRequest(http.MethodGet, "/auth/authorize-url?scope=openid", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"https://idp.example/authorize","state":"generated"}`, rec.Body.String())
}

func TestHandleCallback(t *testing.T) {
	h, provider, logins, _ := newTestHandler(t)
	cookies := authorize(t, h, provider)

	expires := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	logins.On("CompleteLogin", mock.Anything, "code-1", "nonce-1").Return(&coreauth.Login{
		User:      &users.User{CustomerID: "cust-1", Email: "ada@example.com", Name: "Ada", WebID: "https://pod.example/ada#me"},
		ExpiresAt: expires,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=code-1&state=state-1", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "cust-1", body["customerId"])
	assert.Equal(t, "https://pod.example/ada#me", body["webId"])
	assert.Equal(t, "2026-05-01T12:00:00Z", body["expiresAt"])
	logins.AssertExpectations(t)
}

func TestHandleCallback_StateMismatch(t *testing.T) {
	h, provider, logins, _ := newTestHandler(t)
	cookies := authorize(t, h, provider)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=code-1&state=forged", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "InvalidState")
	logins.AssertNotCalled(t, "CompleteLogin", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleCallback_NoPendingLogin(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=c&state=", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "InvalidState")
}

func TestHandleCallback_ProviderError(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?error=access_denied&error_description=nope", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "AuthorizationDenied")
	assert.Contains(t, rec.Body.String(), "access_denied: nope")
}

func TestHandleToken(t *testing.T) {
	h, provider, _, _ := newTestHandler(t)
	provider.On("ExchangeCode", mock.Anything, "code-1").
		Return(&oidc.TokenSet{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer", ExpiresIn: 3600}, nil)
	provider.On("Refresh", mock.Anything, "rt").
		Return(&oidc.TokenSet{AccessToken: "at2", TokenType: "Bearer", ExpiresIn: 3600}, nil)

	rec := httptest.NewRecorder()
	h.HandleToken(rec, httptest.NewRequest(http.MethodPost, "/auth/token",
		strings.NewReader(`{"grant_type":"authorization_code","code":"code-1"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.HandleToken(rec, httptest.NewRequest(http.MethodPost, "/auth/token",
		strings.NewReader(`{"grant_type":"refresh_token","refresh_token":"rt"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"access_token":"at2"`)
}

func TestHandleToken_Invalid(t *testing.T) {
	bodies := []string{
		`{"grant_type":"password"}`,
		`{"grant_type":"authorization_code"}`,
		`{"grant_type":"refresh_token"}`,
		`{}`,
	}
	for _, body := range bodies {
		h, provider, _, _ := newTestHandler(t)
		rec := httptest.NewRecorder()
		h.HandleToken(rec, httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		provider.AssertNotCalled(t, "ExchangeCode", mock.Anything, mock.Anything)
	}
}

func TestHandleLogout(t *testing.T) {
	h, _, _, sess := newTestHandler(t)
	sess.On("End", mock.Anything, "cust-1").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req = req.WithContext(middleware.WithCustomerID(req.Context(), "cust-1"))
	rec := httptest.NewRecorder()
	h.HandleLogout(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	sess.AssertExpectations(t)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestHandleMe(t *testing.T) {
	reader := &MockUsers{}
	reader.On("GetByCustomerID", mock.Anything, "cust-1").
		Return(&users.User{CustomerID: "cust-1", Email: "ada@example.com", Name: "Ada"}, nil)
	reader.On("Aliases", mock.Anything, "cust-1").Return([]*users.WebIDAlias{
		{Audience: "tax", AliasWebID: "https://pod.example/alias/tax#me", ServiceType: "government", ServiceName: "tax"},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(middleware.WithCustomerID(req.Context(), "cust-1"))
	rec := httptest.NewRecorder()
	NewProfileHandler(reader).HandleMe(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ada@example.com", body["email"])
	aliases, ok := body["webIdAliases"].([]any)
	require.True(t, ok)
	assert.Len(t, aliases, 1)
}

func TestHandleMe_UnknownUser(t *testing.T) {
	reader := &MockUsers{}
	reader.On("GetByCustomerID", mock.Anything, "ghost").Return(nil, users.ErrUserNotFound)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(middleware.WithCustomerID(req.Context(), "ghost"))
	rec := httptest.NewRecorder()
	NewProfileHandler(reader).HandleMe(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	reader.AssertNotCalled(t, "Aliases", mock.Anything, mock.Anything)
}

