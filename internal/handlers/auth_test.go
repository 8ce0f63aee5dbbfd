package handlers_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/reelkeep/apiserver/internal/handlers"
	"github.com/reelkeep/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupIssuesSessionAndRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	client := env.newClient(t)

	user := env.signup(t, client, "alice@example.com", "pw123")
	assert.Equal(t, "alice@example.com", user.Email)

	// The fresh session resolves immediately.
	resp := env.doJSON(t, client, http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decodeBody[types.User](t, resp)
	assert.Equal(t, user.ID, me.ID)

	// Registering the same identity again fails, with any password.
	other := env.newClient(t)
	resp = env.doJSON(t, other, http.MethodPost, "/auth/signup", map[string]string{
		"email":    "alice@example.com",
		"password": "anything",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLoginInvalidCredentialsAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, env.newClient(t), "alice@example.com", "pw123")

	client := env.newClient(t)

	// Wrong password.
	resp := env.doJSON(t, client, http.MethodPost, "/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "wrongpw",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	wrongPassword := decodeBody[handlers.ErrorResponse](t, resp)

	// Unknown identity answers with the exact same body and status.
	resp = env.doJSON(t, client, http.MethodPost, "/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "pw123",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	unknownUser := decodeBody[handlers.ErrorResponse](t, resp)
	assert.Equal(t, wrongPassword, unknownUser)

	// Correct credentials issue a session.
	resp = env.doJSON(t, client, http.MethodPost, "/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "pw123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := decodeBody[types.User](t, resp)

	resp = env.doJSON(t, client, http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decodeBody[types.User](t, resp)
	assert.Equal(t, user.ID, me.ID)
}

func TestSessionCookieAttributes(t *testing.T) {
	env := newTestEnv(t)
	client := env.newClient(t)

	resp := env.doJSON(t, client, http.MethodPost, "/auth/signup", map[string]string{
		"email":    "alice@example.com",
		"password": "pw123",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sessionCookie *http.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == handlers.SessionCookieName {
			sessionCookie = cookie
		}
	}
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)
	assert.NotEmpty(t, sessionCookie.Value)
	assert.Equal(t, "/", sessionCookie.Path)
	assert.Positive(t, sessionCookie.MaxAge)
}

func TestLogoutDestroysSession(t *testing.T) {
	env := newTestEnv(t)
	client := env.newClient(t)
	env.signup(t, client, "alice@example.com", "pw123")
	require.Len(t, env.sessions.byHash, 1)

	resp := env.doJSON(t, client, http.MethodPost, "/auth/logout", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The session row is gone server-side, not just the cookie.
	assert.Empty(t, env.sessions.byHash)

	// Protected routes no longer resolve.
	resp = env.doJSON(t, client, http.MethodGet, "/auth/me", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.doJSON(t, client, http.MethodGet, "/movies/mine", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Logging out again is not an error.
	resp = env.doJSON(t, client, http.MethodPost, "/auth/logout", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestForgedSessionTokenDoesNotResolve(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, env.newClient(t), "alice@example.com", "pw123")

	client := env.newClient(t)
	serverURL, err := url.Parse(env.server.URL)
	require.NoError(t, err)
	client.Jar.SetCookies(serverURL, []*http.Cookie{{
		Name:  handlers.SessionCookieName,
		Value: "forged-token-value",
	}})

	resp := env.doJSON(t, client, http.MethodGet, "/auth/me", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)
	client := env.newClient(t)

	for _, body := range []map[string]string{
		{},
		{"email": "alice@example.com"},
		{"password": "pw123"},
		{"email": "   ", "password": "pw123"},
	} {
		resp := env.doJSON(t, client, http.MethodPost, "/auth/signup", body)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}
