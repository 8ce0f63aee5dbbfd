package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/reelkeep/apiserver/internal/services"
	"github.com/reelkeep/apiserver/internal/store"
	"github.com/reelkeep/apiserver/types"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "reelkeep_session"

// AuthHandler provides cookie-session authentication endpoints.
type AuthHandler struct {
	userService    *services.UserService
	sessionService *services.SessionService
	cookieSecure   bool
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, sessionService *services.SessionService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		userService:    userService,
		sessionService: sessionService,
		cookieSecure:   cookieSecure,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/signup", handler.Signup)
	r.Post("/login", handler.Login)
	r.Post("/logout", handler.Logout)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth resolves the session cookie and injects the user id into the
// request context. Anonymous-to-authenticated is the only per-request state
// transition; a request that fails here never reaches protected handlers.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		session, err := h.sessionService.Resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, services.ErrSessionNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to resolve session")
			return
		}

		ctx := context.WithValue(r.Context(), contextUserIDKey, session.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Signup creates a new account and issues a session for it. A taken email
// fails 409 without issuing anything.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	email, password, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	user, err := h.userService.Register(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, services.ErrIdentityTaken) {
			writeError(w, http.StatusConflict, "identity already taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.issueSession(w, r, user, http.StatusCreated)
}

// Login verifies credentials and issues a session. Unknown email and wrong
// password are indistinguishable in the response.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email, password, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	user, err := h.userService.Authenticate(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	h.issueSession(w, r, user, http.StatusOK)
}

// Logout destroys the current session and clears the cookie. Logging out
// without a live session still succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := h.sessionService.Destroy(r.Context(), token); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to log out")
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the currently authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// issueSession writes the session cookie only after the session row is
// durably stored; the client never holds a token the server cannot resolve.
func (h *AuthHandler) issueSession(w http.ResponseWriter, r *http.Request, user types.User, status int) {
	token, _, err := h.sessionService.Create(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionService.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, user)
}

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (email, password string, ok bool) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return "", "", false
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return "", "", false
	}
	return req.Email, req.Password, true
}

func sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}
