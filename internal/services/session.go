package services

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/reelkeep/apiserver/internal/store"
	"github.com/reelkeep/apiserver/types"
)

const sessionTokenBytes = 32

// SessionRepository defines persistence operations for sessions.
type SessionRepository interface {
	Create(ctx context.Context, session types.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (types.Session, error)
	Delete(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionService issues and resolves opaque session tokens. The token handed
// to the client is random; the database only ever sees its keyed hash, so a
// read of the sessions table yields nothing presentable as a cookie.
type SessionService struct {
	repo   SessionRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionService(repo SessionRepository, secret string, ttl time.Duration) *SessionService {
	return &SessionService{
		repo:   repo,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the configured session lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Create issues a new session for the user and returns the opaque token the
// client must present on subsequent requests. The token is returned only
// after the session row is durably written; a caller must never hand a
// cookie to the client before Create comes back nil.
func (s *SessionService) Create(ctx context.Context, userID int) (string, types.Session, error) {
	raw := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", types.Session{}, err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	now := s.now()
	session := types.Session{
		TokenHash: s.hashToken(token),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return "", types.Session{}, err
	}
	return token, session, nil
}

// Resolve maps a client token back to its session. Absent and expired
// sessions both fail ErrSessionNotFound; an expired row is deleted on the
// way out so the table does not accumulate dead sessions between janitor
// runs.
func (s *SessionService) Resolve(ctx context.Context, token string) (types.Session, error) {
	if token == "" {
		return types.Session{}, ErrSessionNotFound
	}

	tokenHash := s.hashToken(token)
	session, err := s.repo.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Session{}, ErrSessionNotFound
		}
		return types.Session{}, err
	}

	if session.Expired(s.now()) {
		_ = s.repo.Delete(ctx, tokenHash)
		return types.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Destroy removes the session for the given token. Destroying a token that
// never resolved, or was already destroyed, is not an error.
func (s *SessionService) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.repo.Delete(ctx, s.hashToken(token))
}

// DeleteExpired prunes expired sessions in bulk.
func (s *SessionService) DeleteExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}

func (s *SessionService) hashToken(token string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
