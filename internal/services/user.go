package services

import (
	"context"
	"errors"
	"strings"

	"github.com/reelkeep/apiserver/internal/store"
	"github.com/reelkeep/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService owns credential handling: it is the only code that sees
// plaintext passwords, and it discards them as soon as a hash exists.
type UserService struct {
	repo      UserRepository
	cost      int
	dummyHash []byte
}

// NewUserService constructs the service with the given bcrypt cost.
// Costs outside bcrypt's valid range fall back to the library default.
func NewUserService(repo UserRepository, cost int) *UserService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// Hash compared against when the email is unknown, so authentication
	// takes the same time whether or not the account exists.
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("reelkeep-no-such-user"), cost)
	if err != nil {
		dummyHash = nil
	}
	return &UserService{repo: repo, cost: cost, dummyHash: dummyHash}
}

// Register creates an account for the given email. The email is normalized
// (trimmed, lower-cased) before the uniqueness check; a duplicate fails
// ErrIdentityTaken regardless of the password supplied.
func (s *UserService) Register(ctx context.Context, email, password string) (types.User, error) {
	email = NormalizeEmail(email)

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        email,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrIdentityTaken
		}
		return types.User{}, err
	}
	return user, nil
}

// Authenticate verifies the email/password pair. An unknown email and a
// wrong password both fail with ErrInvalidCredentials; the caller learns
// nothing about whether the account exists.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = NormalizeEmail(email)

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if s.dummyHash != nil {
				_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			}
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GetByID loads a user by id.
func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// NormalizeEmail trims and lower-cases an email so identity comparison is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
