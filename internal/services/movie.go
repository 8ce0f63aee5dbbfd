package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/reelkeep/apiserver/types"
)

// MovieRepository defines persistence operations for movies.
type MovieRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Movie, int, error)
	ListByOwner(ctx context.Context, ownerID int) ([]types.Movie, error)
	Get(ctx context.Context, id int) (types.Movie, error)
	Create(ctx context.Context, movie types.Movie) (types.Movie, error)
	Update(ctx context.Context, movie types.Movie) (types.Movie, error)
	Delete(ctx context.Context, id int) error
}

// MovieService encapsulates movie use-cases and enforces the ownership
// boundary: reads are open to any authenticated user, mutations only to the
// owner. The existence check always runs before the ownership comparison,
// so a missing record and a foreign record fail in a fixed order.
type MovieService struct {
	repo MovieRepository
}

func NewMovieService(repo MovieRepository) *MovieService {
	return &MovieService{repo: repo}
}

// ValidateMovie checks the canonical field constraints: title is required,
// year and rating are either unset (zero) or inside their bounds. Failures
// wrap ErrValidation.
func ValidateMovie(movie types.Movie) error {
	if strings.TrimSpace(movie.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if movie.Year != 0 && (movie.Year < types.YearMin || movie.Year > types.YearMax) {
		return fmt.Errorf("%w: year must be between %d and %d", ErrValidation, types.YearMin, types.YearMax)
	}
	if movie.Rating != 0 && (movie.Rating < types.RatingMin || movie.Rating > types.RatingMax) {
		return fmt.Errorf("%w: rating must be between %d and %d", ErrValidation, types.RatingMin, types.RatingMax)
	}
	return nil
}

func (s *MovieService) List(ctx context.Context, offset, limit int) ([]types.Movie, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

func (s *MovieService) ListByOwner(ctx context.Context, ownerID int) ([]types.Movie, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *MovieService) Get(ctx context.Context, id int) (types.Movie, error) {
	return s.repo.Get(ctx, id)
}

func (s *MovieService) Create(ctx context.Context, ownerID int, movie types.Movie) (types.Movie, error) {
	movie.Title = strings.TrimSpace(movie.Title)
	if err := ValidateMovie(movie); err != nil {
		return types.Movie{}, err
	}
	movie.OwnerID = ownerID
	movie.PosterKey = ""
	return s.repo.Create(ctx, movie)
}

// Update rewrites the mutable fields of the movie on behalf of actorID.
// Fails store.ErrNotFound when the movie does not exist and ErrForbidden
// when it belongs to someone else. Owner and poster key are carried over
// from the stored record, never from the request.
func (s *MovieService) Update(ctx context.Context, actorID int, movie types.Movie) (types.Movie, error) {
	movie.Title = strings.TrimSpace(movie.Title)
	if err := ValidateMovie(movie); err != nil {
		return types.Movie{}, err
	}

	existing, err := s.requireOwner(ctx, actorID, movie.ID)
	if err != nil {
		return types.Movie{}, err
	}

	movie.OwnerID = existing.OwnerID
	movie.PosterKey = existing.PosterKey
	movie.CreatedAt = existing.CreatedAt
	return s.repo.Update(ctx, movie)
}

// Delete removes the movie on behalf of actorID, with the same error
// contract as Update. The previous poster key is returned so the caller can
// drop the orphaned object from storage.
func (s *MovieService) Delete(ctx context.Context, actorID, id int) (string, error) {
	existing, err := s.requireOwner(ctx, actorID, id)
	if err != nil {
		return "", err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return "", err
	}
	return existing.PosterKey, nil
}

// SetPoster records the object-storage key of a freshly uploaded poster and
// returns the key it replaced, empty when the movie had none.
func (s *MovieService) SetPoster(ctx context.Context, actorID, id int, posterKey string) (string, error) {
	existing, err := s.requireOwner(ctx, actorID, id)
	if err != nil {
		return "", err
	}
	previous := existing.PosterKey
	existing.PosterKey = posterKey
	if _, err := s.repo.Update(ctx, existing); err != nil {
		return "", err
	}
	return previous, nil
}

// GetOwned loads the movie only when actorID owns it, with the same error
// contract as Update. Callers with side effects to stage, such as a poster
// upload, use it to authorize before committing anything.
func (s *MovieService) GetOwned(ctx context.Context, actorID, id int) (types.Movie, error) {
	return s.requireOwner(ctx, actorID, id)
}

func (s *MovieService) requireOwner(ctx context.Context, actorID, id int) (types.Movie, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Movie{}, err
	}
	if existing.OwnerID != actorID {
		return types.Movie{}, ErrForbidden
	}
	return existing, nil
}
