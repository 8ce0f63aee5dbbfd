package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/reelkeep/apiserver/types"
)

// MovieRepository handles persistence for movies.
type MovieRepository struct {
	db *sql.DB
}

func NewMovieRepository(db *sql.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// List returns all users' movies newest first, with the owner email joined
// in for the community view.
func (r *MovieRepository) List(ctx context.Context, offset, limit int) ([]types.Movie, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM movies`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT m.id, m.owner_id, u.email, m.title, m.year, m.rating, m.review, m.poster_key, m.created_at, m.updated_at
		FROM movies m
		JOIN users u ON u.id = m.owner_id
		ORDER BY m.created_at DESC, m.id DESC
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	movies := make([]types.Movie, 0, limit)
	for rows.Next() {
		var movie types.Movie
		if err := rows.Scan(
			&movie.ID,
			&movie.OwnerID,
			&movie.OwnerEmail,
			&movie.Title,
			&movie.Year,
			&movie.Rating,
			&movie.Review,
			&movie.PosterKey,
			&movie.CreatedAt,
			&movie.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		movies = append(movies, movie)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return movies, total, nil
}

// ListByOwner returns one user's movies newest first.
func (r *MovieRepository) ListByOwner(ctx context.Context, ownerID int) ([]types.Movie, error) {
	const query = `
		SELECT id, owner_id, title, year, rating, review, poster_key, created_at, updated_at
		FROM movies
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movies []types.Movie
	for rows.Next() {
		var movie types.Movie
		if err := rows.Scan(
			&movie.ID,
			&movie.OwnerID,
			&movie.Title,
			&movie.Year,
			&movie.Rating,
			&movie.Review,
			&movie.PosterKey,
			&movie.CreatedAt,
			&movie.UpdatedAt,
		); err != nil {
			return nil, err
		}
		movies = append(movies, movie)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return movies, nil
}

func (r *MovieRepository) Get(ctx context.Context, id int) (types.Movie, error) {
	const query = `
		SELECT m.id, m.owner_id, u.email, m.title, m.year, m.rating, m.review, m.poster_key, m.created_at, m.updated_at
		FROM movies m
		JOIN users u ON u.id = m.owner_id
		WHERE m.id = $1`
	var movie types.Movie
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&movie.ID,
		&movie.OwnerID,
		&movie.OwnerEmail,
		&movie.Title,
		&movie.Year,
		&movie.Rating,
		&movie.Review,
		&movie.PosterKey,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Movie{}, ErrNotFound
		}
		return types.Movie{}, err
	}
	return movie, nil
}

func (r *MovieRepository) Create(ctx context.Context, movie types.Movie) (types.Movie, error) {
	now := time.Now()
	movie.CreatedAt = now
	movie.UpdatedAt = now

	const query = `
		INSERT INTO movies (owner_id, title, year, rating, review, poster_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		movie.OwnerID,
		movie.Title,
		movie.Year,
		movie.Rating,
		movie.Review,
		movie.PosterKey,
		movie.CreatedAt,
		movie.UpdatedAt,
	).Scan(&movie.ID); err != nil {
		return types.Movie{}, err
	}
	return movie, nil
}

// Update rewrites the mutable fields of a movie. The owner column is never
// part of the update.
func (r *MovieRepository) Update(ctx context.Context, movie types.Movie) (types.Movie, error) {
	movie.UpdatedAt = time.Now()

	const query = `
		UPDATE movies
		SET title = $1,
			year = $2,
			rating = $3,
			review = $4,
			poster_key = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		movie.Title,
		movie.Year,
		movie.Rating,
		movie.Review,
		movie.PosterKey,
		movie.UpdatedAt,
		movie.ID,
	)
	if err != nil {
		return types.Movie{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Movie{}, err
	}
	if affected == 0 {
		return types.Movie{}, ErrNotFound
	}
	return movie, nil
}

func (r *MovieRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM movies WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
