package types

import "time"

// Rating and year bounds for movie records. A zero value means the field
// was left unset; non-zero values must fall inside the bounds.
const (
	RatingMin = 1
	RatingMax = 5

	// YearMin is the year of the first film ever recorded.
	YearMin = 1888
	YearMax = 2100
)

// Movie represents one entry in a user's movie list.
// Every movie has exactly one owner, set at creation and never reassigned.
// Ownership is the sole authorization boundary in the system: there is no
// sharing, no roles, and no delegation.
type Movie struct {
	// ID is the unique identifier of the movie.
	ID int `json:"id" db:"id"`

	// OwnerID is the user who created the movie. Immutable.
	OwnerID int `json:"owner_id" db:"owner_id"`

	// OwnerEmail is the owner's identity, joined in for community listings.
	// It is not a column of the movies table.
	OwnerEmail string `json:"owner_email,omitempty" db:"-"`

	// Title is the movie title. Required.
	Title string `json:"title" db:"title"`

	// Year is the release year. Zero when unset; otherwise bounded by
	// YearMin..YearMax.
	Year int `json:"year,omitempty" db:"year"`

	// Rating is the owner's score for the movie. Zero when unrated;
	// otherwise bounded by RatingMin..RatingMax.
	Rating int `json:"rating,omitempty" db:"rating"`

	// Review is optional free-text commentary by the owner.
	Review string `json:"review,omitempty" db:"review"`

	// PosterKey is the object-storage key of the uploaded poster image,
	// empty when no poster has been uploaded.
	PosterKey string `json:"poster_key,omitempty" db:"poster_key"`

	// CreatedAt is the timestamp the movie was added.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
