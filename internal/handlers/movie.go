package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/reelkeep/apiserver/internal/services"
	"github.com/reelkeep/apiserver/internal/storage"
	"github.com/reelkeep/apiserver/internal/store"
	"github.com/reelkeep/apiserver/types"
)

const (
	defaultPage     = 1
	defaultLimit    = 20
	maxLimit        = 100
	maxPosterMemory = 8 << 20
	maxPosterBytes  = 8 << 20
	formFieldPoster = "poster"
)

// MovieHandler provides HTTP handlers for movies.
type MovieHandler struct {
	movieService *services.MovieService
	posters      *storage.PosterStore
}

// NewMovieHandler constructs a handler with the provided dependencies.
// posters may be nil when no object storage is configured; poster routes
// then answer 503.
func NewMovieHandler(movieService *services.MovieService, posters *storage.PosterStore) *MovieHandler {
	return &MovieHandler{
		movieService: movieService,
		posters:      posters,
	}
}

// MovieRouter registers movie routes on the given router. Every route runs
// behind the auth middleware; mutating routes additionally pass through the
// service-level ownership check.
func MovieRouter(r chi.Router, handler *MovieHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)

	r.Get("/", handler.ListMovies)
	r.Get("/mine", handler.ListMyMovies)
	r.Post("/", handler.CreateMovie)
	r.Route("/{movieID}", func(r chi.Router) {
		r.Get("/", handler.GetMovie)
		r.Put("/", handler.UpdateMovie)
		r.Delete("/", handler.DeleteMovie)
		r.Post("/poster", handler.UploadPoster)
		r.Get("/poster", handler.GetPoster)
	})
}

// ListMovies is the community view: everyone's movies, newest first.
func (h *MovieHandler) ListMovies(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.movieService.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list movies")
		return
	}

	writeJSON(w, http.StatusOK, MovieListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

// ListMyMovies is the dashboard view: only the caller's movies.
func (h *MovieHandler) ListMyMovies(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	items, err := h.movieService.ListByOwner(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list movies")
		return
	}
	if items == nil {
		items = []types.Movie{}
	}

	writeJSON(w, http.StatusOK, MovieListResponse{
		Items: items,
		Page:  1,
		Limit: len(items),
		Total: len(items),
	})
}

func (h *MovieHandler) CreateMovie(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	req, err := decodeMovieRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.movieService.Create(r.Context(), userID, types.Movie{
		Title:  req.Title,
		Year:   req.Year,
		Rating: req.Rating,
		Review: req.Review,
	})
	if err != nil {
		writeError(w, movieErrorStatus(err), movieErrorMessage(err, "failed to create movie"))
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *MovieHandler) GetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := parseMovieID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	movie, err := h.movieService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "movie not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch movie")
		return
	}

	userID, _ := userIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, MovieDetailResponse{
		Movie:   movie,
		IsOwner: movie.OwnerID == userID,
	})
}

func (h *MovieHandler) UpdateMovie(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseMovieID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := decodeMovieRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.movieService.Update(r.Context(), userID, types.Movie{
		ID:     id,
		Title:  req.Title,
		Year:   req.Year,
		Rating: req.Rating,
		Review: req.Review,
	})
	if err != nil {
		writeError(w, movieErrorStatus(err), movieErrorMessage(err, "failed to update movie"))
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *MovieHandler) DeleteMovie(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseMovieID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	posterKey, err := h.movieService.Delete(r.Context(), userID, id)
	if err != nil {
		writeError(w, movieErrorStatus(err), movieErrorMessage(err, "failed to delete movie"))
		return
	}

	if h.posters != nil {
		// Stray objects from a failed delete are harmless; the record is gone.
		_ = h.posters.Delete(r.Context(), posterKey)
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadPoster stores the uploaded image in object storage and records its
// key on the movie. Ownership is checked before the object is written, so
// requests for foreign or missing movies never stage bytes in storage; on
// a rejected record update the fresh object is removed again.
func (h *MovieHandler) UploadPoster(w http.ResponseWriter, r *http.Request) {
	if h.posters == nil {
		writeError(w, http.StatusServiceUnavailable, "poster storage not configured")
		return
	}

	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseMovieID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.movieService.GetOwned(r.Context(), userID, id); err != nil {
		writeError(w, movieErrorStatus(err), movieErrorMessage(err, "failed to update movie"))
		return
	}

	data, contentType, err := parsePosterUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.posters.Upload(r.Context(), bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store poster")
		return
	}

	previous, err := h.movieService.SetPoster(r.Context(), userID, id, key)
	if err != nil {
		_ = h.posters.Delete(r.Context(), key)
		writeError(w, movieErrorStatus(err), movieErrorMessage(err, "failed to update movie"))
		return
	}

	_ = h.posters.Delete(r.Context(), previous)
	writeJSON(w, http.StatusCreated, map[string]string{"poster_key": key})
}

// GetPoster streams the stored poster image.
func (h *MovieHandler) GetPoster(w http.ResponseWriter, r *http.Request) {
	if h.posters == nil {
		writeError(w, http.StatusServiceUnavailable, "poster storage not configured")
		return
	}

	id, err := parseMovieID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	movie, err := h.movieService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "movie not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch movie")
		return
	}
	if movie.PosterKey == "" {
		writeError(w, http.StatusNotFound, "movie has no poster")
		return
	}

	reader, contentType, err := h.posters.Open(r.Context(), movie.PosterKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch poster")
		return
	}
	defer reader.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

// MovieUpsertRequest is the JSON payload for create and update.
type MovieUpsertRequest struct {
	Title  string `json:"title"`
	Year   int    `json:"year"`
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

// MovieListResponse is the paginated list response payload.
type MovieListResponse struct {
	Items []types.Movie `json:"items"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Total int           `json:"total"`
}

// MovieDetailResponse carries a movie plus whether the caller owns it.
type MovieDetailResponse struct {
	Movie   types.Movie `json:"movie"`
	IsOwner bool        `json:"is_owner"`
}

// movieErrorStatus maps service errors to HTTP codes. Missing records and
// foreign records both answer 404 so the response does not reveal whether a
// movie someone else owns exists.
func movieErrorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, services.ErrForbidden):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func movieErrorMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, services.ErrForbidden):
		return "movie not found"
	case errors.Is(err, services.ErrValidation):
		return err.Error()
	default:
		return fallback
	}
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseMovieID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "movieID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid movie id")
	}
	return id, nil
}

func decodeMovieRequest(r *http.Request) (MovieUpsertRequest, error) {
	var req MovieUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return MovieUpsertRequest{}, errors.New("invalid request")
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return MovieUpsertRequest{}, errors.New("title is required")
	}
	return req, nil
}

func parsePosterUpload(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxPosterMemory); err != nil {
		return nil, "", errors.New("invalid multipart form")
	}

	file, header, err := r.FormFile(formFieldPoster)
	if err != nil {
		return nil, "", errors.New("poster file is required")
	}
	defer file.Close()

	data, err := readFileLimited(file, maxPosterBytes)
	if err != nil {
		return nil, "", err
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", errors.New("poster must be an image")
	}
	return data, contentType, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
