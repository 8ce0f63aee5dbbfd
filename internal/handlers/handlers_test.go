package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reelkeep/apiserver/internal/handlers"
	"github.com/reelkeep/apiserver/internal/services"
	"github.com/reelkeep/apiserver/internal/storage"
	"github.com/reelkeep/apiserver/internal/store"
	"github.com/reelkeep/apiserver/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// In-memory repositories standing in for the postgres-backed ones. They
// honor the same error contracts (store.ErrNotFound, store.ErrDuplicate).

type memUserRepo struct {
	nextID  int
	byEmail map[string]types.User
	byID    map[int]types.User
}

func (r *memUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	if _, exists := r.byEmail[user.Email]; exists {
		return types.User{}, store.ErrDuplicate
	}
	user.ID = r.nextID
	r.nextID++
	r.byEmail[user.Email] = user
	r.byID[user.ID] = user
	return user, nil
}

type memSessionRepo struct {
	byHash map[string]types.Session
}

func (r *memSessionRepo) Create(_ context.Context, session types.Session) error {
	r.byHash[session.TokenHash] = session
	return nil
}

func (r *memSessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (types.Session, error) {
	session, ok := r.byHash[tokenHash]
	if !ok {
		return types.Session{}, store.ErrNotFound
	}
	return session, nil
}

func (r *memSessionRepo) Delete(_ context.Context, tokenHash string) error {
	delete(r.byHash, tokenHash)
	return nil
}

func (r *memSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	var pruned int64
	for hash, session := range r.byHash {
		if session.Expired(time.Now()) {
			delete(r.byHash, hash)
			pruned++
		}
	}
	return pruned, nil
}

type memMovieRepo struct {
	users  *memUserRepo
	nextID int
	byID   map[int]types.Movie
}

func (r *memMovieRepo) List(_ context.Context, offset, limit int) ([]types.Movie, int, error) {
	all := r.sorted()
	for i := range all {
		if owner, ok := r.users.byID[all[i].OwnerID]; ok {
			all[i].OwnerEmail = owner.Email
		}
	}
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *memMovieRepo) ListByOwner(_ context.Context, ownerID int) ([]types.Movie, error) {
	var movies []types.Movie
	for _, movie := range r.sorted() {
		if movie.OwnerID == ownerID {
			movies = append(movies, movie)
		}
	}
	return movies, nil
}

func (r *memMovieRepo) Get(_ context.Context, id int) (types.Movie, error) {
	movie, ok := r.byID[id]
	if !ok {
		return types.Movie{}, store.ErrNotFound
	}
	if owner, ok := r.users.byID[movie.OwnerID]; ok {
		movie.OwnerEmail = owner.Email
	}
	return movie, nil
}

func (r *memMovieRepo) Create(_ context.Context, movie types.Movie) (types.Movie, error) {
	movie.ID = r.nextID
	r.nextID++
	r.byID[movie.ID] = movie
	return movie, nil
}

func (r *memMovieRepo) Update(_ context.Context, movie types.Movie) (types.Movie, error) {
	if _, ok := r.byID[movie.ID]; !ok {
		return types.Movie{}, store.ErrNotFound
	}
	r.byID[movie.ID] = movie
	return movie, nil
}

func (r *memMovieRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *memMovieRepo) sorted() []types.Movie {
	movies := make([]types.Movie, 0, len(r.byID))
	for _, movie := range r.byID {
		movies = append(movies, movie)
	}
	sort.Slice(movies, func(i, j int) bool { return movies[i].ID > movies[j].ID })
	return movies
}

// memObjectStorage is an in-memory poster backend. puts counts every write
// so tests can assert a rejected request never touched storage at all.
type memObjectStorage struct {
	objects      map[string][]byte
	contentTypes map[string]string
	puts         int
}

func (m *memObjectStorage) EnsureBucket(context.Context) error { return nil }

func (m *memObjectStorage) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.contentTypes[key] = contentType
	m.puts++
	return nil
}

func (m *memObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, "", store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), m.contentTypes[key], nil
}

func (m *memObjectStorage) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	delete(m.contentTypes, key)
	return nil
}

func (m *memObjectStorage) Bucket() string { return "test" }

type testEnv struct {
	server   *httptest.Server
	sessions *memSessionRepo
	objects  *memObjectStorage
}

// newTestEnv wires the real handlers and services over in-memory stores,
// mirroring the server constructor.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := &memUserRepo{nextID: 1, byEmail: map[string]types.User{}, byID: map[int]types.User{}}
	sessions := &memSessionRepo{byHash: map[string]types.Session{}}
	movies := &memMovieRepo{users: users, nextID: 1, byID: map[int]types.Movie{}}
	objects := &memObjectStorage{objects: map[string][]byte{}, contentTypes: map[string]string{}}

	userService := services.NewUserService(users, bcrypt.MinCost)
	sessionService := services.NewSessionService(sessions, "test-secret", time.Hour)
	movieService := services.NewMovieService(movies)
	posters := storage.NewPosterStore(objects)

	authHandler := handlers.NewAuthHandler(userService, sessionService, false)
	movieHandler := handlers.NewMovieHandler(movieService, posters)

	router := chi.NewRouter()
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/movies", func(r chi.Router) {
		handlers.MovieRouter(r, movieHandler, authHandler.RequireAuth)
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{server: server, sessions: sessions, objects: objects}
}

// newClient returns an HTTP client with its own cookie jar, representing
// one browser.
func (e *testEnv) newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (e *testEnv) doJSON(t *testing.T, client *http.Client, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var value T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&value))
	return value
}

func (e *testEnv) signup(t *testing.T, client *http.Client, email, password string) types.User {
	t.Helper()
	resp := e.doJSON(t, client, http.MethodPost, "/auth/signup", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[types.User](t, resp)
}

func (e *testEnv) createMovie(t *testing.T, client *http.Client, title string) types.Movie {
	t.Helper()
	resp := e.doJSON(t, client, http.MethodPost, "/movies", map[string]any{"title": title})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[types.Movie](t, resp)
}

func multipartPoster(t *testing.T, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="poster"; filename="poster.png"`)
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}
