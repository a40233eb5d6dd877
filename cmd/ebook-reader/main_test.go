package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drallgood/ebook-reader/internal/models"
)

// fakeAPI is a minimal in-memory version of the remote API
type fakeAPI struct {
	mu        sync.Mutex
	favorites []models.Book
	devices   []string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	user := models.User{ID: "u1", Email: "a@b.com", Username: "reader", FirstName: "ada", LastName: "lovelace"}
	dune := models.Book{ID: "b1", Title: "Dune", Author: "Frank Herbert", Format: models.FormatEPUB, FileSize: 1572864, Rating: 4.5}

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer access-1" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"message": "Unauthorized"})
				return
			}
			next(w, r)
		}
	}
	reply := func(w http.ResponseWriter, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "Secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			reply(w, map[string]string{"message": "Invalid credentials"})
			return
		}
		reply(w, models.AuthResponse{User: user, AccessToken: "access-1", RefreshToken: "refresh-1"})
	})
	mux.HandleFunc("POST /v1/auth/logout", authed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET /v1/auth/me", authed(func(w http.ResponseWriter, r *http.Request) {
		reply(w, user)
	}))
	mux.HandleFunc("GET /v1/books", authed(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		reply(w, models.BooksPage{
			Data: []models.Book{dune},
			Meta: models.PaginationMeta{CurrentPage: 2, TotalPages: 3, TotalItems: 21},
		})
	}))
	mux.HandleFunc("GET /v1/books/b1", authed(func(w http.ResponseWriter, r *http.Request) {
		reply(w, dune)
	}))
	mux.HandleFunc("GET /v1/user/favorites", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		reply(w, f.favorites)
	}))
	mux.HandleFunc("POST /v1/user/favorites", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.favorites = append(f.favorites, dune)
		w.WriteHeader(http.StatusCreated)
	}))
	mux.HandleFunc("POST /v1/notifications/register-device", authed(func(w http.ResponseWriter, r *http.Request) {
		var body models.DeviceRegistration
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.devices = append(f.devices, body.DeviceToken)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	return mux
}

func (f *fakeAPI) snapshot() (favorites []models.Book, devices []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Book(nil), f.favorites...), append([]string(nil), f.devices...)
}

func setup(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	t.Setenv("EBOOK_API_URL", server.URL+"/v1")
	t.Setenv("STORAGE_BACKEND", "file")
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "error")
	return api
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{"ebook-reader", "--env-file", "does-not-exist.env"}, args...))
	return out.String(), err
}

func TestSessionSurvivesAcrossRuns(t *testing.T) {
	setup(t)

	out, err := run(t, "login", "--email", "a@b.com", "--password", "Secret123")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada Lovelace <a@b.com>")

	out, err = run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "a@b.com")

	out, err = run(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	_, err = run(t, "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")
}

func TestLoginRejected(t *testing.T) {
	setup(t)

	_, err := run(t, "login", "--email", "a@b.com", "--password", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())

	_, err = run(t, "login", "--email", "not-an-email", "--password", "Secret123")
	require.Error(t, err)
}

func TestBooksAndFavorites(t *testing.T) {
	api := setup(t)
	_, err := run(t, "login", "--email", "a@b.com", "--password", "Secret123")
	require.NoError(t, err)

	out, err := run(t, "books", "--page", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Dune")
	assert.Contains(t, out, "1.5 MB")
	assert.Contains(t, out, "Page 2 of 3 (21 books), next: --page 3")

	out, err = run(t, "favorites", "add", "b1")
	require.NoError(t, err)
	assert.Contains(t, out, "Frank Herbert")
	favorites, _ := api.snapshot()
	assert.Len(t, favorites, 1)

	_, err = run(t, "favorites", "add")
	require.Error(t, err)
}

func TestPushCommands(t *testing.T) {
	api := setup(t)
	_, err := run(t, "login", "--email", "a@b.com", "--password", "Secret123")
	require.NoError(t, err)

	_, err = run(t, "push", "register", "--token", "device-1")
	require.NoError(t, err)
	_, devices := api.snapshot()
	assert.Equal(t, []string{"device-1"}, devices)

	out, err := run(t, "--ephemeral", "push", "deliver", "--id", "n1", "--title", "New book", "--type", "NEW_BOOK", "--book-id", "b1", "--tap")
	require.NoError(t, err)
	assert.Contains(t, out, "-> book/b1")
	assert.Contains(t, out, "1 unread")
}
