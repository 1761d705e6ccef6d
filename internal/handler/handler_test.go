package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avolkov/notes-service/internal/config"
	"github.com/avolkov/notes-service/internal/repository"
	"github.com/avolkov/notes-service/internal/service"
	"github.com/avolkov/notes-service/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv    *httptest.Server
	client *http.Client
	db     *sql.DB
}

// newTestEnv stands up the full stack (router, middleware, service,
// repository) over an in-memory SQLite database, plus a cookie-jar client
// so session cookies flow like they would from a browser.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := repository.Open("sqlite3", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repository.NewRepository(db, "sqlite3")
	require.NoError(t, repo.EnsureSchema(context.Background()))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		SessionTTL:            time.Hour,
		SessionCookieName:     "session",
		SessionCookieSameSite: http.SameSiteLaxMode,
	}
	store := session.NewMemoryStore(cfg.SessionTTL)
	h := NewHandler(service.NewService(repo, logger), store, logger, cfg)

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		srv:    srv,
		client: &http.Client{Jar: jar},
		db:     db,
	}
}

func (e *testEnv) post(t *testing.T, path, body string) (int, map[string]any) {
	t.Helper()
	resp, err := e.client.Post(e.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp.StatusCode, parsed
}

func (e *testEnv) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.post(t, "/register", `{"username":"alice","password":"pw123"}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User registered successfully", body["message"])
	assert.Equal(t, 1, env.count(t, "users"))
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.post(t, "/register", `{"username":"alice","password":"pw123"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := env.post(t, "/register", `{"username":"alice","password":"other"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Username already exists", body["error"])
	assert.Equal(t, 1, env.count(t, "users"))
}

func TestRegister_Concurrent(t *testing.T) {
	env := newTestEnv(t)

	var wg sync.WaitGroup
	statuses := make([]int, 2)
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// a fresh client per goroutine; no shared cookie jar needed
			resp, err := http.Post(env.srv.URL+"/register", "application/json",
				strings.NewReader(`{"username":"raced","password":"pw"}`))
			if err != nil {
				t.Error(err)
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	counts := map[int]int{}
	for _, s := range statuses {
		counts[s]++
	}
	assert.Equal(t, 1, counts[http.StatusCreated], "exactly one 201, got %v", statuses)
	assert.Equal(t, 1, counts[http.StatusConflict], "exactly one 409, got %v", statuses)
	assert.Equal(t, 1, env.count(t, "users"))
}

func TestRegister_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{
		`{"username":"","password":"pw"}`,
		`{"username":"alice","password":""}`,
		`{"password":"pw"}`,
		`not json`,
	} {
		status, parsed := env.post(t, "/register", body)
		assert.Equal(t, http.StatusBadRequest, status, "body: %s", body)
		assert.Equal(t, "Username and password are required", parsed["error"])
	}
	assert.Equal(t, 0, env.count(t, "users"))
}

func TestLogin_EstablishesSession(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.post(t, "/register", `{"username":"alice","password":"pw123"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := env.post(t, "/login", `{"username":"alice","password":"pw123"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Login successful", body["message"])
	assert.Equal(t, "alice", body["username"])

	// session cookie is live: note creation works without re-authenticating
	status, _ = env.post(t, "/notes", `{"content":"first"}`)
	assert.Equal(t, http.StatusCreated, status)
}

func TestLogin_UniformFailureMessage(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.post(t, "/register", `{"username":"alice","password":"pw123"}`)
	require.Equal(t, http.StatusCreated, status)

	wrongStatus, wrongBody := env.post(t, "/login", `{"username":"alice","password":"nope"}`)
	unknownStatus, unknownBody := env.post(t, "/login", `{"username":"ghost","password":"nope"}`)

	assert.Equal(t, http.StatusUnauthorized, wrongStatus)
	assert.Equal(t, http.StatusUnauthorized, unknownStatus)
	assert.Equal(t, wrongBody["error"], unknownBody["error"])
	assert.Equal(t, "Invalid credentials", wrongBody["error"])
}

func TestCreateNote_RequiresSession(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.post(t, "/notes", `{"content":"hello"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized", body["error"])
	assert.Equal(t, 0, env.count(t, "notes"))
}

func TestCreateNote_EmptyContent(t *testing.T) {
	env := newTestEnv(t)
	registerAndLogin(t, env, "alice", "pw123")

	for _, body := range []string{`{"content":""}`, `{}`} {
		status, parsed := env.post(t, "/notes", body)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Note content is required", parsed["error"])
	}
	assert.Equal(t, 0, env.count(t, "notes"))
}

func TestCreateNote_Success(t *testing.T) {
	env := newTestEnv(t)
	registerAndLogin(t, env, "alice", "pw123")

	status, body := env.post(t, "/notes", `{"content":"hello"}`)
	require.Equal(t, http.StatusCreated, status)

	assert.NotZero(t, body["id"])
	assert.Equal(t, "hello", body["content"])

	createdAt, ok := body["created_at"].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339, createdAt)
	assert.NoError(t, err)

	// the stored note belongs to the authenticated user
	var owner string
	err = env.db.QueryRow(`
		SELECT u.username FROM notes n JOIN users u ON u.id = n.user_id
		WHERE n.content = 'hello'`).Scan(&owner)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
}

func TestLogout_InvalidatesSession(t *testing.T) {
	env := newTestEnv(t)
	registerAndLogin(t, env, "alice", "pw123")

	status, body := env.post(t, "/logout", ``)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Logged out successfully", body["message"])

	status, _ = env.post(t, "/notes", `{"content":"too late"}`)
	assert.Equal(t, http.StatusUnauthorized, status)

	// logging out twice is not an error
	status, _ = env.post(t, "/logout", ``)
	assert.Equal(t, http.StatusOK, status)
}

func TestLogout_StaleCookieRejected(t *testing.T) {
	env := newTestEnv(t)
	registerAndLogin(t, env, "alice", "pw123")

	// capture the cookie, log out, then replay the old token by hand
	u := env.srv.URL
	req, err := http.NewRequest(http.MethodPost, u+"/notes", strings.NewReader(`{"content":"x"}`))
	require.NoError(t, err)
	var token string
	for _, c := range env.client.Jar.Cookies(req.URL) {
		if c.Name == "session" {
			token = c.Value
		}
	}
	require.NotEmpty(t, token)

	status, _ := env.post(t, "/logout", ``)
	require.Equal(t, http.StatusOK, status)

	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.post(t, "/register", `{"username":"alice","password":"pw123"}`)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "User registered successfully", body["message"])

	status, body = env.post(t, "/login", `{"username":"alice","password":"pw123"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Login successful", body["message"])
	require.Equal(t, "alice", body["username"])

	status, body = env.post(t, "/notes", `{"content":"hello"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float64(1), body["id"])
	assert.Equal(t, "hello", body["content"])
	createdAt, ok := body["created_at"].(string)
	require.True(t, ok)
	parsed, err := time.Parse(time.RFC3339, createdAt)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, parsed.Location())
}

func registerAndLogin(t *testing.T, env *testEnv, username, password string) {
	t.Helper()
	creds := `{"username":"` + username + `","password":"` + password + `"}`
	status, _ := env.post(t, "/register", creds)
	require.Equal(t, http.StatusCreated, status)
	status, _ = env.post(t, "/login", creds)
	require.Equal(t, http.StatusOK, status)
}
