package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/felixgeelhaar/reimburse/internal/platform"
)

const testSigningKey = "test-signing-key"

// fakeBackend serves the reimbursement API endpoints the CLI talks to.
type fakeBackend struct {
	mu       sync.Mutex
	user     platform.User
	password string
	tokens   map[string]bool // token -> still valid
	issued   int

	rejectRefresh bool
	uploads       []string
	created       []platform.NewReimbursement
	notifyPrefs   platform.NotificationPreferences
	deletedTeams  []string

	logins    int
	logouts   int
	refreshes int
	requests  int
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	b := &fakeBackend{
		user: platform.User{
			ID:            "u1",
			Email:         "grace@example.com",
			FirstName:     "Grace",
			LastName:      "Hopper",
			Role:          platform.RoleEmployee,
			EmailVerified: true,
		},
		password: "correctpw",
		tokens:   map[string]bool{},
		notifyPrefs: platform.NotificationPreferences{
			Email: platform.ChannelPreferences{ReimbursementUpdates: true, BudgetAlerts: true},
			InApp: platform.ChannelPreferences{ReimbursementUpdates: true, BudgetAlerts: true, Comments: true},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", b.login)
	mux.HandleFunc("GET /auth/me", b.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, b.currentUser())
	}))
	mux.HandleFunc("POST /auth/refresh", b.refresh)
	mux.HandleFunc("POST /auth/logout", b.logout)
	mux.HandleFunc("POST /auth/register", b.register)
	mux.HandleFunc("POST /auth/verify-email", b.verifyEmail)
	mux.HandleFunc("PATCH /auth/preferences", b.authed(b.preferences))
	mux.HandleFunc("GET /users/me", b.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, b.currentUser())
	}))
	mux.HandleFunc("GET /reimbursements/me", b.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []platform.Reimbursement{{
			ID:          "r-100",
			Amount:      42.5,
			Category:    platform.CategoryMeals,
			Description: "Team lunch",
			Status:      r.URL.Query().Get("status"),
		}})
	}))
	mux.HandleFunc("POST /uploads/receipt", b.authed(b.upload))
	mux.HandleFunc("POST /reimbursements", b.authed(b.create))
	mux.HandleFunc("GET /teams/{id}/budget", b.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, platform.TeamBudget{
			TeamID:    r.PathValue("id"),
			Amount:    1000,
			Currency:  "EUR",
			Period:    r.URL.Query().Get("period"),
			Spent:     250,
			Remaining: 750,
		})
	}))
	mux.HandleFunc("DELETE /teams/{id}", b.authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.deletedTeams = append(b.deletedTeams, r.PathValue("id"))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET /notifications/preferences", b.authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, b.notifyPrefs)
	}))
	mux.HandleFunc("PUT /notifications/preferences", b.authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&b.notifyPrefs)
		writeJSON(w, http.StatusOK, b.notifyPrefs)
	}))
	mux.HandleFunc("GET /reimbursements/export/{format}", b.authed(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("format") != platform.ExportCSV {
			writeMessage(w, http.StatusBadRequest, "Unsupported export format")
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprintf(w, "id,amount,status\nr-100,42.50,%s\n", r.URL.Query().Get("status"))
	}))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests++
		b.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	return b, server
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// issue mints a signed JWT for the user. b.mu must be held.
func (b *fakeBackend) issue() string {
	b.issued++
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   b.user.ID,
		"email": b.user.Email,
		"jti":   fmt.Sprint(b.issued),
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSigningKey))
	if err != nil {
		panic(err)
	}
	b.tokens[token] = true
	return token
}

func (b *fakeBackend) expire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for token := range b.tokens {
		b.tokens[token] = false
	}
}

func (b *fakeBackend) currentUser() platform.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.user
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (b *fakeBackend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		valid := b.tokens[bearer(r)]
		b.mu.Unlock()
		if !valid {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var req platform.LoginRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.logins++
	if req.Email != b.user.Email || req.Password != b.password {
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, platform.LoginResponse{Token: b.issue(), User: b.user})
}

func (b *fakeBackend) refresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshes++
	stale := bearer(r)
	if _, known := b.tokens[stale]; !known || b.rejectRefresh {
		writeMessage(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	delete(b.tokens, stale)
	writeJSON(w, http.StatusOK, map[string]string{"token": b.issue()})
}

func (b *fakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logouts++
	delete(b.tokens, bearer(r))
	writeMessage(w, http.StatusOK, "Logged out")
}

func (b *fakeBackend) register(w http.ResponseWriter, r *http.Request) {
	var req platform.RegisterRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Email == "grace@example.com" {
		writeMessage(w, http.StatusConflict, "Email already registered")
		return
	}
	writeMessage(w, http.StatusCreated, "Verification email sent")
}

func (b *fakeBackend) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Token != "verify-ok" {
		writeMessage(w, http.StatusBadRequest, "Invalid or expired token")
		return
	}
	writeMessage(w, http.StatusOK, "Email verified")
}

func (b *fakeBackend) preferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preferences platform.Preferences `json:"preferences"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	b.user.Preferences = &req.Preferences
	user := b.user
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, user)
}

func (b *fakeBackend) upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("receipt")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "receipt is required")
		return
	}
	_ = file.Close()

	b.mu.Lock()
	b.uploads = append(b.uploads, header.Filename)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"url": "https://files.example.com/" + header.Filename})
}

func (b *fakeBackend) create(w http.ResponseWriter, r *http.Request) {
	var req platform.NewReimbursement
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	b.created = append(b.created, req)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, platform.Reimbursement{
		ID:          "r-200",
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		ReceiptURL:  req.ReceiptURL,
		Status:      platform.StatusPending,
	})
}

// cliEnv isolates a CLI run: a temp HOME, a file credential store and the
// fake backend as API URL.
type cliEnv struct {
	t         *testing.T
	backend   *fakeBackend
	server    *httptest.Server
	storePath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	backend, server := newFakeBackend(t)
	home := t.TempDir()

	t.Setenv("HOME", home)
	t.Setenv("CI", "true")
	t.Setenv("REIMBURSE_API_URL", server.URL)
	t.Setenv("REIMBURSE_STORE", "file")
	t.Setenv("REIMBURSE_STORE_PATH", filepath.Join(home, "credentials.json"))
	t.Setenv("REIMBURSE_STORE_PASSPHRASE", "test-passphrase")
	t.Setenv("REIMBURSE_LOG_LEVEL", "error")

	return &cliEnv{t: t, backend: backend, server: server, storePath: filepath.Join(home, "credentials.json")}
}

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// run executes one CLI invocation with a fresh command tree.
func (e *cliEnv) run(stdin string, args ...string) cliResult {
	e.t.Helper()
	root := NewRootCmd()

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := execute(context.Background(), root)
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func (e *cliEnv) login() {
	e.t.Helper()
	res := e.run("correctpw\n", "auth", "login", "--email", "grace@example.com", "--password-stdin")
	if res.err != nil {
		e.t.Fatalf("login failed: %v\n%s", res.err, res.stderr)
	}
}
