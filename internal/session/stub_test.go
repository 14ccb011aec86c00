package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/reimburse/internal/credential"
	"github.com/felixgeelhaar/reimburse/internal/platform"
)

type tokenState int

const (
	tokenValid tokenState = iota
	tokenExpired
)

type stubAccount struct {
	user     platform.User
	password string
}

// stubBackend is an in-memory reimbursement backend with scripted failures.
type stubBackend struct {
	mu       sync.Mutex
	accounts map[string]*stubAccount // by email
	tokens   map[string]tokenState
	owners   map[string]string // token -> email
	issued   int

	// Failure toggles.
	refreshStatus int           // refresh answers with this status when non-zero
	refreshDrop   bool          // refresh drops the connection
	refreshDelay  time.Duration // refresh sleeps before answering
	rejectAll     bool          // every authenticated endpoint answers 401
	logoutStatus  int
	logoutDelay   time.Duration
	registerEmpty int // register answers with this status and no body when non-zero

	// Call counters.
	requests  int
	refreshes int
	logins    int
	logouts   int
	lists     int
	mes       int
}

func newStubBackend(t *testing.T) (*stubBackend, *httptest.Server) {
	t.Helper()
	b := &stubBackend{
		accounts: map[string]*stubAccount{},
		tokens:   map[string]tokenState{},
		owners:   map[string]string{},
	}
	b.addAccount("good@example.com", "correctpw", true)

	server := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(server.Close)
	return b, server
}

func (b *stubBackend) addAccount(email, password string, verified bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[email] = &stubAccount{
		password: password,
		user: platform.User{
			ID:            fmt.Sprintf("u%d", len(b.accounts)+1),
			Email:         email,
			FirstName:     "Grace",
			LastName:      "Hopper",
			Role:          platform.RoleEmployee,
			EmailVerified: verified,
		},
	}
}

// issue mints a token for email. b.mu must be held.
func (b *stubBackend) issue(email string) string {
	b.issued++
	token := fmt.Sprintf("tok-%d", b.issued)
	b.tokens[token] = tokenValid
	b.owners[token] = email
	return token
}

// expire marks every valid token as expired; expired tokens can still be refreshed.
func (b *stubBackend) expire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for token, state := range b.tokens {
		if state == tokenValid {
			b.tokens[token] = tokenExpired
		}
	}
}

func (b *stubBackend) set(fn func(b *stubBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *stubBackend) counts() (requests, refreshes, lists int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests, b.refreshes, b.lists
}

func (b *stubBackend) bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// authorize returns the account for a valid bearer. b.mu must be held.
func (b *stubBackend) authorize(r *http.Request) (*stubAccount, bool) {
	if b.rejectAll {
		return nil, false
	}
	token := b.bearer(r)
	if state, ok := b.tokens[token]; !ok || state != tokenValid {
		return nil, false
	}
	return b.accounts[b.owners[token]], true
}

func reply(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func message(msg string) map[string]string {
	return map[string]string{"message": msg}
}

func (b *stubBackend) serve(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	str := func(key string) string {
		s, _ := body[key].(string)
		return s
	}

	b.mu.Lock()
	b.requests++

	switch r.Method + " " + r.URL.Path {
	case "POST /auth/login":
		b.logins++
		acct, ok := b.accounts[str("email")]
		if !ok || acct.password != str("password") {
			b.mu.Unlock()
			reply(w, http.StatusUnauthorized, message("Invalid email or password"))
			return
		}
		token := b.issue(acct.user.Email)
		user := acct.user
		b.mu.Unlock()
		reply(w, http.StatusOK, platform.LoginResponse{Token: token, User: user})

	case "GET /auth/me":
		b.mes++
		acct, ok := b.authorize(r)
		if !ok {
			b.mu.Unlock()
			reply(w, http.StatusUnauthorized, message("Unauthorized"))
			return
		}
		user := acct.user
		b.mu.Unlock()
		reply(w, http.StatusOK, user)

	case "POST /auth/refresh":
		b.refreshes++
		status, drop, delay := b.refreshStatus, b.refreshDrop, b.refreshDelay
		b.mu.Unlock()

		time.Sleep(delay)
		if drop {
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, _ := hj.Hijack()
				_ = conn.Close()
			}
			return
		}
		if status != 0 {
			reply(w, status, message("Invalid token"))
			return
		}

		b.mu.Lock()
		stale := b.bearer(r)
		if _, ok := b.tokens[stale]; !ok {
			b.mu.Unlock()
			reply(w, http.StatusUnauthorized, message("Invalid token"))
			return
		}
		delete(b.tokens, stale)
		token := b.issue(b.owners[stale])
		b.mu.Unlock()
		reply(w, http.StatusOK, map[string]string{"token": token})

	case "POST /auth/logout":
		b.logouts++
		status, delay := b.logoutStatus, b.logoutDelay
		delete(b.tokens, b.bearer(r))
		b.mu.Unlock()

		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		if status != 0 {
			reply(w, status, message("logout failed"))
			return
		}
		reply(w, http.StatusOK, message("Logged out"))

	case "POST /auth/register":
		if b.registerEmpty != 0 {
			status := b.registerEmpty
			b.mu.Unlock()
			w.WriteHeader(status)
			return
		}
		if _, exists := b.accounts[str("email")]; exists {
			b.mu.Unlock()
			reply(w, http.StatusConflict, message("Email already registered"))
			return
		}
		b.mu.Unlock()
		b.addAccount(str("email"), str("password"), false)
		reply(w, http.StatusCreated, message("Verification email sent"))

	case "POST /auth/verify-email":
		if str("token") != "verify-ok" {
			b.mu.Unlock()
			reply(w, http.StatusBadRequest, message("Invalid or expired token"))
			return
		}
		for _, acct := range b.accounts {
			acct.user.EmailVerified = true
		}
		b.mu.Unlock()
		reply(w, http.StatusOK, message("Email verified"))

	case "POST /auth/forgot-password":
		b.mu.Unlock()
		reply(w, http.StatusOK, message("If the account exists, an email was sent"))

	case "POST /auth/reset-password":
		if str("token") != "reset-ok" {
			b.mu.Unlock()
			reply(w, http.StatusBadRequest, message("Invalid or expired reset token"))
			return
		}
		b.accounts["good@example.com"].password = str("newPassword")
		b.mu.Unlock()
		reply(w, http.StatusOK, message("Password reset"))

	case "PATCH /auth/preferences":
		acct, ok := b.authorize(r)
		if !ok {
			b.mu.Unlock()
			reply(w, http.StatusUnauthorized, message("Unauthorized"))
			return
		}
		raw, _ := json.Marshal(body["preferences"])
		var prefs platform.Preferences
		_ = json.Unmarshal(raw, &prefs)
		acct.user.Preferences = &prefs
		user := acct.user
		b.mu.Unlock()
		reply(w, http.StatusOK, user)

	case "GET /reimbursements/me":
		b.lists++
		if _, ok := b.authorize(r); !ok {
			b.mu.Unlock()
			reply(w, http.StatusUnauthorized, message("Unauthorized"))
			return
		}
		b.mu.Unlock()
		reply(w, http.StatusOK, []platform.Reimbursement{{ID: "r1", Amount: 12.5, Status: platform.StatusPending}})

	default:
		b.mu.Unlock()
		reply(w, http.StatusNotFound, message("not found"))
	}
}

// newTestManager wires a Manager to the stub backend with an in-memory store.
func newTestManager(t *testing.T, server *httptest.Server, opts Options) (*Manager, *credential.MemoryStore) {
	t.Helper()
	store := credential.NewMemoryStore()
	m := New(platform.NewClient(server.URL), store, opts)
	t.Cleanup(func() { _ = m.Close() })
	return m, store
}
