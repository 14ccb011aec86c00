package session

import (
	"context"
	"net/http"
	"testing"

	"pgregory.net/rapid"

	"github.com/felixgeelhaar/reimburse/internal/credential"
	"github.com/felixgeelhaar/reimburse/internal/platform"
)

// TestSession_IdentityMatchesState checks that across any sequence of session
// operations an identity is exposed exactly when the session is authenticated,
// and an authenticated session always has a stored credential.
func TestSession_IdentityMatchesState(t *testing.T) {
	backend, server := newStubBackend(t)

	rapid.Check(t, func(t *rapid.T) {
		backend.set(func(b *stubBackend) {
			b.refreshStatus = 0
			b.rejectAll = false
		})

		store := credential.NewMemoryStore()
		m := New(platform.NewClient(server.URL), store, Options{SingleFlight: rapid.Bool().Draw(t, "single_flight")})
		ctx := context.Background()

		if err := m.Start(ctx); err != nil {
			t.Fatalf("start: %v", err)
		}

		t.Repeat(map[string]func(*rapid.T){
			"login": func(t *rapid.T) {
				password := rapid.SampledFrom([]string{"correctpw", "wrong"}).Draw(t, "password")
				_, err := m.Login(ctx, "good@example.com", password)
				if password == "correctpw" && err != nil {
					t.Fatalf("login with correct password: %v", err)
				}
				if password == "wrong" && err == nil {
					t.Fatalf("login with wrong password succeeded")
				}
			},
			"logout": func(t *rapid.T) {
				if err := m.Logout(ctx); err != nil {
					t.Fatalf("logout: %v", err)
				}
				if m.IsAuthenticated() {
					t.Fatalf("authenticated after logout")
				}
			},
			"expire": func(t *rapid.T) {
				backend.expire()
			},
			"break_refresh": func(t *rapid.T) {
				status := rapid.SampledFrom([]int{0, http.StatusUnauthorized}).Draw(t, "refresh_status")
				backend.set(func(b *stubBackend) { b.refreshStatus = status })
			},
			"call": func(t *rapid.T) {
				_, _ = m.Client().ListMyReimbursements(ctx, platform.ReimbursementFilter{})
			},
			"refresh_identity": func(t *rapid.T) {
				_ = m.RefreshIdentity(ctx)
			},
			"": func(t *rapid.T) {
				user := m.CurrentUser()
				authenticated := m.IsAuthenticated()
				if (user != nil) != authenticated {
					t.Fatalf("identity %v does not match state %s", user, m.State())
				}
				token, _ := store.Load(ctx)
				if authenticated && token == "" {
					t.Fatalf("authenticated without a stored credential")
				}
				if m.Loading() {
					t.Fatalf("still initializing after start")
				}
			},
		})
	})
}

// TestIdentity_CloneIsIndependent checks that copies handed to callers never
// alias the cached identity.
func TestIdentity_CloneIsIndependent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		orig := &Identity{
			Email: rapid.StringMatching(`[a-z]{1,8}@example\.com`).Draw(t, "email"),
			Preferences: &Preferences{
				Theme: rapid.SampledFrom([]string{"light", "dark"}).Draw(t, "theme"),
			},
		}
		theme := orig.Preferences.Theme

		cp := orig.clone()
		cp.Email = "changed@example.com"
		cp.Preferences.Theme = "changed"

		if orig.Preferences.Theme != theme || orig.Email == "changed@example.com" {
			t.Fatalf("clone aliases the original: %+v", orig)
		}
	})
}

