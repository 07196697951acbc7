package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IMBotPlatform/imagestudio/pkg/kv"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newProvider(t *testing.T, clock *fakeClock, opts ...Option) *TokenProvider {
	t.Helper()
	p, err := NewTokenProvider(Config{
		SigningKey: []byte("test-signing-key"),
		Issuer:     "imagestudio",
		Now:        clock.Now,
	}, opts...)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func TestNewTokenProviderValidation(t *testing.T) {
	if _, err := NewTokenProvider(Config{Issuer: "x"}); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if _, err := NewTokenProvider(Config{SigningKey: []byte("k")}); err == nil {
		t.Fatalf("expected error for missing issuer")
	}
}

func TestSignInCurrentUserSignOut(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := newProvider(t, clock)

	if _, err := p.CurrentUser(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}

	token, err := p.Issue("u1", "u1@example.com", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ident, err := p.SignIn(ctx, token)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if ident.UID != "u1" || ident.Email != "u1@example.com" {
		t.Fatalf("unexpected identity %#v", ident)
	}

	cur, err := p.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if cur.UID != "u1" || !cur.ExpiresAt.Equal(clock.now.Add(time.Hour)) {
		t.Fatalf("unexpected current identity %#v", cur)
	}

	if err := p.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := p.CurrentUser(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn after sign out, got %v", err)
	}
}

func TestCurrentUserExpired(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := newProvider(t, clock)

	token, _ := p.Issue("u1", "", time.Minute)
	if _, err := p.SignIn(ctx, token); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	clock.now = clock.now.Add(time.Hour)
	if _, err := p.CurrentUser(ctx); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestSignInRejectsForeignToken(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	p := newProvider(t, clock)

	other, err := NewTokenProvider(Config{SigningKey: []byte("other-key"), Issuer: "imagestudio", Now: clock.Now})
	if err != nil {
		t.Fatalf("other provider: %v", err)
	}
	token, _ := other.Issue("u1", "", time.Hour)

	if _, err := p.SignIn(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := p.SignIn(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
	if _, err := p.CurrentUser(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("rejected token must not become current, got %v", err)
	}
}

func TestTokenPersistence(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	store := kv.NewMemoryStore()

	first := newProvider(t, clock, WithTokenStore(store))
	token, _ := first.Issue("u9", "", time.Hour)
	if _, err := first.SignIn(ctx, token); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	second := newProvider(t, clock, WithTokenStore(store))
	ident, err := second.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("restore session: %v", err)
	}
	if ident.UID != "u9" {
		t.Fatalf("unexpected uid %q", ident.UID)
	}

	if err := second.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := store.Get(ctx, tokenKey); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected persisted token removed, got %v", err)
	}
}
