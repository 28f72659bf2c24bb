package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cardlink-app/cardlink-web/internal/domain"
)

type mockAccounts struct {
	identity    string
	identityErr error
	deleted     bool
	cancelled   bool
}

func (m *mockAccounts) FetchIdentity(ctx context.Context, token string) (string, error) {
	if m.identityErr != nil {
		return "", m.identityErr
	}
	return m.identity, nil
}

func (m *mockAccounts) DeleteAccount(ctx context.Context, token string) error {
	m.deleted = true
	return nil
}

func (m *mockAccounts) CancelSubscription(ctx context.Context, token string) error {
	m.cancelled = true
	return nil
}

func newTestSessions(accounts *mockAccounts) *SessionService {
	return NewSessionService(NewMemoryTokenStore(), accounts, "test-secret", time.Hour, zap.NewNop())
}

func TestSessionLoginAndAuthenticate(t *testing.T) {
	s := newTestSessions(&mockAccounts{identity: "u-1"})

	cookie, ownerID, err := s.Login(context.Background(), "api-token")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if ownerID != "u-1" {
		t.Fatalf("unexpected owner %q", ownerID)
	}

	session, err := s.Authenticate(context.Background(), cookie)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if session.OwnerID != "u-1" || session.Token != "api-token" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestSessionLoginRejectsBadToken(t *testing.T) {
	s := newTestSessions(&mockAccounts{identityErr: domain.ValidationError{Message: "unauthorized"}})

	_, _, err := s.Login(context.Background(), "bad-token")
	if !errors.Is(err, domain.ValidationError{}) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSessionAuthenticateRejectsForgedCookie(t *testing.T) {
	s := newTestSessions(&mockAccounts{identity: "u-1"})
	forged := newTestSessions(&mockAccounts{identity: "u-1"})
	forged.secret = []byte("other-secret")

	cookie, _, err := forged.Login(context.Background(), "api-token")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := s.Authenticate(context.Background(), cookie); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("forged cookie must be rejected, got %v", err)
	}
}

func TestSessionLogoutInvalidates(t *testing.T) {
	s := newTestSessions(&mockAccounts{identity: "u-1"})

	cookie, _, _ := s.Login(context.Background(), "api-token")
	session, _ := s.Authenticate(context.Background(), cookie)

	if err := s.Logout(context.Background(), session.ID); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := s.Authenticate(context.Background(), cookie); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("logged-out cookie must be rejected, got %v", err)
	}
}

func TestSessionCancelSubscriptionDelegates(t *testing.T) {
	accounts := &mockAccounts{identity: "u-1"}
	s := newTestSessions(accounts)

	if err := s.CancelSubscription(context.Background(), "api-token"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if !accounts.cancelled {
		t.Fatalf("cancellation must reach the account service")
	}
}

func TestMemoryTokenStoreExpiry(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()

	store.Put(ctx, "sid", "tok", -time.Second)
	if _, err := store.Get(ctx, "sid"); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("expired entry must be gone, got %v", err)
	}
}
