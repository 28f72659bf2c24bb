package service

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/cardlink-app/cardlink-web/internal/domain"
	"github.com/cardlink-app/cardlink-web/internal/usecase"
)

var tracer = otel.Tracer("service")

// TokenStore keeps the upstream API bearer token keyed by session id. The
// token never leaves the server; the browser only ever sees the session
// cookie.
type TokenStore interface {
	Put(ctx context.Context, sessionID string, token string, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (string, error)
	Delete(ctx context.Context, sessionID string) error
}

type redisTokenStore struct {
	rdb *redis.Client
}

func NewRedisTokenStore(rdb *redis.Client) TokenStore {
	return &redisTokenStore{rdb: rdb}
}

func (s *redisTokenStore) key(sessionID string) string {
	return "session:" + sessionID
}

func (s *redisTokenStore) Put(ctx context.Context, sessionID string, token string, ttl time.Duration) error {
	err := s.rdb.Set(ctx, s.key(sessionID), token, ttl).Err()
	if err != nil {
		return errors.Wrap(err, "failed to store session token")
	}
	return nil
}

func (s *redisTokenStore) Get(ctx context.Context, sessionID string) (string, error) {
	val, err := s.rdb.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return "", domain.ErrNoSession
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to load session token")
	}
	return val, nil
}

func (s *redisTokenStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, s.key(sessionID)).Err()
}

type memoryEntry struct {
	token   string
	expires time.Time
}

type memoryTokenStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryTokenStore backs sessions with process memory. Dev and test use
// only; sessions do not survive a restart.
func NewMemoryTokenStore() TokenStore {
	return &memoryTokenStore{entries: map[string]memoryEntry{}}
}

func (s *memoryTokenStore) Put(_ context.Context, sessionID string, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = memoryEntry{token: token, expires: time.Now().Add(ttl)}
	return nil
}

func (s *memoryTokenStore) Get(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok || time.Now().After(e.expires) {
		delete(s.entries, sessionID)
		return "", domain.ErrNoSession
	}
	return e.token, nil
}

func (s *memoryTokenStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

// SessionService exchanges an upstream API token for a server-side session
// and a signed cookie, and restores sessions on later requests.
type SessionService struct {
	store    TokenStore
	accounts usecase.AccountRepository
	secret   []byte
	ttl      time.Duration
	logger   *zap.Logger
}

func NewSessionService(store TokenStore, accounts usecase.AccountRepository, secret string, ttl time.Duration, logger *zap.Logger) *SessionService {
	return &SessionService{
		store:    store,
		accounts: accounts,
		secret:   []byte(secret),
		ttl:      ttl,
		logger:   logger,
	}
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Login verifies the upstream token by resolving the account identity, then
// mints a session. Returns the signed cookie value and the owner id.
func (s *SessionService) Login(ctx context.Context, apiToken string) (string, string, error) {
	ctx, span := tracer.Start(ctx, "Session.Service.Login")
	defer span.End()

	ownerID, err := s.accounts.FetchIdentity(ctx, apiToken)
	if err != nil {
		span.RecordError(err)
		return "", "", err
	}

	sessionID := uuid.New().String()
	if err := s.store.Put(ctx, sessionID, apiToken, s.ttl); err != nil {
		span.RecordError(err)
		return "", "", err
	}

	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		span.RecordError(err)
		return "", "", errors.Wrap(err, "failed to sign session cookie")
	}

	s.logger.Info("session created", zap.String("owner", ownerID))
	return signed, ownerID, nil
}

// Session is a restored, validated session.
type Session struct {
	ID      string
	OwnerID string
	Token   string
}

// Authenticate validates a session cookie and resolves the upstream token.
func (s *SessionService) Authenticate(ctx context.Context, cookieValue string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "Session.Service.Authenticate")
	defer span.End()

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(cookieValue, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, domain.ErrNoSession
	}

	token, err := s.store.Get(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	return &Session{ID: claims.ID, OwnerID: claims.Subject, Token: token}, nil
}

// CancelSubscription forwards a confirmed subscription cancellation upstream.
func (s *SessionService) CancelSubscription(ctx context.Context, apiToken string) error {
	ctx, span := tracer.Start(ctx, "Session.Service.CancelSubscription")
	defer span.End()

	if err := s.accounts.CancelSubscription(ctx, apiToken); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("subscription cancelled")
	return nil
}

// DeleteAccount forwards a confirmed account deletion upstream.
func (s *SessionService) DeleteAccount(ctx context.Context, apiToken string) error {
	ctx, span := tracer.Start(ctx, "Session.Service.DeleteAccount")
	defer span.End()

	if err := s.accounts.DeleteAccount(ctx, apiToken); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("account deleted")
	return nil
}

// Logout drops the server-side session; the cookie is expired by the caller.
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	ctx, span := tracer.Start(ctx, "Session.Service.Logout")
	defer span.End()

	if err := s.store.Delete(ctx, sessionID); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("session destroyed", zap.String("session", sessionID))
	return nil
}
