// Package session persists the signed-in user's credentials in local
// storage and answers whether they are still usable without a network call.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"navportal/pkg/models"
	"navportal/pkg/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	KeyToken      = "token"
	KeyTokenType  = "token_type"
	KeyExpiresAt  = "expires_at"
	KeyUser       = "user"
	KeyDeviceInfo = "device_info"
	KeyDeviceID   = "device_id"

	DefaultTokenType = "bearer"
)

// purgeKeys are removed on logout and on any authentication failure.
// device_id is kept so the server can recognise the same device later.
var purgeKeys = []string{KeyToken, KeyTokenType, KeyExpiresAt, KeyUser, KeyDeviceInfo}

type Session struct {
	Token      string
	TokenType  string
	ExpiresAt  time.Time
	User       *models.User
	DeviceInfo json.RawMessage
}

// Header is the Authorization header value for this session.
func (s Session) Header() string {
	if s.Token == "" {
		return ""
	}
	return s.TokenType + " " + s.Token
}

// Expired reports whether a known expiry lies in the past. A session without
// an expiry never expires locally.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type Store struct {
	store  storage.Store
	sealer *Sealer
	now    func() time.Time

	mu sync.Mutex
}

type Option func(*Store)

func WithSealer(s *Sealer) Option {
	return func(st *Store) { st.sealer = s }
}

func WithClock(now func() time.Time) Option {
	return func(st *Store) { st.now = now }
}

func New(store storage.Store, opts ...Option) *Store {
	s := &Store{store: store, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Save persists a freshly issued token. When the server omits expires_at the
// expiry is taken from the token's own exp claim.
func (s *Store) Save(ctx context.Context, tok models.Token, user *models.User) error {
	if tok.AccessToken == "" {
		return errors.New("session: empty access token")
	}

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = DefaultTokenType
	}

	var expires time.Time
	if tok.ExpiresAt != nil && !tok.ExpiresAt.IsZero() {
		expires = tok.ExpiresAt.Time
	} else if exp, ok := TokenExpiry(tok.AccessToken); ok {
		expires = exp
	}

	stored := tok.AccessToken
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(tok.AccessToken)
		if err != nil {
			return err
		}
		stored = sealed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(ctx, KeyToken, []byte(stored)); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if err := s.store.Set(ctx, KeyTokenType, []byte(tokenType)); err != nil {
		return fmt.Errorf("save token type: %w", err)
	}
	if expires.IsZero() {
		if err := s.store.Remove(ctx, KeyExpiresAt); err != nil {
			return fmt.Errorf("clear expiry: %w", err)
		}
	} else if err := s.store.Set(ctx, KeyExpiresAt, []byte(expires.UTC().Format(time.RFC3339Nano))); err != nil {
		return fmt.Errorf("save expiry: %w", err)
	}
	if len(tok.DeviceInfo) > 0 {
		if err := s.store.Set(ctx, KeyDeviceInfo, tok.DeviceInfo); err != nil {
			return fmt.Errorf("save device info: %w", err)
		}
	}
	if user != nil {
		if err := storage.SetJSON(ctx, s.store, KeyUser, user); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
	}
	return nil
}

func (s *Store) SetUser(ctx context.Context, user models.User) error {
	return storage.SetJSON(ctx, s.store, KeyUser, user)
}

// Load returns the stored session. ok is false when no token is stored or the
// stored token cannot be read with the configured key.
func (s *Store) Load(ctx context.Context) (Session, bool, error) {
	raw, ok, err := s.store.Get(ctx, KeyToken)
	if err != nil || !ok || len(raw) == 0 {
		return Session{}, false, err
	}

	token := string(raw)
	if isSealed(token) {
		if s.sealer == nil {
			return Session{}, false, ErrSealed
		}
		token, err = s.sealer.Open(token)
		if err != nil {
			return Session{}, false, err
		}
	}

	sess := Session{Token: token, TokenType: DefaultTokenType}
	if tt, ok, err := s.store.Get(ctx, KeyTokenType); err != nil {
		return Session{}, false, err
	} else if ok && len(tt) > 0 {
		sess.TokenType = string(tt)
	}

	if exp, ok, err := s.store.Get(ctx, KeyExpiresAt); err != nil {
		return Session{}, false, err
	} else if ok {
		ts, err := models.ParseTimestamp(string(exp))
		if err != nil {
			log.Printf("[SESSION] unreadable expiry %q, treating as expired", exp)
			sess.ExpiresAt = time.Unix(0, 0)
		} else {
			sess.ExpiresAt = ts.Time
		}
	}

	var user models.User
	if ok, err := storage.GetJSON(ctx, s.store, KeyUser, &user); err != nil {
		log.Printf("[SESSION] unreadable user: %v", err)
	} else if ok {
		sess.User = &user
	}

	if info, ok, _ := s.store.Get(ctx, KeyDeviceInfo); ok {
		sess.DeviceInfo = info
	}
	return sess, true, nil
}

func (s *Store) AuthHeader(ctx context.Context) string {
	sess, ok, err := s.Load(ctx)
	if err != nil || !ok {
		return ""
	}
	return sess.Header()
}

// IsAuthenticated is a purely local check: a token must be stored and its
// expiry, when known, must not have passed.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	sess, ok, err := s.Load(ctx)
	if err != nil || !ok {
		return false
	}
	return !sess.Expired(s.now())
}

func (s *Store) User(ctx context.Context) (models.User, bool) {
	sess, ok, err := s.Load(ctx)
	if err != nil || !ok || sess.User == nil {
		return models.User{}, false
	}
	return *sess.User, true
}

// Purge removes the stored session. It reports true only for the call that
// actually removed a token, so concurrent failures act once.
func (s *Store) Purge(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, present, err := s.store.Get(ctx, KeyToken)
	if err != nil {
		return false, err
	}
	if err := s.store.Remove(ctx, purgeKeys...); err != nil {
		return false, fmt.Errorf("purge session: %w", err)
	}
	if present {
		log.Println("[SESSION] Local session purged")
	}
	return present, nil
}

// DeviceID returns a stable identifier for this portal install, creating it
// on first use.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.store.Get(ctx, KeyDeviceID)
	if err != nil {
		return "", err
	}
	if ok && len(raw) > 0 {
		return string(raw), nil
	}
	id := uuid.New().String()
	if err := s.store.Set(ctx, KeyDeviceID, []byte(id)); err != nil {
		return "", fmt.Errorf("save device id: %w", err)
	}
	return id, nil
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The portal never holds the signing key; the server remains the authority.
func TokenExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
