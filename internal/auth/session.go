package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNoSession indicates the request carries no valid session.
var ErrNoSession = errors.New("auth: no session")

// SessionManager stores cookie-based sessions in Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
}

// Session is the authenticated association between a cookie and a user.
type Session struct {
	ID       string
	UserID   int64
	IssuedAt time.Time
}

type sessionPayload struct {
	UserID   int64     `json:"user_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{client: client, cookieName: cookieName, ttl: ttl, secure: secure}
}

// CookieName returns the session cookie identifier.
func (sm *SessionManager) CookieName() string { return sm.cookieName }

// TTL returns the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration { return sm.ttl }

// Load resolves the request's session cookie. ErrNoSession covers a
// missing cookie and an expired or unknown session id alike.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("auth: load session: %w", err)
	}
	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("auth: decode session: %w", err)
	}
	return &Session{ID: cookie.Value, UserID: stored.UserID, IssuedAt: stored.IssuedAt}, nil
}

// Create issues a fresh session for the user and sets the cookie.
func (sm *SessionManager) Create(ctx context.Context, w http.ResponseWriter, userID int64) (*Session, error) {
	sess := &Session{ID: uuid.NewString(), UserID: userID, IssuedAt: time.Now().UTC()}
	data, err := json.Marshal(sessionPayload{UserID: sess.UserID, IssuedAt: sess.IssuedAt})
	if err != nil {
		return nil, err
	}
	if err := sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err(); err != nil {
		return nil, fmt.Errorf("auth: store session: %w", err)
	}
	http.SetCookie(w, sm.cookie(sess.ID, time.Now().Add(sm.ttl), 0))
	return sess, nil
}

// Destroy deletes the request's session and clears the cookie.
func (sm *SessionManager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		return nil
	}
	if err := sm.client.Del(ctx, sm.redisKey(cookie.Value)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("auth: destroy session: %w", err)
	}
	http.SetCookie(w, sm.cookie("", time.Time{}, -1))
	return nil
}

func (sm *SessionManager) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  expires,
		MaxAge:   maxAge,
	}
}

func (sm *SessionManager) redisKey(id string) string {
	return "crucible:session:" + id
}
