package web

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/taxledger/recon/internal/config"
)

var (
	// ErrBadPassword is returned when the supplied password does not match.
	ErrBadPassword = errors.New("invalid password")

	// ErrLockedOut is returned when a client has exceeded the failed-attempt
	// limit and must wait out the lockout window.
	ErrLockedOut = errors.New("too many failed attempts")
)

// sessionManager implements the single-password login gate.
//
// A successful login issues an opaque session token that stays valid for the
// configured TTL. Repeated failures from the same IP trigger a temporary
// lockout to slow down password guessing.
type sessionManager struct {
	mu       sync.Mutex
	hash     []byte
	ttl      time.Duration
	maxFails int
	lockout  time.Duration

	sessions map[string]time.Time // token -> expiry
	failures map[string]*failTracker
}

type failTracker struct {
	count       int
	lockedUntil time.Time
}

func newSessionManager(cfg config.AuthConfig) *sessionManager {
	sm := &sessionManager{
		hash:     []byte(cfg.PasswordHash),
		ttl:      cfg.SessionTTL,
		maxFails: cfg.MaxAttempts,
		lockout:  cfg.LockoutDuration,
		sessions: make(map[string]time.Time),
		failures: make(map[string]*failTracker),
	}
	go sm.cleanup()
	return sm
}

// cleanup removes expired sessions and stale failure trackers every minute.
func (sm *sessionManager) cleanup() {
	for {
		time.Sleep(time.Minute)
		sm.sweep(time.Now())
	}
}

// sweep drops expired sessions and failure trackers whose lockout window has
// passed. A tracker that is still locked out, or still counting toward a
// lockout, must survive the sweep.
func (sm *sessionManager) sweep(now time.Time) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for token, expiry := range sm.sessions {
		if now.After(expiry) {
			delete(sm.sessions, token)
		}
	}
	for ip, ft := range sm.failures {
		if !ft.lockedUntil.IsZero() {
			if now.After(ft.lockedUntil) {
				delete(sm.failures, ip)
			}
			continue
		}
		if ft.count == 0 {
			delete(sm.failures, ip)
		}
	}
}

// Login verifies the password and returns a fresh session token.
// Returns ErrLockedOut while the client IP is locked out, ErrBadPassword
// on a mismatch.
func (sm *sessionManager) Login(ip, password string) (string, error) {
	sm.mu.Lock()
	if ft, ok := sm.failures[ip]; ok && time.Now().Before(ft.lockedUntil) {
		sm.mu.Unlock()
		return "", ErrLockedOut
	}
	sm.mu.Unlock()

	// bcrypt comparison happens outside the lock: it is deliberately slow
	if err := bcrypt.CompareHashAndPassword(sm.hash, []byte(password)); err != nil {
		sm.recordFailure(ip)
		return "", ErrBadPassword
	}

	token := uuid.NewString()

	sm.mu.Lock()
	delete(sm.failures, ip)
	sm.sessions[token] = time.Now().Add(sm.ttl)
	sm.mu.Unlock()

	return token, nil
}

func (sm *sessionManager) recordFailure(ip string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ft, ok := sm.failures[ip]
	if !ok {
		ft = &failTracker{}
		sm.failures[ip] = ft
	}
	ft.count++
	if ft.count >= sm.maxFails {
		ft.lockedUntil = time.Now().Add(sm.lockout)
		ft.count = 0
	}
}

// Validate reports whether the token identifies a live session.
func (sm *sessionManager) Validate(token string) bool {
	if token == "" {
		return false
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()

	expiry, ok := sm.sessions[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(sm.sessions, token)
		return false
	}
	return true
}

// Logout invalidates the token. Unknown tokens are ignored.
func (sm *sessionManager) Logout(token string) {
	sm.mu.Lock()
	delete(sm.sessions, token)
	sm.mu.Unlock()
}
