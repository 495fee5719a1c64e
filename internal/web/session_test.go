package web

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/taxledger/recon/internal/config"
)

func newTestSessions(t *testing.T, cfg config.AuthConfig) *sessionManager {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg.PasswordHash = string(hash)
	return newSessionManager(cfg)
}

func TestSessionLoginAndValidate(t *testing.T) {
	sm := newTestSessions(t, config.AuthConfig{
		SessionTTL:  time.Hour,
		MaxAttempts: 3,
	})

	token, err := sm.Login("10.0.0.1", "correct-horse")
	if err != nil {
		t.Fatal(err)
	}
	if token == "" {
		t.Fatal("empty session token")
	}
	if !sm.Validate(token) {
		t.Error("fresh token failed validation")
	}

	sm.Logout(token)
	if sm.Validate(token) {
		t.Error("token valid after logout")
	}
}

func TestSessionLogin_BadPassword(t *testing.T) {
	sm := newTestSessions(t, config.AuthConfig{
		SessionTTL:  time.Hour,
		MaxAttempts: 3,
	})

	if _, err := sm.Login("10.0.0.1", "wrong"); !errors.Is(err, ErrBadPassword) {
		t.Errorf("err = %v, want ErrBadPassword", err)
	}
}

func TestSessionLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	sm := newTestSessions(t, config.AuthConfig{
		SessionTTL:      time.Hour,
		MaxAttempts:     2,
		LockoutDuration: time.Hour,
	})

	for i := 0; i < 2; i++ {
		if _, err := sm.Login("10.0.0.9", "wrong"); !errors.Is(err, ErrBadPassword) {
			t.Fatalf("attempt %d: err = %v, want ErrBadPassword", i, err)
		}
	}

	// Locked out now, even with the right password.
	if _, err := sm.Login("10.0.0.9", "correct-horse"); !errors.Is(err, ErrLockedOut) {
		t.Errorf("err = %v, want ErrLockedOut", err)
	}

	// Other clients are unaffected.
	if _, err := sm.Login("10.0.0.10", "correct-horse"); err != nil {
		t.Errorf("unrelated client: %v", err)
	}
}

func TestSessionLockout_SurvivesSweep(t *testing.T) {
	sm := newTestSessions(t, config.AuthConfig{
		SessionTTL:      time.Hour,
		MaxAttempts:     2,
		LockoutDuration: time.Hour,
	})

	for i := 0; i < 2; i++ {
		if _, err := sm.Login("10.0.0.9", "wrong"); !errors.Is(err, ErrBadPassword) {
			t.Fatalf("attempt %d: err = %v, want ErrBadPassword", i, err)
		}
	}

	// A sweep during the lockout window must keep the tracker alive.
	sm.sweep(time.Now())
	if _, err := sm.Login("10.0.0.9", "correct-horse"); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("err after sweep = %v, want ErrLockedOut", err)
	}

	// Once the window has passed the tracker is dropped and login works.
	sm.sweep(time.Now().Add(2 * time.Hour))
	if _, err := sm.Login("10.0.0.9", "correct-horse"); err != nil {
		t.Errorf("err after lockout expiry = %v, want success", err)
	}
}

func TestSessionSweep_DropsExpiredSessions(t *testing.T) {
	sm := newTestSessions(t, config.AuthConfig{
		SessionTTL:  time.Hour,
		MaxAttempts: 3,
	})

	token, err := sm.Login("10.0.0.1", "correct-horse")
	if err != nil {
		t.Fatal(err)
	}

	sm.sweep(time.Now().Add(2 * time.Hour))
	if sm.Validate(token) {
		t.Error("token valid after its expiry was swept")
	}
}

func TestSessionLogin_SuccessClearsFailures(t *testing.T) {
	sm := newTestSessions(t, config.AuthConfig{
		SessionTTL:      time.Hour,
		MaxAttempts:     2,
		LockoutDuration: time.Hour,
	})

	if _, err := sm.Login("10.0.0.1", "wrong"); !errors.Is(err, ErrBadPassword) {
		t.Fatal(err)
	}
	if _, err := sm.Login("10.0.0.1", "correct-horse"); err != nil {
		t.Fatal(err)
	}

	// The counter restarted, so one more failure does not lock out.
	if _, err := sm.Login("10.0.0.1", "wrong"); !errors.Is(err, ErrBadPassword) {
		t.Errorf("err = %v, want ErrBadPassword", err)
	}
	if _, err := sm.Login("10.0.0.1", "correct-horse"); err != nil {
		t.Errorf("err = %v, want login to succeed", err)
	}
}

func TestSessionValidate_Expiry(t *testing.T) {
	sm := newTestSessions(t, config.AuthConfig{
		SessionTTL:  -time.Minute, // already expired at issue time
		MaxAttempts: 3,
	})

	token, err := sm.Login("10.0.0.1", "correct-horse")
	if err != nil {
		t.Fatal(err)
	}
	if sm.Validate(token) {
		t.Error("expired token passed validation")
	}
}

func TestSessionValidate_EmptyAndUnknown(t *testing.T) {
	sm := newTestSessions(t, config.AuthConfig{
		SessionTTL:  time.Hour,
		MaxAttempts: 3,
	})

	if sm.Validate("") {
		t.Error("empty token passed validation")
	}
	if sm.Validate("not-a-token") {
		t.Error("unknown token passed validation")
	}
}
