package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestService() *Service {
	return NewService("test-secret", time.Hour)
}

func TestLoginAndVerifyRoundTrip(t *testing.T) {
	s := newTestService()

	token, user, err := s.Login("admin", "password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Privilege != PrivilegeAdmin || token == "" {
		t.Fatalf("unexpected login result: %+v token=%q", user, token)
	}

	verified, err := s.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.Username != "admin" || verified.Privilege != PrivilegeAdmin {
		t.Fatalf("verified wrong account: %+v", verified)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestService()
	if _, _, err := s.Login("admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := s.Login("nobody", "password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestVerifyRejectsGarbageAndForeignTokens(t *testing.T) {
	s := newTestService()
	if _, err := s.Verify("not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}

	other := NewService("different-secret", time.Hour)
	token, _, err := other.Login("admin", "password")
	if err != nil {
		t.Fatalf("login against other service: %v", err)
	}
	if _, err := s.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign signature, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	s := NewService("test-secret", -time.Minute)
	token, _, err := s.Login("admin", "password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := s.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}

func TestRegisterDefaultsAndConflicts(t *testing.T) {
	s := newTestService()

	created, err := s.Register("newbie", "pw", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.Privilege != PrivilegeViewer {
		t.Fatalf("expected viewer default, got %s", created.Privilege)
	}

	if _, err := s.Register("newbie", "pw2", PrivilegeUser); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := s.Register("another", "pw", Privilege("root")); !errors.Is(err, ErrInvalidPrivilege) {
		t.Fatalf("expected ErrInvalidPrivilege, got %v", err)
	}
}

func TestChangePrivilegeAndDelete(t *testing.T) {
	s := newTestService()

	updated, err := s.ChangePrivilege("3", PrivilegeUser)
	if err != nil {
		t.Fatalf("change privilege: %v", err)
	}
	if updated.Privilege != PrivilegeUser {
		t.Fatalf("privilege not updated: %+v", updated)
	}
	if _, err := s.ChangePrivilege("missing", PrivilegeUser); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	if err := s.Delete("1", "1"); !errors.Is(err, ErrSelfDelete) {
		t.Fatalf("expected ErrSelfDelete, got %v", err)
	}
	if err := s.Delete("2", "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := s.Login("user", "password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("deleted account can still log in")
	}
}

func TestVerifyRejectsTokenOfDeletedAccount(t *testing.T) {
	s := newTestService()
	token, _, err := s.Login("user", "password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := s.Delete("2", "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid after account deletion, got %v", err)
	}
}
