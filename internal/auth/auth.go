// Package auth holds the user registry, bearer-token issue/verify, and the
// privilege decisions gating map creation.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Privilege is a user's access level.
type Privilege string

const (
	PrivilegeAdmin  Privilege = "admin"
	PrivilegeUser   Privilege = "user"
	PrivilegeViewer Privilege = "viewer"
)

// Valid reports whether p is one of the known privilege levels.
func (p Privilege) Valid() bool {
	switch p {
	case PrivilegeAdmin, PrivilegeUser, PrivilegeViewer:
		return true
	}
	return false
}

// User is the externally visible account record.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Privilege Privilege `json:"privilege"`
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidPrivilege   = errors.New("invalid privilege: use admin, user, or viewer")
	ErrSelfDelete         = errors.New("you cannot delete your own account")
	ErrTokenInvalid       = errors.New("token is invalid")
)

type claims struct {
	Username string    `json:"user"`
	Role     Privilege `json:"role"`
	jwt.RegisteredClaims
}

type userRecord struct {
	User
	passwordHash []byte
}

// Service manages accounts and signs the tokens that authenticate them.
// Safe for concurrent use.
type Service struct {
	mu       sync.RWMutex
	users    map[string]*userRecord // keyed by id
	secret   []byte
	tokenTTL time.Duration
}

// NewService returns a service seeded with the bootstrap accounts. The
// seeded passwords exist so a fresh deployment is reachable; they are
// expected to be rotated through the admin panel.
func NewService(secret string, tokenTTL time.Duration) *Service {
	s := &Service{
		users:    make(map[string]*userRecord),
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
	seed := []struct {
		id, username, password string
		privilege              Privilege
	}{
		{"1", "admin", "password", PrivilegeAdmin},
		{"2", "user", "password", PrivilegeUser},
		{"3", "viewer", "password", PrivilegeViewer},
		{"4", "network_ops", "ops_password", PrivilegeUser},
	}
	for _, u := range seed {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			// bcrypt only fails on invalid cost, which is constant here
			panic(fmt.Sprintf("seed user %q: %v", u.username, err))
		}
		s.users[u.id] = &userRecord{
			User:         User{ID: u.id, Username: u.username, Privilege: u.privilege},
			passwordHash: hash,
		}
	}
	return s
}

// Login verifies credentials and returns a signed bearer token plus the
// account it identifies.
func (s *Service) Login(username, password string) (string, User, error) {
	s.mu.RLock()
	rec := s.findByUsername(username)
	s.mu.RUnlock()
	if rec == nil {
		return "", User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(password)); err != nil {
		return "", User{}, ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: rec.Username,
		Role:     rec.Privilege,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", User{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, rec.User, nil
}

// Verify parses a bearer token and resolves the account it names.
func (s *Service) Verify(tokenString string) (User, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return User{}, ErrTokenInvalid
	}
	c, ok := parsed.Claims.(*claims)
	if !ok {
		return User{}, ErrTokenInvalid
	}

	s.mu.RLock()
	rec := s.findByUsername(c.Username)
	s.mu.RUnlock()
	if rec == nil {
		// account deleted after the token was issued
		return User{}, ErrTokenInvalid
	}
	return rec.User, nil
}

// Register creates a new account. An empty privilege defaults to viewer.
func (s *Service) Register(username, password string, privilege Privilege) (User, error) {
	if privilege == "" {
		privilege = PrivilegeViewer
	}
	if !privilege.Valid() {
		return User{}, ErrInvalidPrivilege
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findByUsername(username) != nil {
		return User{}, ErrUsernameTaken
	}
	id := uuid.NewString()
	rec := &userRecord{
		User:         User{ID: id, Username: username, Privilege: privilege},
		passwordHash: hash,
	}
	s.users[id] = rec
	return rec.User, nil
}

// Users lists every account.
func (s *Service) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, rec := range s.users {
		out = append(out, rec.User)
	}
	return out
}

// ChangePrivilege updates the privilege level of the account with id.
func (s *Service) ChangePrivilege(id string, privilege Privilege) (User, error) {
	if !privilege.Valid() {
		return User{}, ErrInvalidPrivilege
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	rec.Privilege = privilege
	return rec.User, nil
}

// Delete removes the account with id. The requester cannot remove itself.
func (s *Service) Delete(id, requesterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if rec.ID == requesterID {
		return ErrSelfDelete
	}
	delete(s.users, id)
	return nil
}

// callers must hold s.mu
func (s *Service) findByUsername(username string) *userRecord {
	for _, rec := range s.users {
		if rec.Username == username {
			return rec
		}
	}
	return nil
}
