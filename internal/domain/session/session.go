// Package session holds the authenticated identity of the client. Its
// lifecycle is independent of the cart and orders.
package session

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

var (
	// ErrAuth marks authentication failures reported by the server.
	ErrAuth = errors.New("authentication failed")
	// ErrNotAuthenticated is returned by operations that need a token.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// User is the authenticated account.
type User struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// Profile holds registration details.
type Profile struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// Credentials is the result of a successful login or registration.
type Credentials struct {
	User  User
	Token string
}

// Authenticator is the remote authentication collaborator.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*Credentials, error)
	Register(ctx context.Context, p Profile) (*Credentials, error)
	FetchProfile(ctx context.Context) (*User, error)
}

// Store holds the current user and token. Failures are recorded in Err and
// returned to the caller; nothing is retried.
type Store struct {
	auth Authenticator
	lg   *zap.Logger

	mu      sync.RWMutex
	user    *User
	token   string
	loading bool
	err     error
}

// NewStore creates an unauthenticated Store.
func NewStore(auth Authenticator, lg *zap.Logger) *Store {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Store{auth: auth, lg: lg}
}

// Login authenticates with email and password.
func (s *Store) Login(ctx context.Context, email, password string) (*User, error) {
	s.begin()
	creds, err := s.auth.Login(ctx, email, password)
	return s.finish(creds, err, "login")
}

// Register creates an account and signs in with it.
func (s *Store) Register(ctx context.Context, p Profile) (*User, error) {
	s.begin()
	creds, err := s.auth.Register(ctx, p)
	return s.finish(creds, err, "register")
}

// RefreshProfile reloads the user profile of the signed-in account.
func (s *Store) RefreshProfile(ctx context.Context) (*User, error) {
	if !s.Authenticated() {
		s.mu.Lock()
		s.err = ErrNotAuthenticated
		s.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	u, err := s.auth.FetchProfile(ctx)
	if err == nil && u == nil {
		err = errors.New("empty profile")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.err = err
		s.lg.Warn("Profile refresh failed", zap.Error(err))
		return nil, errors.Wrap(err, "fetch profile")
	}
	s.user = u
	s.err = nil
	cp := *u
	return &cp, nil
}

// Logout forgets the user and token.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.token = ""
	s.err = nil
}

// SetToken installs a token obtained out of band.
func (s *Store) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// ClearError drops the recorded error.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
}

// Token returns the bearer token, or an empty string.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the signed-in user.
func (s *Store) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// Authenticated reports whether a token is present.
func (s *Store) Authenticated() bool {
	return s.Token() != ""
}

// Loading reports whether a login or registration is outstanding.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the error of the last failed login, registration or profile
// refresh.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()
}

func (s *Store) finish(creds *Credentials, err error, op string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	if err == nil && (creds == nil || creds.Token == "") {
		err = errors.Wrap(ErrAuth, "empty token")
	}
	if err != nil {
		s.err = err
		s.lg.Warn("Authentication failed", zap.String("op", op), zap.Error(err))
		return nil, errors.Wrap(err, op)
	}

	u := creds.User
	s.user = &u
	s.token = creds.Token
	s.lg.Info("Signed in", zap.String("op", op), zap.String("user_id", u.ID))
	return &u, nil
}
