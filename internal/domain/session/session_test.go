package session

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAuthenticator struct {
	creds    *Credentials
	err      error
	profile  *User
	logins   int
	register Profile
}

func (m *mockAuthenticator) Login(_ context.Context, _, _ string) (*Credentials, error) {
	m.logins++
	return m.creds, m.err
}

func (m *mockAuthenticator) Register(_ context.Context, p Profile) (*Credentials, error) {
	m.register = p
	return m.creds, m.err
}

func (m *mockAuthenticator) FetchProfile(_ context.Context) (*User, error) {
	return m.profile, m.err
}

func TestLogin_Success(t *testing.T) {
	auth := &mockAuthenticator{creds: &Credentials{
		User:  User{ID: "u1", Name: "Ann", Email: "ann@example.com"},
		Token: "tok",
	}}
	s := NewStore(auth, nil)

	u, err := s.Login(context.Background(), "ann@example.com", "secret")

	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.True(t, s.Authenticated())
	assert.Equal(t, "tok", s.Token())
	assert.False(t, s.Loading())
	assert.NoError(t, s.Err())
}

func TestLogin_FailureNoRetry(t *testing.T) {
	auth := &mockAuthenticator{err: errors.Wrap(ErrAuth, "bad password")}
	s := NewStore(auth, nil)

	_, err := s.Login(context.Background(), "ann@example.com", "wrong")

	require.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 1, auth.logins)
	assert.False(t, s.Authenticated())
	assert.ErrorIs(t, s.Err(), ErrAuth)

	s.ClearError()
	assert.NoError(t, s.Err())
}

func TestLogin_EmptyToken(t *testing.T) {
	s := NewStore(&mockAuthenticator{creds: &Credentials{User: User{ID: "u1"}}}, nil)

	_, err := s.Login(context.Background(), "a", "b")

	require.ErrorIs(t, err, ErrAuth)
	assert.False(t, s.Authenticated())
}

func TestRegister(t *testing.T) {
	auth := &mockAuthenticator{creds: &Credentials{User: User{ID: "u2", Name: "Bo"}, Token: "t2"}}
	s := NewStore(auth, nil)

	u, err := s.Register(context.Background(), Profile{Name: "Bo", Email: "bo@example.com", Password: "x"})

	require.NoError(t, err)
	assert.Equal(t, "Bo", u.Name)
	assert.Equal(t, "bo@example.com", auth.register.Email)
	got, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, "u2", got.ID)
}

func TestLogout(t *testing.T) {
	s := NewStore(&mockAuthenticator{creds: &Credentials{User: User{ID: "u1"}, Token: "tok"}}, nil)
	_, err := s.Login(context.Background(), "a", "b")
	require.NoError(t, err)

	s.Logout()

	assert.False(t, s.Authenticated())
	_, ok := s.User()
	assert.False(t, ok)
}

func TestRefreshProfile(t *testing.T) {
	auth := &mockAuthenticator{profile: &User{ID: "u1", Phone: "555"}}
	s := NewStore(auth, nil)

	_, err := s.RefreshProfile(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)

	assert.ErrorIs(t, s.Err(), ErrNotAuthenticated)

	s.SetToken("tok")
	u, err := s.RefreshProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "555", u.Phone)
	assert.NoError(t, s.Err())
}

func TestRefreshProfile_FailureRecorded(t *testing.T) {
	expired := errors.New("token expired")
	auth := &mockAuthenticator{profile: &User{ID: "u1"}}
	s := NewStore(auth, nil)
	s.SetToken("tok")
	_, err := s.RefreshProfile(context.Background())
	require.NoError(t, err)

	auth.err = expired
	_, err = s.RefreshProfile(context.Background())
	require.ErrorIs(t, err, expired)
	assert.ErrorIs(t, s.Err(), expired)

	u, ok := s.User()
	require.True(t, ok, "previous profile is kept")
	assert.Equal(t, "u1", u.ID)

	s.ClearError()
	assert.NoError(t, s.Err())
}
