package remote

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/foodcart/internal/domain/session"
)

// Login implements session.Authenticator.
func (c *Client) Login(ctx context.Context, email, password string) (*session.Credentials, error) {
	data, err := c.do(ctx, request{
		op:       "Login",
		endpoint: endpointAuth,
		method:   http.MethodPost,
		path:     []string{"auth", "login"},
		body:     encodeCredentials(email, password),
	})
	if err != nil {
		return nil, err
	}
	return decodeCredentials(data)
}

// Register implements session.Authenticator.
func (c *Client) Register(ctx context.Context, p session.Profile) (*session.Credentials, error) {
	data, err := c.do(ctx, request{
		op:       "Register",
		endpoint: endpointAuth,
		method:   http.MethodPost,
		path:     []string{"auth", "register"},
		body:     encodeProfile(p),
	})
	if err != nil {
		return nil, err
	}
	return decodeCredentials(data)
}

// FetchProfile implements session.Authenticator.
func (c *Client) FetchProfile(ctx context.Context) (*session.User, error) {
	data, err := c.do(ctx, request{
		op:     "FetchProfile",
		method: http.MethodGet,
		path:   []string{"user", "profile"},
	})
	if err != nil {
		return nil, err
	}
	u, err := decodeUser(jx.DecodeBytes(data))
	if err != nil {
		return nil, errors.Wrap(err, "fetch profile")
	}
	return &u, nil
}
