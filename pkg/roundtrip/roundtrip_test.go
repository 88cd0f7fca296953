package roundtrip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a terminal RoundTripper that remembers the last request.
type recorder struct {
	last  *http.Request
	calls int
	err   error
}

func (r *recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	r.calls++
	r.last = req
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	return httptest.NewRequest(http.MethodGet, "http://api.example.com/orders", nil)
}

func TestWrap_Order(t *testing.T) {
	var seen []string
	mark := func(name string) Middleware {
		return func(next http.RoundTripper) http.RoundTripper {
			return Func(func(req *http.Request) (*http.Response, error) {
				seen = append(seen, name)
				return next.RoundTrip(req)
			})
		}
	}

	rt := Wrap(&recorder{}, mark("outer"), mark("inner"))
	_, err := rt.RoundTrip(newRequest(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, seen)
}

func TestRequestID(t *testing.T) {
	t.Run("Generated", func(t *testing.T) {
		rec := &recorder{}
		req := newRequest(t)
		_, err := Wrap(rec, RequestID()).RoundTrip(req)
		require.NoError(t, err)

		id := rec.last.Header.Get(HeaderRequestID)
		_, parseErr := uuid.Parse(id)
		assert.NoError(t, parseErr)
		assert.Empty(t, req.Header.Get(HeaderRequestID), "caller request untouched")
	})
	t.Run("FromContext", func(t *testing.T) {
		rec := &recorder{}
		req := newRequest(t).WithContext(WithRequestID(context.Background(), "abc-123"))
		_, err := Wrap(rec, RequestID()).RoundTrip(req)
		require.NoError(t, err)
		assert.Equal(t, "abc-123", rec.last.Header.Get(HeaderRequestID))
	})
	t.Run("ExistingHeaderKept", func(t *testing.T) {
		rec := &recorder{}
		req := newRequest(t)
		req.Header.Set(HeaderRequestID, "given")
		_, err := Wrap(rec, RequestID()).RoundTrip(req)
		require.NoError(t, err)
		assert.Equal(t, "given", rec.last.Header.Get(HeaderRequestID))
	})
	t.Run("InvalidHeaderReplaced", func(t *testing.T) {
		rec := &recorder{}
		req := newRequest(t)
		req.Header.Set(HeaderRequestID, "bad\x01id")
		_, err := Wrap(rec, RequestID()).RoundTrip(req)
		require.NoError(t, err)
		assert.NotEqual(t, "bad\x01id", rec.last.Header.Get(HeaderRequestID))
	})
}

func TestBearer(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		preset string
		want   string
	}{
		{"Anonymous", "", "", ""},
		{"Token", "t0k", "", "Bearer t0k"},
		{"PresetWins", "t0k", "Basic xyz", "Basic xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			req := newRequest(t)
			if tt.preset != "" {
				req.Header.Set("Authorization", tt.preset)
			}
			_, err := Wrap(rec, Bearer(staticToken(tt.token))).RoundTrip(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.last.Header.Get("Authorization"))
		})
	}
}

func TestRecovery(t *testing.T) {
	boom := Func(func(*http.Request) (*http.Response, error) {
		panic("boom")
	})
	resp, err := Wrap(boom, Recovery()).RoundTrip(newRequest(t))
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "boom")
}

func TestLogRequests_PassesErrorsThrough(t *testing.T) {
	want := errors.New("dial failed")
	rec := &recorder{err: want}
	_, err := Wrap(rec, LogRequests()).RoundTrip(newRequest(t))
	require.ErrorIs(t, err, want)
}
