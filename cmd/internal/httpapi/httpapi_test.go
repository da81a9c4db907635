package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticVerifier map[string]string

func (s staticVerifier) Verify(raw string, _ time.Time) (string, error) {
	if u, ok := s[raw]; ok {
		return u, nil
	}
	return "", errors.New("unauthenticated")
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"Bearer abc":       "abc",
		"bearer   abc  ":   "abc",
		"Basic abc":        "",
		"Bearer":           "",
		"Token abc.def.gh": "",
	}
	for header, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, BearerToken(r), "header %q", header)
	}
}

func TestRequireBearer(t *testing.T) {
	mw := RequireBearer(staticVerifier{"good": "alice"}, nil)
	var seen string
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CallerFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, header := range []string{"", "Bearer bad", "Basic good"} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "header %q", header)
		assert.Contains(t, rr.Body.String(), `"code":"unauthenticated"`)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer good")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "alice", seen)
}

func TestRequireBearer_RejectionsAreIndistinguishable(t *testing.T) {
	mw := RequireBearer(staticVerifier{"good": "alice"}, nil)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(header string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)
		return rr
	}

	missing := serve("")
	require.Equal(t, http.StatusUnauthorized, missing.Code)

	for _, header := range []string{"Bearer bad", "Bearer a.b.c", "Basic good", "Bearer good."} {
		rr := serve(header)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "header %q", header)
		assert.Equal(t, missing.Body.String(), rr.Body.String(), "header %q", header)
	}

	direct := httptest.NewRecorder()
	WriteUnauthenticated(direct)
	assert.Equal(t, missing.Body.String(), direct.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	decode := func(body string, limit int64) error {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var p payload
		return DecodeJSON(httptest.NewRecorder(), r, limit, &p)
	}

	require.NoError(t, decode(`{"name":"x"}`, 0))
	assert.Error(t, decode(`{"name":"x","extra":1}`, 0))
	assert.Error(t, decode(`{"name":"x"}{"name":"y"}`, 0))
	assert.Error(t, decode(`not json`, 0))
	assert.Error(t, decode(`{"name":"`+strings.Repeat("x", 100)+`"}`, 16))
}

func TestWriteError_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusForbidden, CodeForbidden, "nope")

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"error":{"code":"forbidden","message":"nope"}}`, rr.Body.String())
}
