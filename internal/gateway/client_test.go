package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"ping_client/internal/domain"
	"ping_client/internal/gateway"
	"ping_client/internal/store/memory"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAuthorizationHeader(t *testing.T) {
	var got []string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	stored := gateway.New(srv.URL, memory.NewCredentialStore("stored-tok"), gateway.Options{})
	_, err := stored.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/api/auth/verify"})
	require.NoError(t, err)
	_, err = stored.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/api/auth/me", Token: "explicit-tok"})
	require.NoError(t, err)

	anonymous := gateway.New(srv.URL, memory.NewCredentialStore(""), gateway.Options{})
	_, err = anonymous.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/api/auth/verify"})
	require.NoError(t, err)

	noStore := gateway.New(srv.URL, nil, gateway.Options{})
	_, err = noStore.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/api/auth/verify"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer stored-tok", "Bearer explicit-tok", "", ""}, got)
}

type failingStore struct{ memory.CredentialStore }

func (*failingStore) Get(context.Context) (string, error) { return "", errors.New("disk on fire") }

func TestStoreFailureProceedsUnauthenticated(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	})
	c := gateway.New(srv.URL, &failingStore{}, gateway.Options{})
	_, err := c.Do(context.Background(), gateway.Request{Path: "/x"})
	assert.NoError(t, err)
}

func TestJSONRequestEncoding(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "alice", r.URL.Query().Get("username"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"text": "hi"}, body)
		writeJSON(w, http.StatusOK, map[string]any{"id": 3, "text": "hi"})
	})
	c := gateway.New(srv.URL, nil, gateway.Options{})

	type reply struct {
		ID   int64  `json:"id"`
		Text string `json:"text"`
	}
	out, err := gateway.Call[reply](context.Background(), c, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/chat/conversation/1",
		Query:  url.Values{"username": {"alice"}},
		Body:   map[string]string{"text": "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, reply{ID: 3, Text: "hi"}, out)
}

func TestGetWithoutBodySendsNothing(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		assert.Empty(t, b)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		writeJSON(w, http.StatusOK, []string{})
	})
	c := gateway.New(srv.URL, nil, gateway.Options{})
	_, err := gateway.Call[[]string](context.Background(), c, gateway.Request{Path: "/list"})
	assert.NoError(t, err)
}

func TestResponseDecodingByContentType(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json":
			writeJSON(w, http.StatusOK, map[string]int{"n": 1})
		case "/text":
			w.Header().Set("Content-Type", "text/plain;charset=UTF-8")
			_, _ = w.Write([]byte(`{"looks":"like json"}`))
		case "/binary":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte{0x1, 0x2})
		case "/empty":
			w.WriteHeader(http.StatusOK)
		}
	})
	c := gateway.New(srv.URL, nil, gateway.Options{})
	ctx := context.Background()

	p, err := c.Do(ctx, gateway.Request{Path: "/json"})
	require.NoError(t, err)
	assert.Equal(t, gateway.PayloadJSON, p.Kind)
	assert.JSONEq(t, `{"n":1}`, string(p.JSON))

	text, err := gateway.Call[string](ctx, c, gateway.Request{Path: "/text"})
	require.NoError(t, err)
	assert.Equal(t, `{"looks":"like json"}`, text)

	p, err = c.Do(ctx, gateway.Request{Path: "/binary"})
	require.NoError(t, err)
	assert.Equal(t, gateway.PayloadNone, p.Kind)

	p, err = c.Do(ctx, gateway.Request{Path: "/empty"})
	require.NoError(t, err)
	assert.Equal(t, gateway.PayloadNone, p.Kind)
}

func TestStatusErrorMessage(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/message":
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Username already taken!"})
		case "/empty-message":
			writeJSON(w, http.StatusConflict, map[string]string{"message": ""})
		case "/list":
			writeJSON(w, http.StatusNotFound, []int{1})
		case "/text":
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("Error: boom"))
		}
	})
	c := gateway.New(srv.URL, nil, gateway.Options{})
	ctx := context.Background()

	tests := []struct {
		path    string
		status  int
		message string
	}{
		{"/message", http.StatusBadRequest, "Username already taken!"},
		{"/empty-message", http.StatusConflict, "Conflict"},
		{"/list", http.StatusNotFound, "Not Found"},
		{"/text", http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, err := c.Do(ctx, gateway.Request{Path: tt.path})
			require.Error(t, err)
			assert.Equal(t, tt.message, err.Error())
			assert.True(t, gateway.IsKind(err, gateway.KindStatus))
			assert.Equal(t, tt.status, gateway.StatusOf(err))
			require.NotNil(t, p, "error payloads stay inspectable")
		})
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestStatusErrorFallsBackToGenericMessage(t *testing.T) {
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 599,
			Status:     "599",
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader("")),
			Request:    r,
		}, nil
	})}
	c := gateway.New("http://ping.invalid", nil, gateway.Options{HTTPClient: hc})

	_, err := c.Do(context.Background(), gateway.Request{Path: "/x"})
	require.Error(t, err)
	assert.Equal(t, gateway.FallbackMessage, err.Error())
}

type conversations []domain.Conversation

func (c *conversations) Validate() error {
	for _, conv := range *c {
		if conv.ID == 0 {
			return errors.New("conversation without id")
		}
	}
	return nil
}

func TestDecodeFailures(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/object":
			writeJSON(w, http.StatusOK, map[string]string{"message": "not a list"})
		case "/null":
			writeJSON(w, http.StatusOK, nil)
		case "/no-id":
			writeJSON(w, http.StatusOK, []map[string]any{{"name": "x"}})
		case "/broken":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{"))
		case "/text":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("hello"))
		}
	})
	c := gateway.New(srv.URL, nil, gateway.Options{})
	ctx := context.Background()

	for _, path := range []string{"/object", "/null", "/no-id", "/broken", "/text"} {
		t.Run(path, func(t *testing.T) {
			_, err := gateway.Call[conversations](ctx, c, gateway.Request{Path: path})
			require.Error(t, err)
			assert.True(t, gateway.IsKind(err, gateway.KindDecode), "got %v", err)
			assert.Equal(t, gateway.DecodeMessage, err.Error())
		})
	}
}

func TestMultipartUpload(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data; boundary="))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "sunset", r.FormValue("description"))
		assert.Equal(t, "IMAGE", r.FormValue("type"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "pic.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		assert.Equal(t, "PNGDATA", string(b))
		writeJSON(w, http.StatusOK, map[string]any{"id": 1})
	})
	c := gateway.New(srv.URL, nil, gateway.Options{})

	_, err := c.Do(context.Background(), gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/posts/alice",
		Multipart: &gateway.Multipart{
			Fields: map[string]string{"description": "sunset", "type": "IMAGE"},
			Files:  []gateway.File{{Field: "file", Name: "pic.png", ContentType: "image/png", Content: strings.NewReader("PNGDATA")}},
		},
	})
	require.NoError(t, err)
}

func TestCanceledAndTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	c := gateway.New(srv.URL, nil, gateway.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Do(ctx, gateway.Request{Path: "/x"})
	require.Error(t, err)
	assert.True(t, gateway.IsKind(err, gateway.KindCanceled))
	assert.ErrorIs(t, err, context.Canceled)

	srv.Close()
	_, err = c.Do(context.Background(), gateway.Request{Path: "/x"})
	require.Error(t, err)
	assert.True(t, gateway.IsKind(err, gateway.KindTransport))
	assert.Equal(t, gateway.FallbackMessage, err.Error())
}

func TestLimiterHonoursContext(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	c := gateway.New(srv.URL, nil, gateway.Options{Limiter: lim})

	_, err := c.Do(context.Background(), gateway.Request{Path: "/x"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Do(ctx, gateway.Request{Path: "/x"})
	require.Error(t, err)
	assert.False(t, gateway.IsKind(err, gateway.KindStatus))
}

func TestDoubledSeparatorIsPreserved(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "//api/admin/role", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	c := gateway.New(srv.URL+"/", nil, gateway.Options{})
	_, err := c.Do(context.Background(), gateway.Request{Method: http.MethodDelete, Path: "//api/admin/role"})
	assert.NoError(t, err)
}
