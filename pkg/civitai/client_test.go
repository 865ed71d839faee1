package civitai

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	errs "civitdl/pkg/errors"
	"civitdl/pkg/logger"
	"civitdl/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newMockHTTPClient(handler func(req *http.Request) (*http.Response, error)) *http.Client {
	return &http.Client{Transport: &mockRoundTripper{handler: handler}}
}

func newResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode:    statusCode,
		Body:          io.NopCloser(bytes.NewBufferString(body)),
		Header:        make(http.Header),
		ContentLength: int64(len(body)),
	}
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(ClientConfig{}, nil, logger.NewNopLogger())

	assert.Equal(t, DefaultBaseURL, client.BaseURL())
	assert.False(t, client.Authenticated())
	assert.Equal(t, DefaultUserAgent, client.headers.Get("User-Agent"))
	assert.Empty(t, client.headers.Get("Authorization"))
	assert.Equal(t, DefaultPageTimeout, client.pageTimeout)
	assert.Equal(t, DefaultDownloadTimeout, client.downloadTimeout)
}

func TestClientSendsHeaders(t *testing.T) {
	var seen http.Header
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		seen = req.Header.Clone()
		return newResponse(http.StatusOK, `{"items":[],"metadata":{}}`), nil
	})

	client := NewClient(ClientConfig{Token: "abc123", UserAgent: "civitdl-test"}, httpClient, logger.NewNopLogger())
	_, err := client.FetchPage(context.Background(), "https://civitai.test/api/v1/images?username=a")
	require.NoError(t, err)

	assert.True(t, client.Authenticated())
	assert.Equal(t, "Bearer abc123", seen.Get("Authorization"))
	assert.Equal(t, "civitdl-test", seen.Get("User-Agent"))
}

func TestClientHeadersAreNotShared(t *testing.T) {
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		req.Header.Set("X-Mutated", "yes")
		return newResponse(http.StatusOK, `{"items":[]}`), nil
	})

	client := NewClient(ClientConfig{}, httpClient, logger.NewNopLogger())
	_, err := client.FetchPage(context.Background(), "https://civitai.test/a")
	require.NoError(t, err)

	assert.Empty(t, client.headers.Get("X-Mutated"))
}

func TestFetchPage(t *testing.T) {
	body := `{
		"items": [
			{"id": 101, "url": "https://image.civitai.test/a/101.jpeg", "width": 512, "height": 768},
			{"id": "102", "url": "https://image.civitai.test/a/102.png"}
		],
		"metadata": {"nextCursor": "1700|102", "nextPage": "https://civitai.test/api/v1/images?cursor=1700%7C102"}
	}`
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusOK, body), nil
	})

	client := NewClient(ClientConfig{}, httpClient, logger.NewNopLogger())
	page, err := client.FetchPage(context.Background(), "https://civitai.test/api/v1/images?username=a")
	require.NoError(t, err)

	require.Len(t, page.Items, 2)
	assert.Equal(t, Token("101"), page.Items[0].ID)
	assert.Equal(t, 512, page.Items[0].Width)
	assert.Equal(t, Token("102"), page.Items[1].ID)
	assert.Equal(t, Token("1700|102"), page.Metadata.NextCursor)
	assert.True(t, page.HasNext())
}

func TestFetchPageServerErrorIsRetryable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL}, server.Client(), logger.NewNopLogger())
	page, err := client.FetchPage(context.Background(), server.URL+"?username=a")

	assert.Nil(t, page)
	require.Error(t, err)
	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errs.KindServer, e.Kind)
	assert.Equal(t, http.StatusBadGateway, e.StatusCode)
	assert.True(t, errs.IsRetryable(e.Kind))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchPageClientErrorIsDecoded(t *testing.T) {
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusNotFound, `{"error":"user not found"}`), nil
	})

	client := NewClient(ClientConfig{}, httpClient, logger.NewNopLogger())
	page, err := client.FetchPage(context.Background(), "https://civitai.test/a")

	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasNext())
}

func TestFetchPageMalformedJSON(t *testing.T) {
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusOK, `{"items": [nope]}`), nil
	})

	client := NewClient(ClientConfig{}, httpClient, logger.NewNopLogger())
	_, err := client.FetchPage(context.Background(), "https://civitai.test/a")

	require.Error(t, err)
	assert.Equal(t, errs.KindDecode, errs.KindOf(err))
	assert.False(t, errs.IsRetryable(errs.KindOf(err)))
}

func TestFetchPageEmptyBody(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"empty", http.StatusOK, ""},
		{"truncated JSON", http.StatusOK, `{"items":[`},
		{"empty 4xx", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client := NewClient(ClientConfig{}, server.Client(), logger.NewNopLogger())

			var delays []time.Duration
			cfg := retry.DefaultConfig()
			cfg.Sleep = func(ctx context.Context, d time.Duration) error {
				delays = append(delays, d)
				return nil
			}

			_, err := retry.DoWithResult(context.Background(), func(ctx context.Context) (*ListingPage, error) {
				return client.FetchPage(ctx, server.URL)
			}, cfg)

			require.Error(t, err)
			assert.Equal(t, errs.KindDecode, errs.KindOf(err))
			assert.Equal(t, int32(1), hits.Load())
			assert.Empty(t, delays)
		})
	}
}

// failingBody returns some bytes and then a read error
type failingBody struct {
	data []byte
	err  error
}

func (b *failingBody) Read(p []byte) (int, error) {
	if len(b.data) > 0 {
		n := copy(p, b.data)
		b.data = b.data[n:]
		return n, nil
	}
	return 0, b.err
}

func (b *failingBody) Close() error { return nil }

func TestFetchPageBodyReadErrorIsRetryable(t *testing.T) {
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode:    http.StatusOK,
			Body:          &failingBody{data: []byte(`{"items":[`), err: &netOpError{syscall.ECONNRESET}},
			Header:        make(http.Header),
			ContentLength: -1,
		}, nil
	})

	client := NewClient(ClientConfig{}, httpClient, logger.NewNopLogger())
	_, err := client.FetchPage(context.Background(), "https://civitai.test/a")

	require.Error(t, err)
	assert.Equal(t, errs.KindProtocol, errs.KindOf(err))
	assert.True(t, errs.IsRetryable(errs.KindOf(err)))
}

func TestFetchPageTransportErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.Kind
	}{
		{"refused", &netOpError{syscall.ECONNREFUSED}, errs.KindConnection},
		{"reset", &netOpError{syscall.ECONNRESET}, errs.KindProtocol},
		{"deadline", context.DeadlineExceeded, errs.KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
				return nil, tt.err
			})
			client := NewClient(ClientConfig{}, httpClient, logger.NewNopLogger())

			_, err := client.FetchPage(context.Background(), "https://civitai.test/a")
			require.Error(t, err)
			assert.Equal(t, tt.want, errs.KindOf(err))
		})
	}
}

// netOpError wraps a syscall errno the way the dialer does
type netOpError struct{ errno error }

func (e *netOpError) Error() string { return "read tcp: " + e.errno.Error() }
func (e *netOpError) Unwrap() error { return e.errno }

func TestFetchPageTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(ClientConfig{PageTimeout: 50 * time.Millisecond}, server.Client(), logger.NewNopLogger())
	_, err := client.FetchPage(context.Background(), server.URL)

	require.Error(t, err)
	assert.Equal(t, errs.KindTimeout, errs.KindOf(err))
}

func TestOpenImage(t *testing.T) {
	payload := strings.Repeat("x", 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/old.png":
			http.Redirect(w, r, "/new.png", http.StatusFound)
		case "/new.png":
			_, _ = w.Write([]byte(payload))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(ClientConfig{}, server.Client(), logger.NewNopLogger())

	t.Run("follows redirects", func(t *testing.T) {
		body, size, err := client.OpenImage(context.Background(), server.URL+"/old.png")
		require.NoError(t, err)
		defer body.Close()

		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, payload, string(data))
		assert.Equal(t, int64(len(payload)), size)
	})

	t.Run("status error is not retryable", func(t *testing.T) {
		body, _, err := client.OpenImage(context.Background(), server.URL+"/missing.png")
		assert.Nil(t, body)
		require.Error(t, err)

		var e *errs.Error
		require.True(t, errors.As(err, &e))
		assert.Equal(t, errs.KindStatus, e.Kind)
		assert.Equal(t, http.StatusNotFound, e.StatusCode)
		assert.False(t, errs.IsRetryable(e.Kind))
	})
}

func TestOpenImageServerErrorIsNotRetryable(t *testing.T) {
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return newResponse(http.StatusServiceUnavailable, ""), nil
	})

	client := NewClient(ClientConfig{}, httpClient, logger.NewNopLogger())
	_, _, err := client.OpenImage(context.Background(), "https://image.civitai.test/1.png")

	require.Error(t, err)
	assert.Equal(t, errs.KindStatus, errs.KindOf(err))
}

func TestOpenImageInvalidURL(t *testing.T) {
	client := NewClient(ClientConfig{}, nil, logger.NewNopLogger())
	_, _, err := client.OpenImage(context.Background(), "://bad")

	require.Error(t, err)
	assert.Equal(t, errs.KindRequest, errs.KindOf(err))
}
