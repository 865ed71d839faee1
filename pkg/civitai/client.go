package civitai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "civitdl/pkg/errors"
	"civitdl/pkg/logger"
)

const (
	// DefaultUserAgent is sent with every request
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// DefaultPageTimeout bounds a single listing page request
	DefaultPageTimeout = 30 * time.Second

	// DefaultDownloadTimeout bounds a single image download
	DefaultDownloadTimeout = 300 * time.Second
)

// ClientConfig configures a Client
type ClientConfig struct {
	BaseURL         string
	UserAgent       string
	Token           string
	PageTimeout     time.Duration
	DownloadTimeout time.Duration
}

// Client talks to the Civitai images API. It is safe for concurrent use;
// request headers are fixed at construction.
type Client struct {
	httpClient      *http.Client
	headers         http.Header
	baseURL         string
	pageTimeout     time.Duration
	downloadTimeout time.Duration
	authenticated   bool
	logger          logger.Logger
}

// NewClient creates a new Civitai API client. A nil httpClient gets a
// default client; timeouts are applied per request through the context.
func NewClient(cfg ClientConfig, httpClient *http.Client, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = DefaultPageTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}

	headers := make(http.Header)
	headers.Set("User-Agent", cfg.UserAgent)
	headers.Set("Accept", "application/json, image/*;q=0.9, */*;q=0.8")
	if cfg.Token != "" {
		headers.Set("Authorization", "Bearer "+cfg.Token)
	}

	return &Client{
		httpClient:      httpClient,
		headers:         headers,
		baseURL:         cfg.BaseURL,
		pageTimeout:     cfg.PageTimeout,
		downloadTimeout: cfg.DownloadTimeout,
		authenticated:   cfg.Token != "",
		logger:          log,
	}
}

// BaseURL returns the listing endpoint the client was configured with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Authenticated reports whether requests carry a bearer token
func (c *Client) Authenticated() bool {
	return c.authenticated
}

// do sends a GET to rawURL with the client's headers
func (c *Client) do(ctx context.Context, op, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &errs.Error{Kind: errs.KindRequest, Op: op, URL: rawURL, Err: err}
	}
	req.Header = c.headers.Clone()

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"op":  op,
		"url": rawURL,
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		e := errs.New(op, rawURL, err)
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"op":       op,
			"url":      rawURL,
			"kind":     string(e.Kind),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, e
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"op":       op,
		"url":      rawURL,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// FetchPage retrieves and decodes one listing page. A 5xx response is
// returned as a retryable server error without decoding; any other status
// is decoded as is.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*ListingPage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pageTimeout)
	defer cancel()

	const op = "fetch page"
	resp, err := c.do(ctx, op, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.logger.WarnWithFields("server error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    pageURL,
		})
		return nil, errs.Status(op, pageURL, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		c.logger.WarnWithFields("unexpected API status, decoding body anyway", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    pageURL,
		})
	}

	var page ListingPage
	body := &bodyReader{r: resp.Body}
	if err := json.NewDecoder(body).Decode(&page); err != nil {
		// Only a failed body read is a transport error. The decoder's own
		// EOF and unexpected EOF mean the JSON itself is empty or short.
		if body.err != nil {
			if kind := errs.Classify(body.err); kind != errs.KindUnknown {
				return nil, &errs.Error{Kind: kind, Op: op, URL: pageURL, StatusCode: resp.StatusCode, Err: body.err}
			}
		}
		return nil, &errs.Error{
			Kind:       errs.KindDecode,
			Op:         op,
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to parse JSON: %w", err),
		}
	}

	return &page, nil
}

// OpenImage starts streaming the image at imageURL. The caller must close
// the returned body. size is -1 when the server did not send a length.
// Any non-2xx status is returned as a non-retryable status error.
func (c *Client) OpenImage(ctx context.Context, imageURL string) (body io.ReadCloser, size int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)

	const op = "download"
	resp, err := c.do(ctx, op, imageURL)
	if err != nil {
		cancel()
		return nil, 0, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, 0, &errs.Error{
			Kind:       errs.KindStatus,
			Op:         op,
			URL:        imageURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, resp.ContentLength, nil
}

// bodyReader remembers the first read error other than io.EOF
type bodyReader struct {
	r   io.Reader
	err error
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && err != io.EOF && b.err == nil {
		b.err = err
	}
	return n, err
}

// cancelOnClose releases the request context together with the body
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
