package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"go-damage-assessor/internal/logger"
	"go-damage-assessor/internal/repository"
)

// maxImageBytes caps a single downloaded image
const maxImageBytes = 64 << 20

// HTTPImageStore reads images from <baseURL>/<id>. It never accepts writes.
type HTTPImageStore struct {
	baseURL  *url.URL
	client   *http.Client
	attempts int
	backoff  time.Duration
}

// HTTPOption customizes an HTTPImageStore
type HTTPOption func(*HTTPImageStore)

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPImageStore) { s.client = c }
}

// WithRetry sets the attempt count and the linear backoff step
func WithRetry(attempts int, backoff time.Duration) HTTPOption {
	return func(s *HTTPImageStore) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if backoff >= 0 {
			s.backoff = backoff
		}
	}
}

// NewHTTPImageStore creates a read-only store rooted at baseURL
func NewHTTPImageStore(baseURL string, timeout time.Duration, opts ...HTTPOption) (*HTTPImageStore, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid image base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid image base URL %q: need http(s)://host", baseURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:           10,
		MaxIdleConnsPerHost:    2,
		IdleConnTimeout:        30 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  10 * time.Second,
		ExpectContinueTimeout:  1 * time.Second,
		MaxResponseHeaderBytes: 4096,
	}

	s := &HTTPImageStore{
		baseURL: u,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		attempts: 3,
		backoff:  time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *HTTPImageStore) imageURL(id string) string {
	u := *s.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + url.PathEscape(id)
	u.RawPath = ""
	return u.String()
}

// Put is not supported by remote HTTP sources
func (s *HTTPImageStore) Put(context.Context, []byte) (string, error) {
	return "", repository.ErrReadOnly
}

// Get downloads the image, retrying network failures and 5xx responses.
// 404 maps to ErrImageNotFound and other 4xx responses are not retried.
func (s *HTTPImageStore) Get(ctx context.Context, id string) ([]byte, error) {
	target := s.imageURL(id)
	var lastErr error

	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * s.backoff
			logger.WithFields(logrus.Fields{
				"image_id": id,
				"attempt":  attempt + 1,
				"wait_ms":  wait.Milliseconds(),
			}).WithError(lastErr).Debug("Retrying image download")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		data, retry, err := s.fetch(ctx, target)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", s.attempts, lastErr)
}

func (s *HTTPImageStore) fetch(ctx context.Context, target string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/tiff, image/bmp, */*")
	req.Header.Set("User-Agent", "go-damage-assessor/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, repository.ErrImageNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	default:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("read image body: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, false, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return data, false, nil
}

// Exists issues a HEAD request
func (s *HTTPImageStore) Exists(ctx context.Context, id string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.imageURL(id), nil)
	if err != nil {
		return false, fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
}
