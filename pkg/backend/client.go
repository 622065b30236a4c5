// Package backend talks to the remote files API: metadata lookup and signed URL issuance.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tripsnap/api/pkg/filemeta"
	"github.com/tripsnap/api/pkg/imageref"
	"github.com/tripsnap/api/pkg/logging"
	"github.com/tripsnap/api/pkg/metrics"
)

// ErrUnexpectedStatus is wrapped by errors for non-2xx responses
var ErrUnexpectedStatus = errors.New("unexpected status from files API")

const (
	lookupPath = "/files/lookup"
	signPath   = "/files/sign"

	maxResponseBytes = 1 << 20
)

// Options configures a Client
type Options struct {
	BaseURL       string
	LegacyBaseURL string
	Token         string
	Timeout       time.Duration
	HTTPClient    *http.Client // Optional; overrides Timeout
}

// Client is an HTTP client for the files API
type Client struct {
	baseURL       string
	legacyBaseURL string
	token         string
	httpClient    *http.Client
	logger        *zap.Logger
}

type lookupRequest struct {
	File string `json:"file"`
}

type signRequest struct {
	Subject          string `json:"subject"`
	Object           string `json:"object"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

type signResponse struct {
	URL string `json:"url,omitempty"`
}

// NewClient creates a files API client
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	legacyBase := opts.LegacyBaseURL
	if legacyBase == "" {
		legacyBase = opts.BaseURL
	}
	return &Client{
		baseURL:       strings.TrimSuffix(opts.BaseURL, "/"),
		legacyBaseURL: strings.TrimSuffix(legacyBase, "/"),
		token:         opts.Token,
		httpClient:    httpClient,
		logger:        logging.Named("files-api"),
	}
}

// LookupFile fetches metadata for a file identifier.
// A 404 or an unrecognised body yields (nil, nil).
func (c *Client) LookupFile(ctx context.Context, fileID string) (*filemeta.FileMetadata, error) {
	body, status, err := c.post(ctx, "lookup", lookupPath, lookupRequest{File: fileID})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		c.logger.Debug("File not found", zap.String("file", fileID))
		return nil, nil
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("lookup %s: %w: %d", fileID, ErrUnexpectedStatus, status)
	}

	meta := filemeta.Extract(body)
	if meta == nil {
		c.logger.Debug("Unrecognised lookup response",
			zap.String("file", fileID),
			zap.Int("bytes", len(body)))
	}
	return meta, nil
}

// SignURL requests a time-limited URL for object on behalf of subject.
// An empty URL with a nil error means the API declined to sign.
func (c *Client) SignURL(ctx context.Context, subject, object string, ttl time.Duration) (string, error) {
	req := signRequest{
		Subject:          subject,
		Object:           object,
		ExpiresInSeconds: int(ttl / time.Second),
	}
	body, status, err := c.post(ctx, "sign", signPath, req)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("sign %s: %w: %d", object, ErrUnexpectedStatus, status)
	}

	var resp signResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to decode sign response: %w", err)
		}
	}
	return resp.URL, nil
}

// LegacyURL builds the static-file URL for a legacy identifier
func (c *Client) LegacyURL(fileID string) string {
	return imageref.LegacyURL(c.legacyBaseURL, fileID)
}

// post sends a JSON body and returns the raw response body and status
func (c *Client) post(ctx context.Context, endpoint, path string, payload interface{}) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		c.logger.Warn("Files API request failed",
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return nil, 0, fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	metrics.BackendRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	metrics.BackendRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}
	return body, resp.StatusCode, nil
}
