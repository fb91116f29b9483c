// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package client calls the vote RPC and loads idea pages over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	uuid "github.com/gofrs/uuid"

	"github.com/affan-mulla/nextup/internal/pkg/log"
	"github.com/affan-mulla/nextup/internal/querycache"
	"github.com/affan-mulla/nextup/internal/types"
	voteErrors "github.com/affan-mulla/nextup/votes/errors"
	"github.com/affan-mulla/nextup/votes/models"
)

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 64 << 10

// TokenSource returns the bearer token for the next request.
// An empty token sends the request anonymously.
type TokenSource func(ctx context.Context) (string, error)

// Client talks to the nextup API
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithToken authenticates every request with a fixed bearer token
func WithToken(token string) Option {
	return func(cl *Client) {
		cl.token = func(context.Context) (string, error) { return token, nil }
	}
}

// WithTokenSource authenticates requests with tokens from src
func WithTokenSource(src TokenSource) Option {
	return func(cl *Client) { cl.token = src }
}

// New creates a client for the API rooted at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ApplyVote sends one vote and returns the committed state.
// Transport failures and deadlines are reported as ErrTransient.
func (c *Client) ApplyVote(ctx context.Context, subjectID uuid.UUID, direction models.Direction) (*models.VoteResult, error) {
	body, err := json.Marshal(models.VoteRequest{SubjectID: subjectID.String(), Direction: direction})
	if err != nil {
		return nil, fmt.Errorf("failed to encode vote request: %w", err)
	}

	res, err := c.do(ctx, http.MethodPost, "/votes", body)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, decodeError(res)
	}

	var resp models.VoteResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode vote response: %v", voteErrors.ErrUnknown, err)
	}
	result, err := resp.ToResult()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", voteErrors.ErrUnknown, err)
	}
	return result, nil
}

// PageFetcher returns a fetcher that GETs path and yields the raw body
func (c *Client) PageFetcher(path string) querycache.Fetcher {
	return func(ctx context.Context) ([]byte, error) {
		res, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			return nil, decodeError(res)
		}
		page, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read %s: %v", voteErrors.ErrTransient, path, err)
		}
		return page, nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	fullURL := c.baseURL + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", fullURL, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if requestID := log.RequestID(ctx); requestID != "" {
		req.Header.Set(types.HeaderRequestID, requestID)
	}

	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to get token: %v", voteErrors.ErrUnauthorized, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to call %s: %v", voteErrors.ErrTransient, fullURL, err)
	}
	return res, nil
}

// decodeError turns a non-200 response into a *voteErrors.ServiceError
func decodeError(res *http.Response) error {
	serviceErr := &voteErrors.ServiceError{Status: res.StatusCode}

	var body voteErrors.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	if err := json.Unmarshal(data, &body); err == nil && body.Code != "" {
		serviceErr.Code = voteErrors.Code(body.Code)
		serviceErr.Message = body.Message
		return serviceErr
	}

	serviceErr.Code = codeForStatus(res.StatusCode)
	serviceErr.Message = strings.TrimSpace(string(data))
	return serviceErr
}

func codeForStatus(status int) voteErrors.Code {
	switch {
	case status == http.StatusUnauthorized:
		return voteErrors.CodeUnauthorized
	case status == http.StatusNotFound:
		return voteErrors.CodeNotFound
	case status == http.StatusTooManyRequests:
		return voteErrors.CodeRateLimited
	case status == http.StatusBadRequest:
		return voteErrors.CodeInvalidInput
	case status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout, status == http.StatusBadGateway:
		return voteErrors.CodeTransient
	default:
		return voteErrors.CodeUnknown
	}
}
