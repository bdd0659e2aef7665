package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/headline-dev/headline/pkg/models"
)

const (
	maxBodySize  = 4 << 20
	maxErrorBody = 512
)

// Client performs news API requests through a Pool.
type Client struct {
	pool    *Pool
	baseURL string
}

// NewClient creates a Client for the endpoint at baseURL.
func NewClient(pool *Pool, baseURL string) *Client {
	return &Client{pool: pool, baseURL: baseURL}
}

// Fetch performs a single GET with params and returns the raw articles.
// Failures are *StatusError, *APIError, or wrap ErrTransport or ErrDecode.
func (c *Client) Fetch(ctx context.Context, params url.Values) ([]models.RawArticle, error) {
	target, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	q := target.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	target.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.pool.Client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	return decode(body)
}

func decode(body []byte) ([]models.RawArticle, error) {
	var envelope models.NewsResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if envelope.Status != "success" {
		apiErr := &APIError{Status: envelope.Status}
		if apiErr.Status == "" {
			apiErr.Status = "missing status"
		}
		var detail struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		if json.Unmarshal(envelope.Results, &detail) == nil {
			apiErr.Message = detail.Message
			apiErr.Code = detail.Code
		}
		return nil, apiErr
	}

	var articles []models.RawArticle
	if len(envelope.Results) > 0 && string(envelope.Results) != "null" {
		if err := json.Unmarshal(envelope.Results, &articles); err != nil {
			return nil, fmt.Errorf("%w: results: %w", ErrDecode, err)
		}
	}
	return articles, nil
}

// redact strips the query string, which carries the API key, from URL errors.
func redact(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	u, perr := url.Parse(urlErr.URL)
	if perr != nil {
		return err
	}
	u.RawQuery = ""
	return &url.Error{Op: urlErr.Op, URL: u.String(), Err: urlErr.Err}
}
