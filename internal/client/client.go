// Package client talks to the mediavault HTTP API and implements the
// command line front end on top of it.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/filex"
	"github.com/dmitrijs2005/mediavault/internal/netx"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/uploads"
)

// TransactionStatus is the body of GET /v1/uploads/{id}.
type TransactionStatus struct {
	uploads.Transaction
	Label string `json:"label"`
}

// Client is a thin wrapper over the REST endpoints.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+c.token)
	}
	return req, nil
}

// Upload sends files as one transaction. When the server reports a failed
// transaction the decoded result is returned along with the error.
func (c *Client) Upload(ctx context.Context, category models.Category, maxAttempts int, files []filex.File) (*uploads.Result, error) {
	parts := make([]netx.Part, 0, len(files))
	for _, f := range files {
		parts = append(parts, netx.Part{Field: "files[]", FileName: f.Name, Data: f.Data})
	}
	body, contentType, err := netx.MultipartBody(parts)
	if err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}

	query := url.Values{"category": {string(category)}}
	if maxAttempts > 0 {
		query.Set("max_attempts", strconv.Itoa(maxAttempts))
	}
	req, err := c.newRequest(http.MethodPost, "/v1/uploads", query, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	res := &uploads.Result{}
	err = netx.DoJSON(ctx, c.http, req, res)
	var se *netx.StatusError
	if errors.As(err, &se) && res.TransactionID != "" {
		return res, fmt.Errorf("upload %s: %w", res.TransactionID, err)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Status fetches a transaction snapshot.
func (c *Client) Status(ctx context.Context, id string) (*TransactionStatus, error) {
	req, err := c.newRequest(http.MethodGet, "/v1/uploads/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}
	out := &TransactionStatus{}
	if err := netx.DoJSON(ctx, c.http, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Images lists the caller's images; an empty category lists all of them.
func (c *Client) Images(ctx context.Context, category models.Category) ([]models.RecordDescriptor, error) {
	var query url.Values
	if category != "" {
		query = url.Values{"category": {string(category)}}
	}
	req, err := c.newRequest(http.MethodGet, "/v1/images", query, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Images []models.RecordDescriptor `json:"images"`
	}
	if err := netx.DoJSON(ctx, c.http, req, &out); err != nil {
		return nil, err
	}
	return out.Images, nil
}

// Stats returns the caller's aggregate counters.
func (c *Client) Stats(ctx context.Context) (*models.UserStats, error) {
	req, err := c.newRequest(http.MethodGet, "/v1/images/stats", nil, nil)
	if err != nil {
		return nil, err
	}
	out := &models.UserStats{}
	if err := netx.DoJSON(ctx, c.http, req, out); err != nil {
		return nil, err
	}
	return out, nil
}
