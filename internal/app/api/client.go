// Package api is a typed client for the escrow REST API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/flexcrow/escrowctl/internal/httputil"
)

// Current is the list filter alias for "the authenticated user".
const Current = "current"

// DefaultPerPage matches the server's default page size.
const DefaultPerPage = 10

// Client wraps the HTTP transport with one method per endpoint.
type Client struct {
	http *httputil.Client
}

// New builds an API client over an existing transport.
func New(transport *httputil.Client) *Client {
	return &Client{http: transport}
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.http.BaseURL() }

// ListOptions selects a page and optional ownership filters. StartIndex
// defaults to (Page-1)*RecordPerPage.
type ListOptions struct {
	Page          int
	RecordPerPage int
	StartIndex    int
	UserID        string
	CustomerID    string
}

func (o ListOptions) normalized() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.RecordPerPage < 1 {
		o.RecordPerPage = DefaultPerPage
	}
	if o.StartIndex <= 0 {
		o.StartIndex = (o.Page - 1) * o.RecordPerPage
	}
	return o
}

// Query renders the options as the API's query string.
func (o ListOptions) Query() url.Values {
	o = o.normalized()
	q := url.Values{}
	q.Set("page", strconv.Itoa(o.Page))
	q.Set("recordPerPage", strconv.Itoa(o.RecordPerPage))
	q.Set("startIndex", strconv.Itoa(o.StartIndex))
	if o.UserID != "" {
		q.Set("user_id", o.UserID)
	}
	if o.CustomerID != "" {
		q.Set("customer_id", o.CustomerID)
	}
	return q
}

// Page is one slice of a listing plus the unpaged total.
type Page[T any] struct {
	TotalCount int `json:"total_count"`
	Items      []T `json:"items"`
}

// Pages reports how many pages the total spans at perPage.
func (p Page[T]) Pages(perPage int) int {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if p.TotalCount == 0 {
		return 0
	}
	return (p.TotalCount + perPage - 1) / perPage
}

// decodePage reads {"total_count": n, "<key>": [...]}. If key is missing the
// first "*_items" array is used so renamed envelopes still decode.
func decodePage[T any](body []byte, key string) (Page[T], error) {
	var page Page[T]
	if !gjson.ValidBytes(body) {
		return page, fmt.Errorf("decode %s page: invalid json", key)
	}
	doc := gjson.ParseBytes(body)
	page.TotalCount = int(doc.Get("total_count").Int())

	items := doc.Get(key)
	if !items.Exists() {
		doc.ForEach(func(k, v gjson.Result) bool {
			if strings.HasSuffix(k.String(), "_items") && v.IsArray() {
				items = v
				return false
			}
			return true
		})
	}
	if items.Exists() && items.IsArray() {
		if err := json.Unmarshal([]byte(items.Raw), &page.Items); err != nil {
			return page, fmt.Errorf("decode %s: %w", key, err)
		}
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page, nil
}

func (c *Client) list(ctx context.Context, path, key string, q url.Values) ([]byte, error) {
	resp, err := c.http.Get(ctx, path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var raw []byte
	if err := httputil.DecodeResponse(resp, &raw); err != nil {
		return nil, fmt.Errorf("list %s: %w", key, err)
	}
	return raw, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.http.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return httputil.DecodeResponse(resp, out)
}

// create posts body and returns the InsertedID of the new record.
func (c *Client) create(ctx context.Context, path string, body interface{}) (string, error) {
	var out struct {
		InsertedID string `json:"InsertedID"`
	}
	if err := c.call(ctx, http.MethodPost, path, body, &out); err != nil {
		return "", err
	}
	return out.InsertedID, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.call(ctx, http.MethodGet, path, nil, out)
}

func escape(id string) string { return url.PathEscape(id) }

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
