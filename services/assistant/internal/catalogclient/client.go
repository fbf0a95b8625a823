package catalogclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"skucatalog/pkg/domain"
)

// Client calls the catalog service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents a catalog service error response.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	return e.Message
}

// ListFilter narrows a catalog listing.
type ListFilter struct {
	NDC      string
	Name     string
	Page     int
	PageSize int
}

// NewClient constructs a catalog service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Get fetches one record by code. A missing record is (zero, false, nil),
// never an error; callers must be able to tell "no match" from "lookup
// failed".
func (c *Client) Get(ctx context.Context, code string) (domain.SKU, bool, error) {
	var sku domain.SKU
	err := c.doJSON(ctx, http.MethodGet, "/api/skus/"+url.PathEscape(code), nil, &sku)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusNotFound {
			return domain.SKU{}, false, nil
		}
		return domain.SKU{}, false, err
	}
	return sku, true, nil
}

// List searches the catalog and returns one page plus the total match count.
func (c *Client) List(ctx context.Context, filter ListFilter) ([]domain.SKU, int, error) {
	q := url.Values{}
	if filter.NDC != "" {
		q.Set("ndc", filter.NDC)
	}
	if filter.Name != "" {
		q.Set("name", filter.Name)
	}
	if filter.Page > 0 {
		q.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(filter.PageSize))
	}
	path := "/api/skus"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp struct {
		Items []domain.SKU `json:"items"`
		Total int          `json:"total"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Items, resp.Total, nil
}

// Create registers a new record.
func (c *Client) Create(ctx context.Context, sku domain.SKU) (domain.SKU, error) {
	var created domain.SKU
	if err := c.doJSON(ctx, http.MethodPost, "/api/skus", sku, &created); err != nil {
		return domain.SKU{}, err
	}
	return created, nil
}

// Update replaces a record (full replace semantics).
func (c *Client) Update(ctx context.Context, code string, sku domain.SKU) (domain.SKU, error) {
	var updated domain.SKU
	if err := c.doJSON(ctx, http.MethodPut, "/api/skus/"+url.PathEscape(code), sku, &updated); err != nil {
		return domain.SKU{}, err
	}
	return updated, nil
}

// PartialUpdate patches a record (only provided fields change).
func (c *Client) PartialUpdate(ctx context.Context, code string, patch domain.SKUPatch) (domain.SKU, error) {
	var updated domain.SKU
	if err := c.doJSON(ctx, http.MethodPatch, "/api/skus/"+url.PathEscape(code), patch, &updated); err != nil {
		return domain.SKU{}, err
	}
	return updated, nil
}

// Delete marks a record DELETED (logical deletion).
func (c *Client) Delete(ctx context.Context, code string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/skus/"+url.PathEscape(code), nil, nil)
}

// FindDuplicates returns groups of records sharing a product name.
func (c *Client) FindDuplicates(ctx context.Context) ([]domain.DuplicateGroup, error) {
	var groups []domain.DuplicateGroup
	if err := c.doJSON(ctx, http.MethodGet, "/api/skus/duplicates", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = fmt.Sprintf("catalog service returned %d", resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Code: errResp.Code}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
