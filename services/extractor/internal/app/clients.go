package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"skucatalog/pkg/domain"
)

type catalogClient struct {
	baseURL    string
	httpClient *http.Client
}

func newCatalogClient(baseURL string) *catalogClient {
	return &catalogClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ImageURL fetches a presigned download URL for the SKU's packaging image.
func (c *catalogClient) ImageURL(ctx context.Context, code string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/skus/%s/image", c.baseURL, code), nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		URL string `json:"url"`
	}
	if err := doJSON(c.httpClient, req, &resp); err != nil {
		return "", fmt.Errorf("catalog service error: %w", err)
	}
	if resp.URL == "" {
		return "", fmt.Errorf("empty image url")
	}
	return resp.URL, nil
}

// FetchImage downloads the image bytes from a presigned URL.
func (c *catalogClient) FetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("image download failed: %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 32<<20))
}

type ocrClient struct {
	baseURL    string
	httpClient *http.Client
}

func newOCRClient(baseURL string) *ocrClient {
	return &ocrClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Extract submits image bytes to the external OCR engine. The engine is a
// black box returning structured fields plus a confidence score.
func (c *ocrClient) Extract(ctx context.Context, image []byte) (domain.OCRResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(image))
	if err != nil {
		return domain.OCRResult{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	var result domain.OCRResult
	if err := doJSON(c.httpClient, req, &result); err != nil {
		return domain.OCRResult{}, fmt.Errorf("ocr engine error: %w", err)
	}
	return result, nil
}

type assistantClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newAssistantClient(baseURL, token string) *assistantClient {
	return &assistantClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ReportOCR delivers one extraction result to the assistant's internal
// change endpoint.
func (c *assistantClient) ReportOCR(ctx context.Context, skuData domain.SKU, confidence float64) error {
	payload, err := json.Marshal(map[string]any{
		"sku_data":   skuData,
		"confidence": confidence,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/changes/ocr", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Token", c.token)
	if err := doJSON(c.httpClient, req, nil); err != nil {
		return fmt.Errorf("assistant service error: %w", err)
	}
	return nil
}

func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("%s", msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
