package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout = 30 * time.Second
	apiPrefix      = "/api/v1"
)

// Client talks to the manifest API on behalf of one authenticated user.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	cache   *QueryCache
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: defaultTimeout},
		cache:   NewQueryCache(),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	if c.token == "" {
		return nil, ErrMissingToken
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// send performs req and returns the status code and the full body.
func (c *Client) send(req *http.Request) (int, []byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.log.Debug("api request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))
	return resp.StatusCode, body, nil
}

// doJSON sends in as JSON (when non-nil) and decodes a 2xx body into out.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	status, respBody, err := c.send(req)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return newAPIError(status, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// errorMessage picks the server's message out of an error body.
func errorMessage(status int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		for _, s := range []string{eb.Error, eb.Detail, eb.Message} {
			if s != "" {
				return s
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
		return text
	}
	return http.StatusText(status)
}

func newAPIError(status int, body []byte) *APIError {
	return &APIError{
		StatusCode: status,
		Message:    errorMessage(status, body),
		Body:       body,
	}
}

type shipmentList struct {
	Count   int        `json:"count"`
	Results []Shipment `json:"results"`
}

type manifestList struct {
	Count   int           `json:"count"`
	Results []ManifestJob `json:"results"`
}

// GetManifestStatus fetches the poll-status aggregate for a shipment.
func (c *Client) GetManifestStatus(ctx context.Context, shipmentID string) (*ManifestStatusResponse, error) {
	var resp ManifestStatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/manifests/poll-status/"+url.PathEscape(shipmentID)+"/", nil, &resp); err != nil {
		return nil, err
	}
	c.cache.Set(ManifestStatusKey(shipmentID), &resp)
	return &resp, nil
}

func (c *Client) GetManifest(ctx context.Context, manifestID string) (*ManifestJob, error) {
	var job ManifestJob
	if err := c.doJSON(ctx, http.MethodGet, "/manifests/"+url.PathEscape(manifestID)+"/", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) ListManifests(ctx context.Context) ([]ManifestJob, error) {
	if v, ok := c.cache.Get(ManifestListKey); ok {
		if jobs, ok := v.([]ManifestJob); ok {
			return jobs, nil
		}
	}
	var list manifestList
	if err := c.doJSON(ctx, http.MethodGet, "/manifests/", nil, &list); err != nil {
		return nil, err
	}
	c.cache.Set(ManifestListKey, list.Results)
	return list.Results, nil
}

func (c *Client) GetShipment(ctx context.Context, shipmentID string) (*Shipment, error) {
	key := ShipmentKey(shipmentID)
	if v, ok := c.cache.Get(key); ok {
		if s, ok := v.(*Shipment); ok {
			return s, nil
		}
	}
	var shipment Shipment
	if err := c.doJSON(ctx, http.MethodGet, "/shipments/"+url.PathEscape(shipmentID)+"/", nil, &shipment); err != nil {
		return nil, err
	}
	c.cache.Set(key, &shipment)
	return &shipment, nil
}

func (c *Client) ListShipments(ctx context.Context) ([]Shipment, error) {
	if v, ok := c.cache.Get(ShipmentListKey); ok {
		if shipments, ok := v.([]Shipment); ok {
			return shipments, nil
		}
	}
	var list shipmentList
	if err := c.doJSON(ctx, http.MethodGet, "/shipments/", nil, &list); err != nil {
		return nil, err
	}
	c.cache.Set(ShipmentListKey, list.Results)
	return list.Results, nil
}

func (c *Client) CreateShipment(ctx context.Context, trackingNumber, customerName string) (*Shipment, error) {
	req := map[string]string{
		"tracking_number": trackingNumber,
		"customer_name":   customerName,
	}
	var shipment Shipment
	if err := c.doJSON(ctx, http.MethodPost, "/shipments/", req, &shipment); err != nil {
		return nil, err
	}
	c.cache.InvalidateFor(MutationCreateShipment, shipment.ID)
	return &shipment, nil
}
