package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"otc-swaps/internal/api"
	"otc-swaps/internal/domain"
	"otc-swaps/internal/pricing"
)

// apiError is a non-2xx response from otcd.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// apiClient talks to the otcd HTTP API. Mutating calls are signed with key.
type apiClient struct {
	base   string
	client *http.Client
	key    ed25519.PrivateKey
}

func newAPIClient(base string, key ed25519.PrivateKey) *apiClient {
	return &apiClient{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 30 * time.Second},
		key:    key,
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != nil && method != http.MethodGet {
		if err := api.SignRequest(req, c.key); err != nil {
			return fmt.Errorf("sign request: %w", err)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		var problem struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &problem) == nil && problem.Code != "" {
			apiErr.Code, apiErr.Message = problem.Code, problem.Message
		} else {
			apiErr.Code, apiErr.Message = http.StatusText(resp.StatusCode), strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) CreateSwap(ctx context.Context, req api.CreateSwapRequest) (*api.SwapResponse, error) {
	var resp api.SwapResponse
	if err := c.do(ctx, http.MethodPost, "/v1/swaps", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) FillSwap(ctx context.Context, id domain.Identity, req api.FillRequest) (*domain.FillReceipt, error) {
	var receipt domain.FillReceipt
	if err := c.do(ctx, http.MethodPost, "/v1/swaps/"+id.String()+"/fill", nil, req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *apiClient) CancelSwap(ctx context.Context, id domain.Identity) (*domain.CancelReceipt, error) {
	var receipt domain.CancelReceipt
	if err := c.do(ctx, http.MethodPost, "/v1/swaps/"+id.String()+"/cancel", nil, struct{}{}, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *apiClient) GetSwap(ctx context.Context, id domain.Identity) (*api.SwapResponse, error) {
	var resp api.SwapResponse
	if err := c.do(ctx, http.MethodGet, "/v1/swaps/"+id.String(), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) GetSwapAccount(ctx context.Context, id domain.Identity) (*api.SwapAccountResponse, error) {
	var resp api.SwapAccountResponse
	if err := c.do(ctx, http.MethodGet, "/v1/swaps/"+id.String()+"/account", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) ListSwaps(ctx context.Context, seller domain.Identity) ([]api.SwapResponse, error) {
	query := url.Values{}
	if !seller.IsZero() {
		query.Set("seller", seller.String())
	}
	var resp api.SwapListResponse
	if err := c.do(ctx, http.MethodGet, "/v1/swaps", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Swaps, nil
}

func (c *apiClient) Quote(ctx context.Context, id domain.Identity, quantity uint64) (*pricing.Quote, error) {
	query := url.Values{"quantity": {strconv.FormatUint(quantity, 10)}}
	var quote pricing.Quote
	if err := c.do(ctx, http.MethodGet, "/v1/swaps/"+id.String()+"/quote", query, nil, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (c *apiClient) GetBySwapID(ctx context.Context, id domain.Identity) ([]*domain.Event, error) {
	var resp api.EventListResponse
	if err := c.do(ctx, http.MethodGet, "/v1/swaps/"+id.String()+"/events", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// GetByTimeRange lets the client act as a reporting.EventSource.
func (c *apiClient) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Event, error) {
	query := url.Values{
		"from": {strconv.FormatInt(start, 10)},
		"to":   {strconv.FormatInt(end, 10)},
	}
	var resp api.EventListResponse
	if err := c.do(ctx, http.MethodGet, "/v1/events", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *apiClient) PutTokenAccount(ctx context.Context, req api.DevTokenAccountRequest) error {
	return c.do(ctx, http.MethodPost, "/v1/dev/token-accounts", nil, req, nil)
}

func (c *apiClient) Airdrop(ctx context.Context, owner domain.Identity, lamports uint64) error {
	return c.do(ctx, http.MethodPost, "/v1/dev/airdrop", nil, api.DevAirdropRequest{Owner: owner, Lamports: lamports}, nil)
}

// feedURL maps the API base to the websocket feed endpoint.
func (c *apiClient) feedURL() (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/events/ws"
	return u.String(), nil
}
