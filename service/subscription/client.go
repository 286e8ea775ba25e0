package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/brojonat/mintwatch/service/metrics"
)

var (
	// ErrCreate is returned when a subscription could not be created.
	// Callers must not start listening without a subscription.
	ErrCreate = errors.New("subscription create failed")

	// ErrDelete is returned when a subscription could not be deleted.
	ErrDelete = errors.New("subscription delete failed")
)

// FilterSpec selects the balance changes routed to a subscription:
// records for Mint whose amount is at least MinAmount.
type FilterSpec struct {
	Mint      string
	MinAmount int64
}

// Client manages balance-change stream subscriptions on the Hello Moon REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a new subscription management client.
// If httpClient is nil, a client with a 30s timeout and request metrics is used.
// If metrics is nil, no metrics will be recorded.
func NewClient(baseURL, apiKey string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: metrics.RoundTripper(m, "subscription_api", nil),
		}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
	}
}

// createRequest is the wire format of a stream creation request.
type createRequest struct {
	StreamType string        `json:"streamType"`
	Target     streamTarget  `json:"target"`
	Filters    streamFilters `json:"filters"`
}

type streamTarget struct {
	TargetType string `json:"targetType"`
}

type streamFilters struct {
	Mint   filterClause `json:"mint"`
	Amount filterClause `json:"amount"`
}

type filterClause struct {
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Create registers a balance-change stream for spec with a websocket target
// and returns its subscription ID. Errors wrap ErrCreate. There is no retry.
func (c *Client) Create(ctx context.Context, spec FilterSpec) (string, error) {
	start := time.Now()
	id, err := c.create(ctx, spec)
	c.record("create", start, err)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCreate, err)
	}

	c.logger.InfoContext(ctx, "subscription created",
		"subscription_id", id,
		"mint", spec.Mint,
	)
	return id, nil
}

func (c *Client) create(ctx context.Context, spec FilterSpec) (string, error) {
	reqBody := createRequest{
		StreamType: "BALANCE_CHANGE",
		Target:     streamTarget{TargetType: "WEBSOCKET"},
		Filters: streamFilters{
			Mint:   filterClause{Operator: "=", Value: spec.Mint},
			Amount: filterClause{Operator: ">=", Value: spec.MinAmount},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/streams", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.parseErrorResponse(resp)
	}

	var response struct {
		SubscriptionID string `json:"subscriptionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if response.SubscriptionID == "" {
		return "", fmt.Errorf("response did not include a subscriptionId")
	}

	return response.SubscriptionID, nil
}

// Delete removes the subscription. Errors wrap ErrDelete.
func (c *Client) Delete(ctx context.Context, subscriptionID string) error {
	start := time.Now()
	err := c.delete(ctx, subscriptionID)
	c.record("delete", start, err)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelete, err)
	}

	c.logger.InfoContext(ctx, "subscription deleted", "subscription_id", subscriptionID)
	return nil
}

func (c *Client) delete(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return fmt.Errorf("subscription id is required")
	}

	u := fmt.Sprintf("%s/v1/streams/%s", c.baseURL, url.PathEscape(subscriptionID))
	req, err := http.NewRequestWithContext(ctx, "DELETE", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return c.parseErrorResponse(resp)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

func (c *Client) record(operation string, start time.Time, err error) {
	if c.metrics != nil {
		c.metrics.RecordSubscriptionCall(operation, time.Since(start).Seconds(), err)
	}
}

// parseErrorResponse attempts to parse an error response from the API.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || (errResp.Error == "" && errResp.Message == "") {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, errResp.Message)
	}
	return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, errResp.Error)
}
