// Package tradernet provides the HTTP client for the Tradernet bridge
// service. The bridge exposes broker data as JSON in a uniform response
// envelope; this client knows nothing about the domain model, the broker
// adapter translates its types.
package tradernet

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Client for the Tradernet bridge service
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	client    *http.Client
	log       zerolog.Logger
}

// ServiceResponse is the standard response format
type ServiceResponse struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *string         `json:"error"`
	Timestamp string          `json:"timestamp"`
}

// NewClient creates a new Tradernet bridge client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "tradernet").Logger(),
	}
}

// SetCredentials sets the API credentials sent with every request.
func (c *Client) SetCredentials(apiKey, apiSecret string) {
	c.apiKey = apiKey
	c.apiSecret = apiSecret
}

// get makes a GET request to the bridge service
func (c *Client) get(endpoint string) (*ServiceResponse, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-API-Secret", c.apiSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// parseResponse parses the service response
func (c *Client) parseResponse(resp *http.Response) (*ServiceResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result ServiceResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if !result.Success {
		errMsg := "unknown error"
		if result.Error != nil {
			errMsg = *result.Error
		}
		return &result, fmt.Errorf("bridge service error: %s", errMsg)
	}

	return &result, nil
}

// Position represents a portfolio position as reported by the bridge
type Position struct {
	Symbol           string  `json:"symbol"`
	ISIN             string  `json:"isin,omitempty"`
	Name             string  `json:"name"`
	InstrumentType   string  `json:"instrument_type"`
	Quantity         float64 `json:"quantity"`
	AvgPrice         float64 `json:"avg_price"`
	CurrentPrice     float64 `json:"current_price"`
	MarketValue      float64 `json:"market_value"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	UnrealizedPnLPct float64 `json:"unrealized_pnl_pct"`
	Currency         string  `json:"currency"`
}

// PositionsResponse is the response for GetPositions
type PositionsResponse struct {
	Positions []Position `json:"positions"`
}

// GetPositions gets current portfolio positions
func (c *Client) GetPositions() ([]Position, error) {
	resp, err := c.get("/api/portfolio/positions")
	if err != nil {
		return nil, err
	}

	var result PositionsResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse positions: %w", err)
	}

	return result.Positions, nil
}

// CashBalance represents cash balance in a currency
type CashBalance struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// CashBalancesResponse is the response for GetCashBalances
type CashBalancesResponse struct {
	Balances []CashBalance `json:"balances"`
}

// GetCashBalances gets cash balances in all currencies
func (c *Client) GetCashBalances() ([]CashBalance, error) {
	resp, err := c.get("/api/portfolio/cash-balances")
	if err != nil {
		return nil, err
	}

	var result CashBalancesResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse cash balances: %w", err)
	}

	return result.Balances, nil
}

// Trade represents an executed trade
type Trade struct {
	OrderID    string  `json:"order_id"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	ExecutedAt string  `json:"executed_at"`
}

// ExecutedTradesResponse is the response for GetExecutedTrades
type ExecutedTradesResponse struct {
	Trades []Trade `json:"trades"`
}

// GetExecutedTrades gets executed trade history
func (c *Client) GetExecutedTrades(limit int) ([]Trade, error) {
	resp, err := c.get(fmt.Sprintf("/api/transactions/executed-trades?limit=%d", limit))
	if err != nil {
		return nil, err
	}

	var result ExecutedTradesResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse executed trades: %w", err)
	}

	return result.Trades, nil
}

// HealthResponse is the response for Health
type HealthResponse struct {
	Connected bool   `json:"connected"`
	Timestamp string `json:"timestamp"`
}

// Health checks bridge connectivity and credential validity
func (c *Client) Health() (*HealthResponse, error) {
	resp, err := c.get("/api/health")
	if err != nil {
		return nil, err
	}

	var result HealthResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}

	return &result, nil
}
