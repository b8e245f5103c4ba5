// Package marketstack is a client for the marketstack end-of-day price API.
package marketstack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.marketstack.com/v1"
	DateFormat     = "2006-01-02"

	SortDesc = "DESC"
	SortAsc  = "ASC"
)

// ErrMalformedResponse is returned when a 200 response carries no data array.
var ErrMalformedResponse = errors.New("marketstack: response has no data field")

// Client calls the marketstack API. Requests have no timeout and no
// throttling unless options set them.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logrus.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(log *logrus.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// WithRateLimit throttles outgoing requests. Zero or negative disables it.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	silent := logrus.New()
	silent.SetOutput(io.Discard)

	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		log:        silent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bar is one end-of-day record. Date is the upstream ISO datetime,
// e.g. "2024-03-04T00:00:00+0000".
type Bar struct {
	Symbol string          `json:"symbol"`
	Close  decimal.Decimal `json:"close"`
	Date   string          `json:"date"`
}

// Day returns the calendar date of the bar at midnight UTC.
func (b Bar) Day() (time.Time, error) {
	day := b.Date
	if len(day) > len(DateFormat) && day[len(DateFormat)] == 'T' {
		day = day[:len(DateFormat)]
	}
	t, err := time.Parse(DateFormat, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("marketstack: bad date %q in response: %w", b.Date, err)
	}
	return t, nil
}

// EODQuery selects bars for one symbol. From and To are inclusive calendar dates.
type EODQuery struct {
	Symbol string
	From   time.Time
	To     time.Time
	Sort   string
	Limit  int
}

// APIError is a marketstack error, either a non-200 status or an error object
// in the body.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("marketstack API error: %s: %s (status: %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("marketstack API error: %s (status: %d)", e.Message, e.StatusCode)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type eodResponse struct {
	Data  *[]Bar     `json:"data"`
	Error *errorBody `json:"error"`
}

// EOD fetches end-of-day bars for q.
func (c *Client) EOD(ctx context.Context, q EODQuery) ([]Bar, error) {
	params := url.Values{}
	params.Set("symbols", q.Symbol)
	if !q.From.IsZero() {
		params.Set("date_from", q.From.Format(DateFormat))
	}
	if !q.To.IsZero() {
		params.Set("date_to", q.To.Format(DateFormat))
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var body eodResponse
	if err := c.get(ctx, "/eod", params, &body); err != nil {
		return nil, err
	}
	if body.Data == nil {
		return nil, ErrMalformedResponse
	}
	return *body.Data, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result *eodResponse) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	c.log.WithFields(logrus.Fields{
		"path":      path,
		"symbols":   params.Get("symbols"),
		"date_from": params.Get("date_from"),
		"date_to":   params.Get("date_to"),
	}).Debug("marketstack request")

	params.Set("access_key", c.apiKey)
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error embeds the full URL, which carries the access key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("failed to execute request: %w", uerr.Err)
		}
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
		var eb eodResponse
		if json.Unmarshal(raw, &eb) == nil && eb.Error != nil {
			apiErr.Code, apiErr.Message = eb.Error.Code, eb.Error.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != nil {
		return &APIError{StatusCode: resp.StatusCode, Code: result.Error.Code, Message: result.Error.Message}
	}
	return nil
}
