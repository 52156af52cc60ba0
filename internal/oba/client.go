// Package oba is a client for the OneBusAway style BKK FUTÁR API.
package oba

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
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/budapestmetrodisplay/metrodisplay/internal/logging"
	"github.com/budapestmetrodisplay/metrodisplay/internal/models"
)

const (
	DefaultTimeout = 5 * time.Second
	apiVersion     = "4"
	maxBodySize    = 25 * 1024 * 1024
)

type Options struct {
	BaseURL    string
	APIKey     string
	AppVersion string
	// Timeout bounds a single call. Zero means DefaultTimeout.
	Timeout time.Duration
	// CallSpacing is the minimum gap between two calls. Zero disables spacing.
	CallSpacing time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

type Client struct {
	baseURL    string
	apiKey     string
	appVersion string
	timeout    time.Duration
	http       *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(timeout)
	}
	limit := rate.Inf
	if opts.CallSpacing > 0 {
		limit = rate.Every(opts.CallSpacing)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		appVersion: opts.AppVersion,
		timeout:    timeout,
		http:       httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.With(slog.String("component", "oba_client")),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	var transport *http.Transport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = &http.Transport{}
	}
	transport.MaxIdleConnsPerHost = 4
	transport.IdleConnTimeout = 90 * time.Second
	transport.TLSHandshakeTimeout = timeout
	return &http.Client{Timeout: timeout, Transport: transport}
}

// ScheduleQuery selects a stop set and time window.
type ScheduleQuery struct {
	StopIDs       []string
	MinutesBefore int
	MinutesAfter  int
	Limit         int
}

// ArrivalsAndDepartures calls arrivals-and-departures-for-stop.
func (c *Client) ArrivalsAndDepartures(ctx context.Context, q ScheduleQuery) (*models.ArrivalsResponse, error) {
	params := url.Values{}
	for _, id := range q.StopIDs {
		params.Add("stopId", id)
	}
	params.Set("minutesBefore", strconv.Itoa(q.MinutesBefore))
	params.Set("minutesAfter", strconv.Itoa(q.MinutesAfter))
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("onlyDepartures", "false")
	params.Set("includeReferences", "routes,alerts")
	return c.get(ctx, "arrivals-and-departures-for-stop", params)
}

// RouteDetails calls route-details, which carries the route's alerts.
func (c *Client) RouteDetails(ctx context.Context, routeID string) (*models.ArrivalsResponse, error) {
	params := url.Values{}
	params.Set("routeId", routeID)
	params.Set("includeReferences", "alerts")
	return c.get(ctx, "route-details", params)
}

func (c *Client) get(ctx context.Context, method string, params url.Values) (*models.ArrivalsResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Kind: KindRequest, Op: method, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params.Set("appVersion", c.appVersion)
	params.Set("version", apiVersion)
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+method+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &FetchError{Kind: KindRequest, Op: method, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: classifyTransport(err), Op: method, Err: err}
	}
	defer logging.SafeCloseWithLogging(resp.Body, c.logger, "http_response_body")

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, &FetchError{Kind: KindStatus, Op: method, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, &FetchError{Kind: classifyTransport(err), Op: method, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if int64(len(body)) > maxBodySize {
		return nil, &FetchError{Kind: KindMalformed, Op: method, Err: fmt.Errorf("response exceeds size limit of %d bytes", maxBodySize)}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &FetchError{Kind: KindMalformed, Op: method, Err: errors.New("empty response body")}
	}

	var out models.ArrivalsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &FetchError{Kind: KindInvalidJSON, Op: method, Err: err}
	}
	return &out, nil
}
