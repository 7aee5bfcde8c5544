// Package owid provides access to the Our World in Data COVID-19 endpoints.
// It fetches the per-country CSV, the gzip-compressed bulk CSV and the latest
// snapshot JSON, and parses them into RawTables.
package owid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rewired-gh/covidboard/internal/logger"
	"github.com/rewired-gh/covidboard/internal/models"
)

// Key columns used by the two source variants.
const (
	CountryColumn  = "country"
	LocationColumn = "location"
)

// ClientConfig holds HTTP client tuning parameters.
type ClientConfig struct {
	BulkPath            string
	MaxRetries          int
	RetryDelayBase      time.Duration
	DatePolicy          DatePolicy
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// Client provides access to the OWID API
type Client struct {
	baseURL        string
	bulkPath       string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
	datePolicy     DatePolicy
}

// NewClient creates a new OWID client. timeout bounds every single HTTP attempt.
func NewClient(baseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.DatePolicy == "" {
		cfg.DatePolicy = DatePolicySkip
	}
	if cfg.BulkPath == "" {
		cfg.BulkPath = "/data/owid-covid-data.csv.gz"
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 10
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 2
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		bulkPath: "/" + strings.TrimLeft(cfg.BulkPath, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        cfg.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
				IdleConnTimeout:     cfg.IdleConnTimeout,
			},
		},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		datePolicy:     cfg.DatePolicy,
	}
}

// Fetch retrieves the raw table named by the descriptor.
func (c *Client) Fetch(ctx context.Context, d models.Descriptor) (*RawTable, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.Variant == models.Bulk {
		return c.FetchBulk(ctx)
	}
	return c.FetchEntity(ctx, d.Entity)
}

// FetchEntity retrieves the per-country time series.
// The endpoint omits the key column, so it is stamped from the requested key.
func (c *Client) FetchEntity(ctx context.Context, key string) (*RawTable, error) {
	u := fmt.Sprintf("%s/v1/country/%s.csv", c.baseURL, url.PathEscape(key))
	table, err := c.fetchCSV(ctx, u)
	if err != nil {
		return nil, err
	}
	if !table.HasColumn(CountryColumn) && !table.HasColumn(LocationColumn) {
		table.StampText(CountryColumn, key)
	}
	logger.Debug("Fetched %d rows for %s (%d metrics)", len(table.Rows), key, len(table.MetricColumns))
	return table, nil
}

// FetchBulk retrieves the full multi-country dataset.
func (c *Client) FetchBulk(ctx context.Context) (*RawTable, error) {
	table, err := c.fetchCSV(ctx, c.baseURL+c.bulkPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("Fetched %d bulk rows (%d metrics)", len(table.Rows), len(table.MetricColumns))
	return table, nil
}

// FetchEntityList retrieves the latest snapshot and returns its entity keys, sorted.
func (c *Client) FetchEntityList(ctx context.Context) ([]string, error) {
	u := c.baseURL + "/v1/owid-covid-latest.json"
	resp, err := c.doRequest(ctx, u, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var latest map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&latest); err != nil {
		return nil, &models.FetchError{URL: u, Err: &models.ParseError{Err: fmt.Errorf("decode latest snapshot: %w", err)}}
	}

	keys := make([]string, 0, len(latest))
	for k := range latest {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *Client) fetchCSV(ctx context.Context, u string) (*RawTable, error) {
	resp, err := c.doRequest(ctx, u, "text/csv")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	table, err := ParseCSV(resp.Body, c.datePolicy)
	if err != nil {
		return nil, &models.FetchError{URL: u, Err: err}
	}
	return table, nil
}

// doRequest performs HTTP GET with retry logic.
// Transport errors and 5xx responses are retried; other non-2xx statuses fail immediately.
func (c *Client) doRequest(ctx context.Context, u, accept string) (*http.Response, error) {
	var lastErr error
	lastStatus := 0

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			delay := c.retryDelayBase * time.Duration(i)
			logger.Warn("Retrying %s in %v (attempt %d/%d): %v", u, delay, i+1, c.maxRetries, lastErr)
			select {
			case <-ctx.Done():
				return nil, &models.FetchError{URL: u, Status: lastStatus, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, &models.FetchError{URL: u, Err: err}
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("User-Agent", "covidboard/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			lastStatus = 0
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if resp.StatusCode >= 500 {
			drain(resp.Body)
			lastErr = fmt.Errorf("server error: %s", resp.Status)
			lastStatus = resp.StatusCode
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			drain(resp.Body)
			return nil, &models.FetchError{URL: u, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
		}

		return resp, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return nil, &models.FetchError{URL: u, Status: lastStatus, Err: fmt.Errorf("max retries exceeded: %w", lastErr)}
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
