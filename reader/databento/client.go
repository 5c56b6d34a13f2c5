package databento

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	appconfig "ofiflow/config"
	"ofiflow/logger"
)

// Client fetches historical book data from a Databento-compatible service.
// It owns its credentials, connection pool and request pacing; the analysis
// pipeline never touches it and only reads the CSV files it leaves behind.
type Client struct {
	cfg        appconfig.DatabentoConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Log
}

// NewClient creates a Client from the databento section of the
// configuration. Connection pool sizing mirrors the config; the rate
// limiter defaults to one request per second when unset.
func NewClient(cfg appconfig.DatabentoConfig) *Client {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Minute
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}

	client := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
	}

	log.WithComponent("databento_reader").WithFields(logger.Fields{
		"url":     cfg.URL,
		"dataset": cfg.Dataset,
		"schema":  cfg.Schema,
		"rps":     rps,
	}).Info("databento client initialized")

	return client
}

// FetchRange downloads the configured date range for one symbol as CSV and
// writes it to destPath. The request authenticates with HTTP basic auth
// using the API key as the user name, the scheme the historical API uses.
func (c *Client) FetchRange(ctx context.Context, symbol, destPath string) error {
	log := c.log.WithComponent("databento_reader").WithFields(logger.Fields{
		"symbol": symbol,
		"start":  c.cfg.Start,
		"end":    c.cfg.End,
	})

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter interrupted: %w", err)
	}

	endpoint, err := url.Parse(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("invalid databento url: %w", err)
	}
	endpoint.Path = "/v0/timeseries.get_range"

	params := url.Values{}
	params.Set("dataset", c.cfg.Dataset)
	params.Set("symbols", symbol)
	params.Set("schema", c.cfg.Schema)
	params.Set("start", c.cfg.Start)
	params.Set("end", c.cfg.End)
	params.Set("encoding", "csv")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.cfg.APIKey, "")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("databento returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create data file: %w", err)
	}
	written, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to write data file: %w", err)
	}

	logger.RecordChannelMessage("databento_fetch", int(written))
	logger.LogPerformanceEntry(log, "databento_reader", "fetch_range", time.Since(start), logger.Fields{
		"bytes": written,
		"path":  destPath,
	})

	return nil
}

// EnsureData fetches any instrument whose CSV file is missing from dir.
// Files already on disk are left untouched so repeated runs stay cheap.
func (c *Client) EnsureData(ctx context.Context, instruments []string, dir string) error {
	log := c.log.WithComponent("databento_reader")

	for _, sym := range instruments {
		path := filepath.Join(dir, sym+".csv")
		if _, err := os.Stat(path); err == nil {
			log.WithFields(logger.Fields{"symbol": sym, "path": path}).Debug("data file present, skipping fetch")
			continue
		}
		log.WithFields(logger.Fields{"symbol": sym}).Info("fetching historical data")
		if err := c.FetchRange(ctx, sym, path); err != nil {
			return fmt.Errorf("fetch for %s failed: %w", sym, err)
		}
	}
	return nil
}
