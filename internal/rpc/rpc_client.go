package rpc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"upkeeper/internal/config"
	"upkeeper/internal/logger"
)

// HTTPClient is the API surface the CLI subcommands talk through.
type HTTPClient interface {
	Get(path string, params map[string]interface{}) (*HTTPResponse, error)
	Post(path string, data interface{}) (*HTTPResponse, error)
	Delete(path string, params map[string]interface{}) (*HTTPResponse, error)
}

// HTTPConfig defines client settings for reaching the local server.
type HTTPConfig struct {
	Timeout time.Duration
	BaseURL string
}

/**
 * Default client configuration
 * @description
 * - Targets the configured server listen address over plain HTTP
 * - Five second timeout matches interactive CLI expectations
 */
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		Timeout: 5 * time.Second,
		BaseURL: fmt.Sprintf("http://%s", config.Get().Server.Address),
	}
}

type httpClient struct {
	config *HTTPConfig
	client *http.Client
}

/**
 * Create new HTTP client for talking to the local server
 * @param {HTTPConfig} config - Client configuration, nil uses defaults
 * @returns {HTTPClient} HTTP client interface
 */
func NewHTTPClient(cfg *HTTPConfig) HTTPClient {
	if cfg == nil {
		cfg = DefaultHTTPConfig()
	}

	return &httpClient{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *httpClient) do(method, path string, params map[string]interface{}, data interface{}) (*HTTPResponse, error) {
	url, err := buildURL(c.config.BaseURL, path, params)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	body, err := serializeData(data)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Sending %s request to %s", method, url)

	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return deserializeResponse(resp)
}

func (c *httpClient) Get(path string, params map[string]interface{}) (*HTTPResponse, error) {
	return c.do(http.MethodGet, path, params, nil)
}

func (c *httpClient) Post(path string, data interface{}) (*HTTPResponse, error) {
	return c.do(http.MethodPost, path, nil, data)
}

func (c *httpClient) Delete(path string, params map[string]interface{}) (*HTTPResponse, error) {
	return c.do(http.MethodDelete, path, params, nil)
}
