// Package nso is a RESTCONF client for Cisco NSO.
//
// It covers the surface loopctl needs: device inventory, sync-from,
// device config reads, loopback interface writes with NSO-native
// dry-run and rollback-id tracking, and applying rollback files. The
// transactional semantics behind commit and rollback belong to NSO;
// this client only drives them.
package nso

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/netops-lab/loopctl/pkg/util"
)

const yangDataJSON = "application/yang-data+json"

// Config holds NSO connection parameters.
type Config struct {
	Host      string
	Port      int // default 8080
	Username  string
	Password  string
	UseHTTPS  bool
	VerifySSL bool // false for sandbox environments
	Timeout   time.Duration
}

// Client talks to one NSO instance.
type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given NSO instance.
func NewClient(cfg Config) *Client {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	scheme := "http"
	transport := http.DefaultTransport
	if cfg.UseHTTPS {
		scheme = "https"
		if !cfg.VerifySSL {
			transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			}
		}
	}

	c := &Client{
		cfg:     cfg,
		baseURL: fmt.Sprintf("%s://%s:%d/restconf", scheme, cfg.Host, cfg.Port),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}

	util.Infof("initialized NSO client for %s:%d", cfg.Host, cfg.Port)
	return c
}

// BaseURL returns the RESTCONF root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do issues a request with RESTCONF headers and basic auth. Responses
// with status >= 400 are turned into errors carrying a body snippet.
// The caller owns the response body.
func (c *Client) do(ctx context.Context, method, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, url, err)
	}
	if contentType == "" {
		contentType = yangDataJSON
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", yangDataJSON)
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	util.Debugf("%s %s", method, url)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &StatusError{
			Method: method,
			URL:    url,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(snippet)),
		}
	}
	return resp, nil
}

// getJSON issues a GET and decodes the yang-data response into out.
// A 204 leaves out untouched.
func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, url, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}

// StatusError is an HTTP-level failure from NSO.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// IsNotFound reports whether err is an NSO 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

// HealthCheck verifies NSO is reachable and responding to RESTCONF.
func (c *Client) HealthCheck(ctx context.Context) error {
	url := c.baseURL + "/data/tailf-ncs:devices"
	resp, err := c.do(ctx, http.MethodGet, url, "", nil)
	if err != nil {
		return fmt.Errorf("NSO health check: %w", err)
	}
	resp.Body.Close()
	return nil
}

// ListDevices returns the names of all NSO-managed devices.
func (c *Client) ListDevices(ctx context.Context) ([]string, error) {
	url := c.baseURL + "/data/tailf-ncs:devices/device?fields=name"

	var out struct {
		Devices []struct {
			Name string `json:"name"`
		} `json:"tailf-ncs:device"`
	}
	if err := c.getJSON(ctx, url, &out); err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	names := make([]string, 0, len(out.Devices))
	for _, d := range out.Devices {
		names = append(names, d.Name)
	}
	return names, nil
}

// DeviceConfig returns the device's full config subtree from the CDB
// as raw yang-data JSON. Callers that only care about loopbacks should
// use ListLoopbacks instead.
func (c *Client) DeviceConfig(ctx context.Context, device string) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/data/tailf-ncs:devices/device=%s/config", c.baseURL, device)

	resp, err := c.do(ctx, http.MethodGet, url, "", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching config for %s: %w", device, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading config for %s: %w", device, err)
	}
	return raw, nil
}

// SyncFrom pulls the device's running config into NSO's CDB so reads
// reflect live state.
func (c *Client) SyncFrom(ctx context.Context, device string) error {
	url := fmt.Sprintf("%s/data/tailf-ncs:devices/device=%s/sync-from", c.baseURL, device)

	resp, err := c.do(ctx, http.MethodPost, url, "", strings.NewReader(`{"input": {}}`))
	if err != nil {
		return fmt.Errorf("sync-from %s: %w", device, err)
	}
	defer resp.Body.Close()

	var out struct {
		Output struct {
			Result bool   `json:"result"`
			Info   string `json:"info"`
		} `json:"tailf-ncs:output"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && !out.Output.Result {
		return fmt.Errorf("sync-from %s: %s", device, out.Output.Info)
	}

	util.WithDevice(device).Debug("sync-from complete")
	return nil
}
