// Package api is the CLI's client for the envmanager HTTP API.
package api

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/atinyakov/envmanager/internal/certgen"
	"github.com/atinyakov/envmanager/internal/models"
)

// DefaultTimeout bounds every request made by a Client built with New.
const DefaultTimeout = 10 * time.Second

const apiKeyHeader = "x-api-key"

var (
	// ErrUnauthorized means the server rejected the secret key.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the project or environment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrMissingVariables means an environment response had no variables field.
	ErrMissingVariables = errors.New("invalid response from server: missing variables")
)

// StatusError is returned for non-2xx responses other than 401 and 404.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client talks to one envmanager server.
type Client struct {
	BaseURL string
	Key     string
	HTTP    *http.Client
}

// New returns a client for baseURL authenticating with key. When caFile is
// set the server certificate is verified against that CA instead of the
// system roots.
func New(baseURL, key, caFile string) (*Client, error) {
	httpClient := &http.Client{Timeout: DefaultTimeout}
	if caFile != "" {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		pool, err := certgen.CertPool(caPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse CA cert: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
		}
	}
	return &Client{BaseURL: baseURL, Key: key, HTTP: httpClient}, nil
}

// ListProjects returns the project names known to the server.
func (c *Client) ListProjects(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.get(ctx, "/api/projects", &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ListEnvironments returns the environment names of project.
func (c *Client) ListEnvironments(ctx context.Context, project string) ([]string, error) {
	var names []string
	if err := c.get(ctx, "/api/projects/"+url.PathEscape(project)+"/envs", &names); err != nil {
		return nil, err
	}
	return names, nil
}

// GetEnv fetches the full environment record. An empty variable set is
// valid; a response without the variables field is not.
func (c *Client) GetEnv(ctx context.Context, project, env string) (*models.EnvData, error) {
	var body struct {
		LastModified time.Time          `json:"lastModified"`
		Variables    *map[string]string `json:"variables"`
	}
	if err := c.get(ctx, envPath(project, env), &body); err != nil {
		return nil, err
	}
	if body.Variables == nil || *body.Variables == nil {
		return nil, ErrMissingVariables
	}
	return &models.EnvData{LastModified: body.LastModified, Variables: *body.Variables}, nil
}

// Status fetches only the last modification time of the environment. A zero
// LastModified means the server did not report one.
func (c *Client) Status(ctx context.Context, project, env string) (*models.EnvStatus, error) {
	var st models.EnvStatus
	if err := c.get(ctx, envPath(project, env)+"/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func envPath(project, env string) string {
	return "/api/projects/" + url.PathEscape(project) + "/env/" + url.PathEscape(env)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.Key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return string(data)
}
