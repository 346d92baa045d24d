package modrinth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"resource-downloader/catalog"
	"resource-downloader/config"
	"resource-downloader/resource"

	"go.uber.org/zap"
)

const (
	modrinthAPIURL = "https://api.modrinth.com/v2"
	defaultTimeout = 30 * time.Second
)

// Client handles communication with the Modrinth API.
type Client struct {
	BaseURL    string
	APIKey     string
	UserAgent  string
	HTTPClient *http.Client
	Log        *zap.SugaredLogger
}

var _ catalog.Client = (*Client)(nil)

// NewClient creates a new Modrinth API client using the provided configuration.
func NewClient(cfg config.Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("USERAGENT is not configured")
	}
	baseURL := cfg.ModrinthAPIURL
	if baseURL == "" {
		baseURL = modrinthAPIURL
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     cfg.ModrinthAPIKey,
		UserAgent:  cfg.UserAgent,
		HTTPClient: &http.Client{Timeout: timeout},
		Log:        zap.NewNop().Sugar(),
	}, nil
}

// do sends a request and returns the response for a 2xx status. Everything else is
// mapped onto a catalog.TransportError.
func (c *Client) do(ctx context.Context, op, rawURL string, query url.Values, requiresAuth, binary bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	req.Header.Set("User-Agent", c.UserAgent)
	if c.APIKey != "" {
		req.Header.Set("Authorization", c.APIKey)
	} else if requiresAuth {
		return nil, fmt.Errorf("authentication required, but MODRINTH_API_KEY is not set")
	}
	if binary {
		req.Header.Set("Accept", "application/octet-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Timeouts, resets and refused connections are all worth another try.
		return nil, &catalog.TransportError{Op: op, Transient: true, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, catalog.ClassifyStatus(op, resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, target any, requiresAuth bool) error {
	resp, err := c.do(ctx, op, c.BaseURL+path, query, requiresAuth, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return &catalog.TransportError{Op: op, Err: fmt.Errorf("failed to decode json response: %w", err)}
	}
	return nil
}

// ListVersions streams every version of projectID. Versions without files are skipped.
func (c *Client) ListVersions(ctx context.Context, projectID string) iter.Seq2[resource.VersionRecord, error] {
	return func(yield func(resource.VersionRecord, error) bool) {
		op := "list versions of " + projectID
		resp, err := c.do(ctx, op, c.BaseURL+"/project/"+url.PathEscape(projectID)+"/version", nil, false, false)
		if err != nil {
			yield(resource.VersionRecord{}, err)
			return
		}
		defer resp.Body.Close()

		dec := json.NewDecoder(resp.Body)
		if tok, err := dec.Token(); err != nil || tok != json.Delim('[') {
			yield(resource.VersionRecord{}, &catalog.TransportError{Op: op, Err: fmt.Errorf("expected a JSON array: %v", err)})
			return
		}
		for dec.More() {
			var v Version
			if err := dec.Decode(&v); err != nil {
				yield(resource.VersionRecord{}, &catalog.TransportError{Op: op, Transient: ctx.Err() == nil, Err: err})
				return
			}
			rec, ok := v.Record()
			if !ok {
				c.Log.Debugw("Skipping version without files", zap.String("version_id", v.ID))
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// GetProject retrieves details for a project by ID or slug.
func (c *Client) GetProject(ctx context.Context, projectID string) (resource.Project, error) {
	var project Project
	if err := c.getJSON(ctx, "get project "+projectID, "/project/"+url.PathEscape(projectID), nil, &project, false); err != nil {
		return resource.Project{}, err
	}
	return project.Resource()
}

// FetchBytes opens a download URL.
func (c *Client) FetchBytes(ctx context.Context, locator string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, "download "+locator, locator, nil, false, true)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetVersionByHash looks a file up by its hash. algorithm is sha1 or sha512.
func (c *Client) GetVersionByHash(ctx context.Context, hash, algorithm string) (resource.VersionRecord, error) {
	var version Version
	query := url.Values{"algorithm": {algorithm}}
	if err := c.getJSON(ctx, "get version by hash", "/version_file/"+url.PathEscape(hash), query, &version, false); err != nil {
		return resource.VersionRecord{}, err
	}
	rec, ok := version.Record()
	if !ok {
		return resource.VersionRecord{}, fmt.Errorf("version %s has no files", version.ID)
	}
	return rec, nil
}

// GetFollowedProjects lists the projects the API key's user follows.
func (c *Client) GetFollowedProjects(ctx context.Context) ([]resource.Project, error) {
	var user User
	if err := c.getJSON(ctx, "get current user", "/user", nil, &user, true); err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("could not determine user ID from API key")
	}

	var projects []Project
	if err := c.getJSON(ctx, "get followed projects", "/user/"+url.PathEscape(user.ID)+"/follows", nil, &projects, true); err != nil {
		return nil, fmt.Errorf("failed to get followed projects: %w", err)
	}

	out := make([]resource.Project, 0, len(projects))
	for _, p := range projects {
		rp, err := p.Resource()
		if err != nil {
			c.Log.Infow("Skipping unsupported project type", zap.String("project", p.Slug), zap.String("type", p.ProjectType))
			continue
		}
		out = append(out, rp)
	}
	return out, nil
}
