// Package tools implements the knowledge agents as eino tools. Each agent
// wraps one external HTTP API: build the request, call it once with a bounded
// timeout, and map the response into a short structured summary.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/knowledge-navigator/server/internal/agent/model"
)

const (
	ToolQueryWikidata    = "query_wikidata"
	ToolWikipediaSummary = "get_wikipedia_summary"
	ToolGeocodePlace     = "geocode_place"
	ToolGetWeather       = "get_weather"
)

// errNotFound marks an upstream 404 so agents can surface absence distinctly
// from transport failures.
var errNotFound = errors.New("not found")

// Client is the shared HTTP plumbing for the knowledge agents.
type Client struct {
	cfg  model.AgentsConfig
	http *http.Client
}

func NewClient(cfg model.AgentsConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) getJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	target := rawURL
	if len(params) > 0 {
		target = rawURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", req.URL.Host, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// NewQueryTools builds the full set of knowledge agents sharing one client.
func NewQueryTools(c *Client) []tool.BaseTool {
	return []tool.BaseTool{
		createWikidataTool(c),
		createWikipediaTool(c),
		createGeocodeTool(c),
		createWeatherTool(c),
	}
}

// GetToolInfos resolves the ToolInfo of every tool for model binding.
func GetToolInfos(ctx context.Context, ts []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(ts))
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
