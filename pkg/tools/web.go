package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/fault"
	"github.com/veraxis/scout/pkg/httpclient"
)

const (
	fetchContentLimit = 100 * 1024
	userAgent         = "scout-research-agent"
)

// ============================================================================
// WEB SEARCH
// ============================================================================

type webSearchArgs struct {
	Query string `json:"query" jsonschema:"required,description=Search query text"`
	Count int    `json:"count,omitempty" jsonschema:"description=Maximum number of results to return"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Snippet string `json:"snippet"`
}

// WebSearchTool queries a configured search endpoint and formats the hits
// as a numbered list. Rate limits and server errors surface as transient
// faults so the executor's retry policy applies.
type WebSearchTool struct {
	cfg    config.WebSearchConfig
	client *httpclient.Client
}

func NewWebSearchTool(cfg config.WebSearchConfig) *WebSearchTool {
	return &WebSearchTool{
		cfg: cfg,
		// Retry policy lives in the executor, not the transport.
		client: httpclient.New(httpclient.WithMaxRetries(0)),
	}
}

func (t *WebSearchTool) GetName() string { return "web_search" }

func (t *WebSearchTool) GetDescription() string {
	return "Search the web for current information. Returns titles, URLs, and snippets."
}

func (t *WebSearchTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters:  MustReflectParameters(webSearchArgs{}),
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	if t.cfg.Endpoint == "" {
		return errorResult(t.GetName(), "web search endpoint not configured"), nil
	}

	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return errorResult(t.GetName(), "query cannot be empty"), nil
	}

	count := t.cfg.MaxResults
	if c, ok := argInt(args, "count"); ok && c > 0 && c < count {
		count = c
	}

	endpoint := fmt.Sprintf("%s?q=%s&format=json", strings.TrimRight(t.cfg.Endpoint, "/"), url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("invalid search request: %v", err)), nil
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if t.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// The client reports every non-2xx status as an error with the
		// response attached; a nil response means the network failed.
		if resp == nil {
			return ToolResult{}, fault.NewTransientError(t.GetName(), 1, err)
		}
		resp.Body.Close()
		if retryableStatus(resp.StatusCode) {
			return ToolResult{}, fault.NewTransientError(t.GetName(), 1,
				fmt.Errorf("search endpoint returned %s", resp.Status))
		}
		return errorResult(t.GetName(), fmt.Sprintf("search endpoint returned %s", resp.Status)), nil
	}
	defer resp.Body.Close()

	var parsed searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, fetchContentLimit)).Decode(&parsed); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("invalid response from search endpoint: %v", err)), nil
	}

	if len(parsed.Results) == 0 {
		return successResult(t.GetName(), fmt.Sprintf("No results found for '%s'.", query)), nil
	}
	if len(parsed.Results) > count {
		parsed.Results = parsed.Results[:count]
	}

	var b strings.Builder
	for i, r := range parsed.Results {
		snippet := r.Content
		if snippet == "" {
			snippet = r.Snippet
		}
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if snippet != "" {
			fmt.Fprintf(&b, "   %s\n", snippet)
		}
	}

	result := successResult(t.GetName(), strings.TrimRight(b.String(), "\n"))
	result.Metadata = map[string]any{
		"query":        query,
		"result_count": len(parsed.Results),
	}
	return result, nil
}

// ============================================================================
// FETCH URL
// ============================================================================

type fetchURLArgs struct {
	URL string `json:"url" jsonschema:"required,description=The http or https URL to fetch"`
}

// FetchURLTool retrieves the body of a URL, capped to a fixed size.
type FetchURLTool struct {
	client *httpclient.Client
}

func NewFetchURLTool() *FetchURLTool {
	return &FetchURLTool{
		client: httpclient.New(httpclient.WithMaxRetries(0)),
	}
}

func (t *FetchURLTool) GetName() string { return "fetch_url" }

func (t *FetchURLTool) GetDescription() string {
	return "Fetch the raw content of a web page or API endpoint."
}

func (t *FetchURLTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters:  MustReflectParameters(fetchURLArgs{}),
	}
}

func (t *FetchURLTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	rawURL, _ := args["url"].(string)
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("invalid URL: %v", err)), nil
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errorResult(t.GetName(), fmt.Sprintf("unsupported URL scheme %q", parsed.Scheme)), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("invalid request: %v", err)), nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		if resp == nil {
			return ToolResult{}, fault.NewTransientError(t.GetName(), 1, err)
		}
		resp.Body.Close()
		if retryableStatus(resp.StatusCode) {
			return ToolResult{}, fault.NewTransientError(t.GetName(), 1,
				fmt.Errorf("fetch returned %s", resp.Status))
		}
		return errorResult(t.GetName(), fmt.Sprintf("fetch returned %s", resp.Status)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchContentLimit+1))
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("reading response: %v", err)), nil
	}

	truncated := false
	if len(body) > fetchContentLimit {
		body = body[:fetchContentLimit]
		truncated = true
	}

	content := string(body)
	if truncated {
		content += "\n... [content truncated]"
	}

	result := successResult(t.GetName(), content)
	result.Metadata = map[string]any{
		"url":          rawURL,
		"status_code":  resp.StatusCode,
		"content_type": resp.Header.Get("Content-Type"),
		"size":         len(body),
		"truncated":    truncated,
	}
	return result, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func argInt(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
