package mcp

import (
	"context"
	"encoding/json"

	"github.com/headline-dev/headline/pkg/models"
)

type newsArgs struct {
	Category string `json:"category"`
	Country  string `json:"country"`
}

type fetchLogArgs struct {
	Category string `json:"category"`
	Outcome  string `json:"outcome"`
	Limit    int    `json:"limit"`
}

type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

var toolHandlers = map[string]toolHandler{
	"headline_news":        handleNews,
	"headline_categories":  handleCategories,
	"headline_cache_stats": handleCacheStats,
	"headline_cache_clear": handleCacheClear,
	"headline_fetch_log":   handleFetchLog,
}

var emptySchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{},
}

var allTools = []ToolDefinition{
	{
		Name:        "headline_news",
		Description: "Get up to 10 current news articles for a category, served from cache when fresh.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"category"},
			"properties": map[string]any{
				"category": map[string]any{
					"type":        "string",
					"description": "Category token, e.g. technology or region (see headline_categories)",
				},
				"country": map[string]any{
					"type":        "string",
					"description": "Two-letter country code (optional; region defaults to the configured country)",
				},
			},
		},
	},
	{
		Name:        "headline_categories",
		Description: "List the category tokens headline_news accepts.",
		InputSchema: emptySchema,
	},
	{
		Name:        "headline_cache_stats",
		Description: "Show content cache statistics (entries, fresh hits, stale hits, misses).",
		InputSchema: emptySchema,
	},
	{
		Name:        "headline_cache_clear",
		Description: "Drop every cached content list so the next request refreshes from the news API.",
		InputSchema: emptySchema,
	},
	{
		Name:        "headline_fetch_log",
		Description: "Show recent upstream fetch attempts with their outcome.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category": map[string]any{
					"type":        "string",
					"description": "Filter by category (optional)",
				},
				"outcome": map[string]any{
					"type":        "string",
					"description": "Filter by outcome: success, transport, protocol, application, decode (optional)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum entries to return (default 20)",
				},
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: true}
}

func handleNews(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args newsArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Category == "" {
		return errorResult("category is required")
	}
	res := s.svc.Fetch(ctx, args.Category, args.Country)
	return textResult(formatResult(res))
}

func handleCategories(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatCategories(s.svc.Categories()))
}

func handleCacheStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	stats, err := s.svc.CacheStats()
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}

func handleCacheClear(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	s.svc.ClearCache()
	return textResult("Content cache cleared.")
}

func handleFetchLog(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.fetchLog == nil {
		return textResult("Fetch logging is not configured.")
	}
	var args fetchLogArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Limit <= 0 {
		args.Limit = 20
	}

	entries, err := s.fetchLog.Query(ctx, models.FetchQueryOpts{
		Category: args.Category,
		Outcome:  models.FetchOutcome(args.Outcome),
		Limit:    args.Limit,
	})
	if err != nil {
		return errorResult("Error querying fetch log: " + err.Error())
	}
	return textResult(formatFetchEntries(entries))
}
