package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/lifelens/internal/journal"
	"github.com/kalambet/lifelens/internal/pipeline"
	"github.com/kalambet/lifelens/internal/storage"
	"github.com/kalambet/lifelens/internal/worker"
)

// LatestReportURI is the MCP resource holding the newest completed report.
const LatestReportURI = "report://latest"

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Analyzer worker.Analyzer
	// Base holds the configured analysis settings tool arguments override.
	Base pipeline.Options
}

// NewMCPServer creates an MCP server with the lifelens tools and resources.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"lifelens",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("lifelens analyzes dated journal entries for recurring themes, weekly mood trends, day-of-week patterns and unusual entries. Call analyze_journal with the entries, then read the report or list earlier runs."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("analyze_journal",
			mcp.WithDescription("Analyze journal entries and return the report JSON. The run is stored and can be fetched later with get_report."),
			mcp.WithString("records",
				mcp.Required(),
				mcp.Description(`JSON array or YAML list of entries, each with "entry_id", "date" (YYYY-MM-DD) and any of "text", "voice_transcript", "image_caption"`),
			),
			mcp.WithNumber("clusters",
				mcp.Description("Number of themes to find (default from config)"),
			),
			mcp.WithNumber("seed",
				mcp.Description("Random seed for clustering and outlier scoring"),
			),
			mcp.WithNumber("contamination",
				mcp.Description("Expected share of unusual entries, between 0 and 1"),
			),
		),
		mcpAnalyzeJournal(deps),
	)

	s.AddTool(
		mcp.NewTool("list_runs",
			mcp.WithDescription("List recent analysis runs, newest first"),
			mcp.WithNumber("limit",
				mcp.Description("Max runs to return (default 10, max 50)"),
			),
		),
		mcpListRuns(deps),
	)

	s.AddTool(
		mcp.NewTool("get_report",
			mcp.WithDescription("Return the report JSON of a completed run"),
			mcp.WithString("run_id",
				mcp.Required(),
				mcp.Description("Run id returned by analyze_journal or list_runs"),
			),
		),
		mcpGetReport(deps),
	)

	s.AddResource(
		mcp.NewResource(
			LatestReportURI,
			"Latest Report",
			mcp.WithResourceDescription("Report of the most recently completed analysis run"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceLatest(deps),
	)

	return s
}

func mcpAnalyzeJournal(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("records")
		if err != nil {
			return mcpError("records is required"), nil
		}
		records, err := journal.Decode([]byte(text), journal.FormatAuto)
		if err != nil {
			return mcpError(fmt.Sprintf("invalid records: %v", err)), nil
		}

		params := pipeline.Params{
			Clusters:      req.GetInt("clusters", 0),
			Contamination: req.GetFloat("contamination", 0),
		}
		if seed := req.GetInt("seed", -1); seed >= 0 {
			s := uint64(seed)
			params.Seed = &s
		}
		if err := validateParams(params); err != nil {
			return mcpError(err.Error()), nil
		}
		_, res, err := worker.RunNow(ctx, deps.Store, deps.Analyzer, "mcp", records, params, deps.Base)
		if err != nil {
			var se *pipeline.StageError
			if errors.As(err, &se) {
				return mcpError(fmt.Sprintf("analysis failed at %s stage: %v", se.Stage, se.Err)), nil
			}
			return mcpError(fmt.Sprintf("analysis failed: %v", err)), nil
		}

		body, err := json.Marshal(res.Report)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal report: %v", err)), nil
		}
		return mcpText(string(body)), nil
	}
}

func mcpListRuns(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		runs, err := deps.Store.ListRuns(limit, 0)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list runs: %v", err)), nil
		}

		views := make([]RunView, len(runs))
		for i, r := range runs {
			views[i] = NewRunView(r)
		}
		b, err := json.Marshal(views)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal runs: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetReport(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("run_id")
		if err != nil {
			return mcpError("run_id is required"), nil
		}

		run, err := deps.Store.GetRun(id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("run %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get run: %v", err)), nil
		}
		if run.Status != storage.RunCompleted {
			msg := fmt.Sprintf("run %s is %s", id, run.Status)
			if run.Error != "" {
				msg += ": " + run.Error
			}
			return mcpError(msg), nil
		}
		return mcpText(run.ReportJSON), nil
	}
}

func mcpResourceLatest(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		run, err := deps.Store.LatestCompletedRun()
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errors.New("no completed runs yet")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get latest run: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     run.ReportJSON,
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
