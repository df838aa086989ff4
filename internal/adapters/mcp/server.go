package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/verifiquant/internal/core/domain"
	"github.com/kirillkom/verifiquant/internal/core/ports"
)

const (
	ToolSearchCards   = "search_cards"
	ToolSolveQuestion = "solve_question"
)

// Server exposes card search and question solving as MCP tools.
type Server struct {
	solver   ports.QuestionSolver
	searcher ports.CardSearcher
	mcp      *server.MCPServer
}

func NewServer(name, version string, solver ports.QuestionSolver, searcher ports.CardSearcher) *Server {
	s := &Server{
		solver:   solver,
		searcher: searcher,
		mcp:      server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool(ToolSearchCards,
		mcp.WithDescription("Rank definition cards for a query with hybrid keyword and embedding search."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text query.")),
		mcp.WithString("domain", mcp.Description("Optional domain filter, case-insensitive.")),
		mcp.WithString("topic", mcp.Description("Optional topic filter, case-insensitive.")),
		mcp.WithNumber("top_k", mcp.Description("Number of cards to return.")),
		mcp.WithNumber("alpha", mcp.Description("Keyword weight in [0, 1]; embeddings get 1 - alpha.")),
	), s.handleSearch)

	s.mcp.AddTool(mcp.NewTool(ToolSolveQuestion,
		mcp.WithDescription("Answer a quantitative question by selecting a definition card and evaluating its formulas."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Natural-language question with numeric values.")),
		mcp.WithString("domain", mcp.Description("Optional domain filter.")),
		mcp.WithString("topic", mcp.Description("Optional topic filter.")),
	), s.handleSolve)

	return s
}

func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

type searchHit struct {
	CardID  string  `json:"card_id"`
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Context string  `json:"context"`
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	search := domain.SearchRequest{
		Query:  query,
		Filter: filterFrom(req),
		TopK:   req.GetInt("top_k", 0),
	}
	if _, ok := req.GetArguments()["alpha"]; ok {
		alpha := req.GetFloat("alpha", 0)
		search.Alpha = &alpha
	}

	candidates, err := s.searcher.Search(ctx, search)
	if err != nil {
		return toolError(ToolSearchCards, err), nil
	}
	hits := make([]searchHit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, searchHit{CardID: c.Card.ID, Name: c.Card.Name, Score: c.Score, Context: c.AsContext()})
	}
	return jsonResult(hits)
}

func (s *Server) handleSolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	outcome, err := s.solver.Solve(ctx, domain.SolveRequest{Question: question, Filter: filterFrom(req)})
	if err != nil {
		return toolError(ToolSolveQuestion, err), nil
	}
	return jsonResult(outcome)
}

func filterFrom(req mcp.CallToolRequest) domain.CardFilter {
	return domain.CardFilter{
		Domain: req.GetString("domain", ""),
		Topic:  req.GetString("topic", ""),
	}
}

func toolError(tool string, err error) *mcp.CallToolResult {
	switch {
	case domain.IsKind(err, domain.ErrInvalidArgument), domain.IsKind(err, domain.ErrNotFound):
		return mcp.NewToolResultError(err.Error())
	case domain.IsKind(err, domain.ErrTemporary):
		slog.Warn("mcp_tool_failed", "tool", tool, "error", err)
		return mcp.NewToolResultError("service temporarily unavailable, retry later")
	default:
		slog.Error("mcp_tool_failed", "tool", tool, "error", err)
		return mcp.NewToolResultError("internal error")
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
