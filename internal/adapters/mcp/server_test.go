package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/verifiquant/internal/core/domain"
)

type solverFake struct {
	outcome *domain.SolveOutcome
	err     error
	got     domain.SolveRequest
}

func (f *solverFake) Solve(_ context.Context, req domain.SolveRequest) (*domain.SolveOutcome, error) {
	f.got = req
	return f.outcome, f.err
}

type searcherFake struct {
	candidates []domain.RetrievalCandidate
	err        error
	got        domain.SearchRequest
}

func (f *searcherFake) Search(_ context.Context, req domain.SearchRequest) ([]domain.RetrievalCandidate, error) {
	f.got = req
	return f.candidates, f.err
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestSearchToolPassesFiltersAndAlpha(t *testing.T) {
	card := &domain.DefinitionCard{ID: "current_ratio", Name: "Current Ratio"}
	searcher := &searcherFake{candidates: []domain.RetrievalCandidate{{Card: card, Score: 1}}}
	s := NewServer("verifiquant", "test", &solverFake{}, searcher)

	res, err := s.handleSearch(context.Background(), callRequest(ToolSearchCards, map[string]any{
		"query":  "liquidity ratio",
		"domain": "accounting",
		"top_k":  float64(2),
		"alpha":  float64(0),
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var hits []searchHit
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "current_ratio", hits[0].CardID)

	assert.Equal(t, "accounting", searcher.got.Filter.Domain)
	assert.Equal(t, 2, searcher.got.TopK)
	require.NotNil(t, searcher.got.Alpha)
	assert.Equal(t, 0.0, *searcher.got.Alpha)
}

func TestSearchToolRequiresQuery(t *testing.T) {
	s := NewServer("verifiquant", "test", &solverFake{}, &searcherFake{})
	res, err := s.handleSearch(context.Background(), callRequest(ToolSearchCards, map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSolveToolReturnsRefusalAsText(t *testing.T) {
	solver := &solverFake{outcome: domain.Refuse(domain.RefusalNoCandidates)}
	s := NewServer("verifiquant", "test", solver, &searcherFake{})

	res, err := s.handleSolve(context.Background(), callRequest(ToolSolveQuestion, map[string]any{
		"question": "what is the weather?",
		"topic":    "valuation",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), domain.RefusalNoCandidates)
	assert.Equal(t, "valuation", solver.got.Filter.Topic)
}

func TestSolveToolHidesInternalErrors(t *testing.T) {
	solver := &solverFake{err: errors.New("pgx: connection refused at 10.1.2.3")}
	s := NewServer("verifiquant", "test", solver, &searcherFake{})

	res, err := s.handleSolve(context.Background(), callRequest(ToolSolveQuestion, map[string]any{"question": "npv?"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.NotContains(t, resultText(t, res), "10.1.2.3")
}
