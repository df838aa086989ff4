package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/verifiquant/internal/config"
	"github.com/kirillkom/verifiquant/internal/core/domain"
	"github.com/kirillkom/verifiquant/internal/core/ports"
	"github.com/kirillkom/verifiquant/internal/observability/metrics"
)

const maxRequestBodyBytes = 1 << 20

type Router struct {
	cfg       config.Config
	solver    ports.QuestionSolver
	searcher  ports.CardSearcher
	catalog   ports.CatalogReader
	metrics   *metrics.HTTPServerMetrics
	validator *requestValidator
}

func NewRouter(
	cfg config.Config,
	solver ports.QuestionSolver,
	searcher ports.CardSearcher,
	catalog ports.CatalogReader,
) (*Router, error) {
	rt := &Router{
		cfg:      cfg,
		solver:   solver,
		searcher: searcher,
		catalog:  catalog,
	}
	if cfg.APIRequestValidation {
		validator, err := newRequestValidator()
		if err != nil {
			return nil, err
		}
		rt.validator = validator
	}
	return rt, nil
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/solve", rt.solve)
	api.HandleFunc("POST /v1/cards/search", rt.searchCards)
	api.HandleFunc("GET /v1/cards/{id}", rt.getCard)
	api.HandleFunc("GET /v1/catalog/facets", rt.facets)

	var v1 http.Handler = api
	if rt.validator != nil {
		v1 = rt.validator.Middleware(v1)
	}
	v1 = backpressureMiddleware(v1, rt.cfg.APIBackpressureMaxInFlight, rt.cfg.APIBackpressureWaitTimeout, rt.recordRejection)
	v1 = rateLimitMiddleware(v1, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.recordRejection)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", rt.healthz)
	root.Handle("/v1/", v1)

	var handler http.Handler = root
	if rt.metrics != nil {
		root.Handle("GET /metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) recordRejection(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejection(reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type solveRequest struct {
	Question string   `json:"question"`
	Domain   string   `json:"domain"`
	Topic    string   `json:"topic"`
	TopK     int      `json:"top_k"`
	Alpha    *float64 `json:"alpha"`
}

type solveResponse struct {
	Status          domain.SolveStatus       `json:"status"`
	Reason          string                   `json:"reason,omitempty"`
	MissingInputs   []string                 `json:"missing_inputs,omitempty"`
	CardID          string                   `json:"card_id,omitempty"`
	SelectionReason string                   `json:"selection_reason,omitempty"`
	Inputs          map[string]float64       `json:"inputs,omitempty"`
	Steps           []domain.CalculationStep `json:"steps,omitempty"`
	OutputVar       string                   `json:"output_var,omitempty"`
	OutputValue     *float64                 `json:"output_value,omitempty"`
	Fallback        *bool                    `json:"fallback,omitempty"`
}

func newSolveResponse(outcome *domain.SolveOutcome) solveResponse {
	resp := solveResponse{
		Status:          outcome.Status,
		Reason:          outcome.Reason,
		MissingInputs:   outcome.MissingInputs,
		CardID:          outcome.CardID,
		SelectionReason: outcome.SelectionReason,
		Inputs:          outcome.Inputs,
	}
	if res := outcome.Result; res != nil {
		value := res.OutputValue
		fallback := res.Fallback
		resp.Steps = res.Steps
		resp.OutputVar = res.OutputVar
		resp.OutputValue = &value
		resp.Fallback = &fallback
	}
	return resp
}

func (rt *Router) solve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	outcome, err := rt.solver.Solve(r.Context(), domain.SolveRequest{
		Question: req.Question,
		Filter:   domain.CardFilter{Domain: req.Domain, Topic: req.Topic},
		TopK:     req.TopK,
		Alpha:    req.Alpha,
	})
	if err != nil {
		writeDomainError(w, r, "solve", err)
		return
	}
	writeJSON(w, http.StatusOK, newSolveResponse(outcome))
}

type searchRequest struct {
	Query  string   `json:"query"`
	Domain string   `json:"domain"`
	Topic  string   `json:"topic"`
	TopK   int      `json:"top_k"`
	Alpha  *float64 `json:"alpha"`
}

type searchCandidate struct {
	CardID  string  `json:"card_id"`
	Name    string  `json:"name"`
	Domain  string  `json:"domain"`
	Topic   string  `json:"topic"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score"`
	Context string  `json:"context"`
}

func (rt *Router) searchCards(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	candidates, err := rt.searcher.Search(r.Context(), domain.SearchRequest{
		Query:  req.Query,
		Filter: domain.CardFilter{Domain: req.Domain, Topic: req.Topic},
		TopK:   req.TopK,
		Alpha:  req.Alpha,
	})
	if err != nil {
		writeDomainError(w, r, "search", err)
		return
	}

	out := make([]searchCandidate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, searchCandidate{
			CardID:  c.Card.ID,
			Name:    c.Card.Name,
			Domain:  c.Card.Domain,
			Topic:   c.Card.Topic,
			Source:  c.Source,
			Score:   c.Score,
			Context: c.AsContext(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": out})
}

func (rt *Router) getCard(w http.ResponseWriter, r *http.Request) {
	card, err := rt.catalog.CardByID(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, "get card", err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (rt *Router) facets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"domains": rt.catalog.Facets()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeDomainError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"operation", operation,
			"status", status,
			"error", err,
		)
	}
	writeError(w, status, publicErrorMessage(status, err))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("http_response_encode_failed", "error", err)
	}
}
