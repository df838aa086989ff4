package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kirillkom/verifiquant/internal/core/domain"
)

type SelectionPayload struct {
	ChosenID string `json:"chosen_id"`
	Reason   string `json:"reason"`
}

type ProvidedInput struct {
	Variable string          `json:"variable"`
	Value    json.RawMessage `json:"value"`
}

type ExtractionPayload struct {
	Provided []ProvidedInput `json:"provided_inputs"`
	Missing  []string        `json:"missing_inputs"`
}

type FallbackStep struct {
	Variable string  `json:"variable"`
	Formula  string  `json:"formula"`
	Value    float64 `json:"value"`
}

type FallbackPayload struct {
	Steps       []FallbackStep `json:"steps"`
	OutputValue *float64       `json:"output_value"`
}

// DecodeSelection parses a selection response. The chosen id is required.
func DecodeSelection(raw string) (domain.Selection, error) {
	var payload SelectionPayload
	if err := json.Unmarshal([]byte(ExtractJSONObject(raw)), &payload); err != nil {
		return domain.Selection{}, fmt.Errorf("parse selection json: %w", err)
	}
	id := strings.TrimSpace(payload.ChosenID)
	if id == "" {
		return domain.Selection{}, fmt.Errorf("selection response has no chosen_id")
	}
	return domain.Selection{ChosenID: id, Reason: strings.TrimSpace(payload.Reason)}, nil
}

// DecodeExtraction parses an extraction response. Values that cannot be
// read as a finite number are reported as missing.
func DecodeExtraction(raw string) (domain.Extraction, error) {
	var payload ExtractionPayload
	if err := json.Unmarshal([]byte(ExtractJSONObject(raw)), &payload); err != nil {
		return domain.Extraction{}, fmt.Errorf("parse extraction json: %w", err)
	}

	out := domain.Extraction{
		Provided: make(map[string]float64, len(payload.Provided)),
		Missing:  make([]string, 0, len(payload.Missing)),
	}
	for _, name := range payload.Missing {
		if name = strings.TrimSpace(name); name != "" {
			out.Missing = append(out.Missing, name)
		}
	}
	for _, item := range payload.Provided {
		name := strings.TrimSpace(item.Variable)
		if name == "" {
			continue
		}
		v, ok := parseValue(item.Value)
		if !ok {
			out.Missing = append(out.Missing, name)
			continue
		}
		out.Provided[name] = v
	}
	return out, nil
}

func DecodeFallback(raw string) (domain.FallbackResult, error) {
	var payload FallbackPayload
	if err := json.Unmarshal([]byte(ExtractJSONObject(raw)), &payload); err != nil {
		return domain.FallbackResult{}, fmt.Errorf("parse fallback json: %w", err)
	}
	if payload.OutputValue == nil {
		return domain.FallbackResult{}, fmt.Errorf("fallback response has no output_value")
	}
	steps := make([]domain.CalculationStep, 0, len(payload.Steps))
	for _, s := range payload.Steps {
		steps = append(steps, domain.CalculationStep{Variable: s.Variable, Formula: s.Formula, Value: s.Value})
	}
	return domain.FallbackResult{Steps: steps, OutputValue: *payload.OutputValue}, nil
}

// ParseNumber accepts plain numerals with optional thousands separators and
// a leading currency sign. Percent values are rejected as ambiguous.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "%") {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.Replace(s, "$", "", 1)
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseValue treats an absent or null value as not provided.
func parseValue(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num, true
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return ParseNumber(str)
	}
	return 0, false
}

func ExtractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
