package domain

import "time"

type SolveStatus string

const (
	SolveSuccess SolveStatus = "success"
	SolveRefused SolveStatus = "refused"
)

// Refusal reasons. They are user-facing and stable.
const (
	RefusalNoCandidates  = "No relevant cards found for the given question."
	RefusalMissingInputs = "Missing numeric values for required inputs."
)

type SolveRequest struct {
	Question string     `json:"question"`
	Filter   CardFilter `json:"filter"`
	TopK     int        `json:"top_k,omitempty"`
	Alpha    *float64   `json:"alpha,omitempty"`
}

type Selection struct {
	ChosenID string `json:"chosen_id"`
	Reason   string `json:"reason"`
}

// Extraction is the normalized result of the input extraction step.
type Extraction struct {
	Provided map[string]float64 `json:"provided_inputs"`
	Missing  []string           `json:"missing_inputs"`
}

// SolveOutcome is either a success or a refusal. Internal failures are
// reported as errors and never as an outcome.
type SolveOutcome struct {
	Status          SolveStatus        `json:"status"`
	Reason          string             `json:"reason,omitempty"`
	MissingInputs   []string           `json:"missing_inputs,omitempty"`
	CardID          string             `json:"card_id,omitempty"`
	SelectionReason string             `json:"selection_reason,omitempty"`
	Inputs          map[string]float64 `json:"inputs,omitempty"`
	Result          *CalculationResult `json:"result,omitempty"`
}

func Refuse(reason string, missing ...string) *SolveOutcome {
	return &SolveOutcome{Status: SolveRefused, Reason: reason, MissingInputs: missing}
}

func (o *SolveOutcome) Refused() bool { return o != nil && o.Status == SolveRefused }

// SolveEvent is published after every completed solve.
type SolveEvent struct {
	ID         string      `json:"id"`
	Question   string      `json:"question"`
	Status     SolveStatus `json:"status"`
	Reason     string      `json:"reason,omitempty"`
	CardID     string      `json:"card_id,omitempty"`
	Fallback   bool        `json:"fallback"`
	Candidates int         `json:"candidates"`
	Duration   float64     `json:"duration_ms"`
	At         time.Time   `json:"at"`
}
