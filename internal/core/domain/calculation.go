package domain

type CalculationStep struct {
	Variable string  `json:"variable"`
	Formula  string  `json:"formula"`
	Value    float64 `json:"value"`
}

type CalculationResult struct {
	Steps       []CalculationStep `json:"steps"`
	OutputVar   string            `json:"output_var"`
	OutputValue float64           `json:"output_value"`
	Fallback    bool              `json:"fallback"`
}

// FallbackRequest carries everything an external evaluator needs to redo
// the whole card.
type FallbackRequest struct {
	CardID      string             `json:"card_id"`
	Description string             `json:"description"`
	Formulas    []FormulaStep      `json:"formulas"`
	OutputVar   string             `json:"output_var"`
	Inputs      map[string]float64 `json:"inputs"`
	Question    string             `json:"question"`
}

type FallbackResult struct {
	Steps       []CalculationStep `json:"steps"`
	OutputValue float64           `json:"output_value"`
}
