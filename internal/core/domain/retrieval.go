package domain

import "fmt"

// RetrievalQuery describes one ranked lookup against the index.
type RetrievalQuery struct {
	Text   string
	TopK   int
	Alpha  float64
	Filter CardFilter
}

// RetrievalCandidate is a card with a hybrid score that is only meaningful
// relative to other candidates of the same query.
type RetrievalCandidate struct {
	Card   *DefinitionCard `json:"card"`
	Source string          `json:"source,omitempty"`
	Score  float64         `json:"score"`
}

// AsContext renders the candidate for selection prompts.
func (c RetrievalCandidate) AsContext() string {
	return fmt.Sprintf("Score: %.3f\n%s", c.Score, c.Card.ContextSnippet())
}

// FindCandidate returns the candidate with the given card id.
func FindCandidate(candidates []RetrievalCandidate, id string) (*RetrievalCandidate, bool) {
	for i := range candidates {
		if candidates[i].Card != nil && candidates[i].Card.ID == id {
			return &candidates[i], true
		}
	}
	return nil, false
}

// SearchRequest is a retrieval-only lookup. Zero TopK and nil Alpha select
// the service defaults.
type SearchRequest struct {
	Query  string     `json:"query"`
	Filter CardFilter `json:"filter"`
	TopK   int        `json:"top_k,omitempty"`
	Alpha  *float64   `json:"alpha,omitempty"`
}
