package domain

import (
	"fmt"
	"sort"
	"strings"
)

type InputSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type FormulaStep struct {
	Variable string `json:"variable"`
	Formula  string `json:"formula"`
}

// DefinitionCard is a named formula template. Formulas are evaluated in
// order and may only reference inputs or variables emitted before them.
type DefinitionCard struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	ShortDescription string        `json:"short_description"`
	Domain           string        `json:"domain"`
	Topic            string        `json:"topic"`
	Inputs           []InputSpec   `json:"inputs"`
	OutputVar        string        `json:"output_var"`
	Formulas         []FormulaStep `json:"sympy_formulas"`
	Tags             []string      `json:"tags"`
}

// Validate checks the structural invariants required before a card is
// admitted into a catalog.
func (c *DefinitionCard) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return NewSchemaError("", "missing id")
	}
	if len(c.Formulas) == 0 {
		return NewSchemaError(c.ID, "no formulas")
	}

	known := make(map[string]struct{}, len(c.Inputs)+len(c.Formulas))
	for _, in := range c.Inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return NewSchemaError(c.ID, "input with empty name")
		}
		if _, dup := known[name]; dup {
			return NewSchemaError(c.ID, "duplicate input %q", name)
		}
		known[name] = struct{}{}
	}
	for i, f := range c.Formulas {
		if strings.TrimSpace(f.Variable) == "" {
			return NewSchemaError(c.ID, "formula %d has no variable", i)
		}
		if strings.TrimSpace(f.Formula) == "" {
			return NewSchemaError(c.ID, "formula %d (%s) has no expression", i, f.Variable)
		}
		known[f.Variable] = struct{}{}
	}

	if strings.TrimSpace(c.OutputVar) == "" {
		return NewSchemaError(c.ID, "missing output_var")
	}
	if _, ok := known[c.OutputVar]; !ok {
		return NewSchemaError(c.ID, "output_var %q is neither an input nor a formula variable", c.OutputVar)
	}
	return nil
}

// InputNames returns the required input names in declaration order.
func (c *DefinitionCard) InputNames() []string {
	out := make([]string, 0, len(c.Inputs))
	for _, in := range c.Inputs {
		out = append(out, in.Name)
	}
	return out
}

// SearchDocument is the text indexed for keyword and embedding retrieval.
func (c *DefinitionCard) SearchDocument() string {
	parts := make([]string, 0, 5+len(c.Inputs)+len(c.Formulas)+len(c.Tags))
	parts = append(parts, c.ID, c.Name, c.ShortDescription, c.Domain, c.Topic)
	for _, in := range c.Inputs {
		parts = append(parts, in.Name+": "+in.Description)
	}
	for _, f := range c.Formulas {
		parts = append(parts, f.Variable+": "+f.Formula)
	}
	parts = append(parts, c.Tags...)
	return strings.Join(parts, " ")
}

// ContextSnippet renders the card for LLM-facing prompts.
func (c *DefinitionCard) ContextSnippet() string {
	inputs := make([]string, 0, len(c.Inputs))
	for _, in := range c.Inputs {
		inputs = append(inputs, in.Name+": "+in.Description)
	}
	formulas := make([]string, 0, len(c.Formulas))
	for _, f := range c.Formulas {
		formulas = append(formulas, f.Variable+" = "+f.Formula)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s — %s\n", c.ID, c.Name, c.ShortDescription)
	fmt.Fprintf(&b, "Domain: %s | Topic: %s\n", c.Domain, c.Topic)
	fmt.Fprintf(&b, "Inputs: %s\n", strings.Join(inputs, ", "))
	fmt.Fprintf(&b, "Output: %s\n", c.OutputVar)
	fmt.Fprintf(&b, "Formulas: %s\n", strings.Join(formulas, "; "))
	fmt.Fprintf(&b, "Tags: %s", strings.Join(c.Tags, ", "))
	return b.String()
}

// MatchesFilter reports whether the card passes a case-insensitive
// domain/topic filter. Empty filter fields match everything.
func (c *DefinitionCard) MatchesFilter(f CardFilter) bool {
	if f.Domain != "" && !strings.EqualFold(strings.TrimSpace(c.Domain), strings.TrimSpace(f.Domain)) {
		return false
	}
	if f.Topic != "" && !strings.EqualFold(strings.TrimSpace(c.Topic), strings.TrimSpace(f.Topic)) {
		return false
	}
	return true
}

type CardFilter struct {
	Domain string `json:"domain,omitempty"`
	Topic  string `json:"topic,omitempty"`
}

func (f CardFilter) IsEmpty() bool {
	return strings.TrimSpace(f.Domain) == "" && strings.TrimSpace(f.Topic) == ""
}

// CardRecord pairs a card with the file it was loaded from.
type CardRecord struct {
	Card   DefinitionCard `json:"card"`
	Source string         `json:"source"`
}

// Catalog is an ordered, id-unique, read-only set of cards.
type Catalog struct {
	records []CardRecord
	byID    map[string]int
}

// NewCatalog deduplicates by id. A repeated id replaces the earlier record
// in place, so order follows first appearance while content is last-wins.
func NewCatalog(records []CardRecord) (*Catalog, error) {
	out := make([]CardRecord, 0, len(records))
	byID := make(map[string]int, len(records))
	for _, rec := range records {
		if idx, ok := byID[rec.Card.ID]; ok {
			out[idx] = rec
			continue
		}
		byID[rec.Card.ID] = len(out)
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, WrapError(ErrConfiguration, "new catalog", fmt.Errorf("catalog is empty"))
	}
	return &Catalog{records: out, byID: byID}, nil
}

func (c *Catalog) Len() int { return len(c.records) }

// Records returns a copy of the catalog records in order.
func (c *Catalog) Records() []CardRecord {
	out := make([]CardRecord, len(c.records))
	copy(out, c.records)
	return out
}

func (c *Catalog) At(i int) *CardRecord { return &c.records[i] }

func (c *Catalog) ByID(id string) (*DefinitionCard, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return &c.records[idx].Card, true
}

// Facets returns each domain with its sorted distinct topics.
func (c *Catalog) Facets() []DomainFacet {
	topics := make(map[string]map[string]struct{})
	for _, rec := range c.records {
		d := strings.TrimSpace(rec.Card.Domain)
		if d == "" {
			continue
		}
		if topics[d] == nil {
			topics[d] = make(map[string]struct{})
		}
		if t := strings.TrimSpace(rec.Card.Topic); t != "" {
			topics[d][t] = struct{}{}
		}
	}

	out := make([]DomainFacet, 0, len(topics))
	for d, set := range topics {
		facet := DomainFacet{Domain: d, Topics: make([]string, 0, len(set))}
		for t := range set {
			facet.Topics = append(facet.Topics, t)
		}
		sort.Strings(facet.Topics)
		out = append(out, facet)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

type DomainFacet struct {
	Domain string   `json:"domain"`
	Topics []string `json:"topics"`
}
