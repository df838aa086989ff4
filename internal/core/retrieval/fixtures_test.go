package retrieval

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/kirillkom/verifiquant/internal/core/domain"
)

var fakeVocabulary = []string{"npv", "present", "value", "interest", "compound", "ratio", "liquidity", "bond"}

// keywordEmbedder embeds text as counts over a small fixed vocabulary.
type keywordEmbedder struct {
	model      string
	err        error
	queryCalls atomic.Int32
	embedCalls atomic.Int32
}

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{model: "keyword-test"}
}

func (e *keywordEmbedder) Model() string { return e.model }

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.embedCalls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = keywordVector(text)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.queryCalls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return keywordVector(text), nil
}

func keywordVector(text string) []float32 {
	vec := make([]float32, len(fakeVocabulary)+1)
	vec[len(fakeVocabulary)] = 0.1
	for _, tok := range Tokenize(text) {
		for i, word := range fakeVocabulary {
			if tok == word {
				vec[i]++
			}
		}
	}
	return vec
}

var errEmbedFailed = errors.New("embedding backend down")

func testCatalog() *domain.Catalog {
	records := []domain.CardRecord{
		{Source: "data/investment/npv.json", Card: domain.DefinitionCard{
			ID:               "npv_basic",
			Name:             "Net Present Value",
			ShortDescription: "Net present value of a single future cash flow",
			Domain:           "Investment Analysis",
			Topic:            "Net Present Value",
			Inputs: []domain.InputSpec{
				{Name: "x", Type: "float", Description: "initial investment"},
				{Name: "C1", Type: "float", Description: "cash flow at t=1"},
				{Name: "r", Type: "float", Description: "discount rate"},
			},
			OutputVar: "NPV",
			Formulas: []domain.FormulaStep{
				{Variable: "PV", Formula: "C1/(1+r)"},
				{Variable: "NPV", Formula: "PV - x"},
			},
			Tags: []string{"npv", "discounting"},
		}},
		{Source: "data/banking/interest.json", Card: domain.DefinitionCard{
			ID:               "compound_interest",
			Name:             "Compound Interest",
			ShortDescription: "Future value under compound interest",
			Domain:           "Banking",
			Topic:            "Interest",
			Inputs: []domain.InputSpec{
				{Name: "P", Type: "float", Description: "principal"},
				{Name: "r", Type: "float", Description: "annual interest rate"},
				{Name: "n", Type: "integer", Description: "years"},
			},
			OutputVar: "FV",
			Formulas:  []domain.FormulaStep{{Variable: "FV", Formula: "P*(1+r)**n"}},
			Tags:      []string{"interest", "compound"},
		}},
		{Source: "data/corporate/ratios.json", Card: domain.DefinitionCard{
			ID:               "current_ratio",
			Name:             "Current Ratio",
			ShortDescription: "Liquidity ratio of current assets to current liabilities",
			Domain:           "Corporate Finance",
			Topic:            "Liquidity",
			Inputs: []domain.InputSpec{
				{Name: "CA", Type: "float", Description: "current assets"},
				{Name: "CL", Type: "float", Description: "current liabilities"},
			},
			OutputVar: "ratio",
			Formulas:  []domain.FormulaStep{{Variable: "ratio", Formula: "CA/CL"}},
			Tags:      []string{"ratio", "liquidity"},
		}},
		{Source: "data/fixed_income/bond.json", Card: domain.DefinitionCard{
			ID:               "bond_price_zero",
			Name:             "Zero Coupon Bond Price",
			ShortDescription: "Present value of a zero coupon bond",
			Domain:           "Fixed Income",
			Topic:            "Bond Pricing",
			Inputs: []domain.InputSpec{
				{Name: "F", Type: "float", Description: "face value"},
				{Name: "y", Type: "float", Description: "yield"},
				{Name: "T", Type: "float", Description: "maturity in years"},
			},
			OutputVar: "price",
			Formulas:  []domain.FormulaStep{{Variable: "price", Formula: "F/(1+y)**T"}},
			Tags:      []string{"bond", "present value"},
		}},
	}
	catalog, err := domain.NewCatalog(records)
	if err != nil {
		panic(err)
	}
	return catalog
}
