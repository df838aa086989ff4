package contract

import (
	"fmt"
	"strings"

	"github.com/kirillkom/verifiquant/internal/core/domain"
)

func SelectionPrompt(question string, candidates []domain.RetrievalCandidate) string {
	blocks := make([]string, 0, len(candidates))
	for i, candidate := range candidates {
		blocks = append(blocks, fmt.Sprintf("Candidate %d:\n%s", i+1, candidate.AsContext()))
	}

	return fmt.Sprintf(`You are a financial modeling expert helping to pick the best calculation template.

User Question:
%s

Candidate Cards:
%s

Choose exactly one card that best fits the question.
Return a JSON object with keys chosen_id (string, one of the candidate ids) and reason (string).
Return JSON only.
`, question, strings.Join(blocks, "\n\n"))
}

func ExtractionPrompt(question string, card *domain.DefinitionCard) string {
	var inputs strings.Builder
	for _, in := range card.Inputs {
		fmt.Fprintf(&inputs, "- %s (%s): %s\n", in.Name, in.Type, in.Description)
	}

	return fmt.Sprintf(`You are helping parse user questions for financial calculations.

Card ID: %s
Required inputs:
%s
User question:
%s

Extract the numeric value provided in the question for each required input listed above.
Return a JSON object with keys:
provided_inputs (array of objects with keys variable and value),
missing_inputs (array of input names that are not given in the question).
Values must be raw numbers without formatting (e.g. "1000.5", "0.05"). Express percentages as decimals.
Return JSON only.
`, card.ID, inputs.String(), question)
}

func FallbackPrompt(req domain.FallbackRequest) string {
	var formulas strings.Builder
	for _, f := range req.Formulas {
		fmt.Fprintf(&formulas, "- %s = %s\n", f.Variable, f.Formula)
	}
	var inputs strings.Builder
	for _, name := range sortedKeys(req.Inputs) {
		fmt.Fprintf(&inputs, "- %s = %v\n", name, req.Inputs[name])
	}

	return fmt.Sprintf(`You are a careful quantitative analyst. Evaluate the formula chain below step by step.

Card ID: %s
Description: %s
Question: %s

Inputs:
%s
Formulas, in order:
%s
Output variable: %s

Return a JSON object with keys:
steps (array of objects with keys variable, formula, value as a number),
output_value (number, the final value of the output variable).
Return JSON only.
`, req.CardID, req.Description, req.Question, inputs.String(), formulas.String(), req.OutputVar)
}
