package gemini

import "google.golang.org/genai"

var selectionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"chosen_id": {Type: genai.TypeString},
		"reason":    {Type: genai.TypeString},
	},
	Required: []string{"chosen_id", "reason"},
}

// Provided inputs are a list of variable/value pairs because response
// schemas cannot describe maps with dynamic keys.
var extractionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"provided_inputs": {
			Type:        genai.TypeArray,
			Description: "Input variables found in the question and their values.",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"variable": {Type: genai.TypeString, Description: "The name of the variable (e.g. 'x', 'r')."},
					"value":    {Type: genai.TypeString, Description: "The numeric value as a raw string (e.g. '1000', '0.05')."},
				},
				Required: []string{"variable", "value"},
			},
		},
		"missing_inputs": {
			Type:        genai.TypeArray,
			Description: "Required input names that could not be found in the question.",
			Items:       &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"provided_inputs", "missing_inputs"},
}

var fallbackSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"steps": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"variable": {Type: genai.TypeString},
					"formula":  {Type: genai.TypeString},
					"value":    {Type: genai.TypeNumber},
				},
				Required: []string{"variable", "formula", "value"},
			},
		},
		"output_value": {Type: genai.TypeNumber},
	},
	Required: []string{"steps", "output_value"},
}
