package openai

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptSpec is one prompt and its model parameters
type PromptSpec struct {
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	System       string  `yaml:"system"`
	UserTemplate string  `yaml:"user_template"`
}

// PromptConfig holds the prompts used by the recommender
type PromptConfig struct {
	RepairerRecommendation PromptSpec `yaml:"repairer_recommendation"`
}

// DefaultPrompts is used when no prompts file is configured
func DefaultPrompts() *PromptConfig {
	return &PromptConfig{
		RepairerRecommendation: PromptSpec{
			Temperature: 0.2,
			MaxTokens:   1200,
			System: "You rank insurance repairers for a device claim. " +
				"Respond with a single JSON object and nothing else.",
			UserTemplate: defaultRecommendationTemplate,
		},
	}
}

const defaultRecommendationTemplate = `Claim: {{.ClaimID}}
Device category: {{if .DeviceCategory}}{{.DeviceCategory}}{{else}}unknown{{end}}
Coverage area: {{if .CoverageArea}}{{.CoverageArea}}{{else}}unspecified{{end}}

Candidate repairers:
{{range .Candidates}}- id={{.ID}} name={{.DisplayName}} area={{.CoverageArea}}
{{else}}- none listed, suggest none
{{end}}
Return JSON with keys "recommendations" (array of {repairer_id, repairer_name, rank, score, reasoning, key_advantages}),
"overall_analysis" (string) and "eligibleRepairers" (array of {id, name, connectivity_type, slas}).
Only use repairer ids from the candidate list. Scores are between 0 and 1.`

// LoadPrompts loads prompt configuration from a YAML file.
// Sections missing from the file keep their defaults.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	prompts := DefaultPrompts()
	if err := yaml.Unmarshal(data, prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	return prompts, nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
