// Package openai implements the repairer recommendation provider on the OpenAI chat API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/claims-fulfillment/internal/application/port"
	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
)

// Config configures the recommender
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Recommender implements port.RecommendationProvider using OpenAI
type Recommender struct {
	client  *openai.Client
	model   string
	prompts *PromptConfig
	logger  *zap.Logger
}

// NewRecommender creates a new OpenAI recommender; nil prompts use the defaults
func NewRecommender(cfg Config, prompts *PromptConfig, logger *zap.Logger) *Recommender {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Recommender{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		prompts: prompts,
		logger:  logger,
	}
}

// Recommend asks the model to rank the candidate repairers
func (r *Recommender) Recommend(ctx context.Context, req port.RecommendationRequest) (*entity.RecommendationResult, error) {
	tmpl := r.prompts.RepairerRecommendation

	prompt, err := renderTemplate(tmpl.UserTemplate, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrProviderFailure, err)
	}

	r.logger.Debug("Requesting repairer recommendations",
		zap.String("claim_id", req.ClaimID),
		zap.String("device_category", req.DeviceCategory),
		zap.Int("candidates", len(req.Candidates)))

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: tmpl.Temperature,
		MaxTokens:   tmpl.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: tmpl.System,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		r.logger.Error("OpenAI API call failed", zap.String("claim_id", req.ClaimID), zap.Error(err))
		return nil, classify(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response from OpenAI", port.ErrProviderFailure)
	}

	content := resp.Choices[0].Message.Content

	var result entity.RecommendationResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		// Fallback: try to extract JSON from markdown code blocks
		jsonStr := extractJSON(content)
		if jsonStr == "" || json.Unmarshal([]byte(jsonStr), &result) != nil {
			r.logger.Error("Failed to parse OpenAI response",
				zap.Error(err),
				zap.String("content", content))
			return nil, fmt.Errorf("%w: failed to parse response: %v", port.ErrProviderFailure, err)
		}
	}

	result.Recommendations = keepCandidates(result.Recommendations, req.Candidates)
	if result.Recommendations == nil {
		result.Recommendations = []entity.RepairerRecommendation{}
	}
	if result.EligibleRepairers == nil {
		result.EligibleRepairers = []entity.EligibleRepairer{}
	}

	r.logger.Info("Repairer recommendations received",
		zap.String("claim_id", req.ClaimID),
		zap.Int("count", len(result.Recommendations)))

	return &result, nil
}

// classify maps OpenAI HTTP failures onto the provider error kinds
func classify(err error) error {
	status := 0

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", port.ErrRateLimited, err)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w: %v", port.ErrCreditsRequired, err)
	default:
		return fmt.Errorf("%w: %v", port.ErrProviderFailure, err)
	}
}

// keepCandidates drops recommendations for repairers that were not offered.
// With no candidate list everything is kept.
func keepCandidates(recs []entity.RepairerRecommendation, candidates []*entity.Repairer) []entity.RepairerRecommendation {
	if len(candidates) == 0 {
		return recs
	}

	allowed := make(map[string]*entity.Repairer, len(candidates))
	for _, c := range candidates {
		allowed[c.ID] = c
	}

	kept := make([]entity.RepairerRecommendation, 0, len(recs))
	for _, rec := range recs {
		c, ok := allowed[rec.RepairerID]
		if !ok {
			continue
		}
		if rec.RepairerName == "" {
			rec.RepairerName = c.DisplayName()
		}
		kept = append(kept, rec)
	}
	return kept
}

// extractJSON pulls the first ```json fenced block or bare object out of content
func extractJSON(content string) string {
	if start := strings.Index(content, "```json"); start >= 0 {
		rest := content[start+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return ""
}

// Verify interface compliance
var _ port.RecommendationProvider = (*Recommender)(nil)
