package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/catalog"
	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/models"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ChatCompleter is the slice of the OpenAI client the structurer uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Structurer turns raw OCR text into a structured bill via a language model.
// The model is treated as an untrusted parser: the response must decode as
// JSON matching the bill shape or structuring fails with ErrStructuring.
type Structurer struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
	prompts *PromptConfig
	logger  *zap.Logger
}

// NewStructurer creates a structurer backed by the OpenAI API. A positive
// timeout bounds each completion call independently of the caller's
// deadline; zero disables the per-call bound.
func NewStructurer(apiKey, model string, timeout time.Duration, prompts *PromptConfig, logger *zap.Logger) *Structurer {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Structurer{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
		prompts: prompts,
		logger:  logger,
	}
}

// NewStructurerWithClient creates a structurer with an injected completion
// client (for testing).
func NewStructurerWithClient(client ChatCompleter, model string, timeout time.Duration, prompts *PromptConfig, logger *zap.Logger) *Structurer {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Structurer{
		client:  client,
		model:   model,
		timeout: timeout,
		prompts: prompts,
		logger:  logger,
	}
}

// structuredBill mirrors the JSON shape the prompt instructs the model to
// emit.
type structuredBill struct {
	Dealer models.DealerInfo       `json:"dealer"`
	Items  []models.ParsedLineItem `json:"items"`
}

// StructureBillText sends OCR text to the model and parses the reply.
// Items missing name, brand or MRP are dropped before deduplication;
// duplicates by normalized (name, brand, mrp) keep the first occurrence,
// guarding against the model hallucinating repeated lines.
func (s *Structurer) StructureBillText(ctx context.Context, ocrText string) (*models.ExtractedBill, error) {
	cfg := s.prompts.BillStructuring

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	userPrompt, err := renderTemplate(cfg.UserTemplate, struct{ OCRText string }{OCRText: ocrText})
	if err != nil {
		return nil, fmt.Errorf("failed to render structuring prompt: %w", err)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: cfg.System},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("LLM structuring call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response from model", ErrStructuring)
	}

	content := resp.Choices[0].Message.Content

	var parsed structuredBill
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		// Models occasionally wrap JSON in prose or markdown fences.
		if jsonStr := extractJSON(content); jsonStr != "" {
			if err2 := json.Unmarshal([]byte(jsonStr), &parsed); err2 == nil {
				s.logger.Info("Extracted JSON from wrapped model response")
				return s.finalize(&parsed), nil
			}
		}
		s.logger.Error("Failed to parse model response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("%w: %v", ErrStructuring, err)
	}

	return s.finalize(&parsed), nil
}

// finalize applies the fail-safe skip and dedup passes.
func (s *Structurer) finalize(parsed *structuredBill) *models.ExtractedBill {
	seen := make(map[string]bool, len(parsed.Items))
	items := make([]models.ParsedLineItem, 0, len(parsed.Items))

	for _, item := range parsed.Items {
		if item.ItemName == "" || item.Brand == "" || item.Price.MRP == 0 {
			continue
		}

		key := catalog.Normalize(item.ItemName) + "|" +
			catalog.Normalize(item.Brand) + "|" +
			strconv.FormatFloat(item.Price.MRP, 'f', -1, 64)
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, item)
	}

	if dropped := len(parsed.Items) - len(items); dropped > 0 {
		s.logger.Debug("Dropped invalid or duplicate line items", zap.Int("dropped", dropped))
	}

	return &models.ExtractedBill{
		Dealer:   parsed.Dealer,
		Items:    items,
		RowCount: len(parsed.Items),
	}
}

// extractJSON pulls the first balanced JSON object out of a string.
func extractJSON(content string) string {
	start := -1
	for i := 0; i < len(content); i++ {
		if content[i] == '{' {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
