package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/phrazzld/scry-jobs/internal/config"
	"github.com/phrazzld/scry-jobs/internal/generation"
	"github.com/phrazzld/scry-jobs/internal/platform/metrics"
	"google.golang.org/genai"
)

// Retry defaults used when configuration is out of range
const (
	defaultMaxRetries       = 3
	defaultRetryDelaySecond = 2
)

// contentModel is the part of genai.Models the generator uses.
type contentModel interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Generator implements generation.ContentGenerator, HierarchyGenerator and
// DistractorGenerator on the Gemini API.
type Generator struct {
	logger *slog.Logger
	config config.LLMConfig
	models contentModel
	model  string
	sleep  func(ctx context.Context, d time.Duration) error
	rng    *rand.Rand
}

var (
	_ generation.ContentGenerator    = (*Generator)(nil)
	_ generation.HierarchyGenerator  = (*Generator)(nil)
	_ generation.DistractorGenerator = (*Generator)(nil)
)

// NewGenerator creates a Generator with a Gemini API client.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newGenerator(logger, cfg, client.Models), nil
}

func newGenerator(logger *slog.Logger, cfg config.LLMConfig, models contentModel) *Generator {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelaySeconds < 1 {
		cfg.RetryDelaySeconds = defaultRetryDelaySecond
	}
	return &Generator{
		logger: logger.With(slog.String("component", "gemini"), slog.String("model", cfg.ModelName)),
		config: cfg,
		models: models,
		model:  cfg.ModelName,
		sleep:  sleepContext,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func validateConfig(cfg config.LLMConfig) error {
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	return nil
}

// GenerateQuestions implements generation.ContentGenerator.
func (g *Generator) GenerateQuestions(ctx context.Context, content string, max int) ([]generation.QA, error) {
	if strings.TrimSpace(content) == "" {
		return nil, generation.ErrEmptyInput
	}
	if max < 1 {
		return nil, fmt.Errorf("%w: max must be positive", generation.ErrGenerationFailed)
	}

	prompt, err := renderPrompt(questionsTemplate, questionsPrompt{Content: content, Max: max})
	if err != nil {
		return nil, err
	}

	var resp questionsResponse
	if err := g.generateJSON(ctx, "questions", prompt, &resp); err != nil {
		return nil, err
	}

	out := make([]generation.QA, 0, len(resp.Questions))
	for _, qa := range resp.Questions {
		if qa.Valid() {
			out = append(out, qa)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no questions in response", generation.ErrInvalidResponse)
	}
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

// GenerateHierarchy implements generation.HierarchyGenerator.
func (g *Generator) GenerateHierarchy(ctx context.Context, topic string) (*generation.HierarchyDraft, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, generation.ErrEmptyInput
	}

	prompt, err := renderPrompt(hierarchyTemplate, hierarchyPrompt{Topic: topic})
	if err != nil {
		return nil, err
	}

	var draft generation.HierarchyDraft
	if err := g.generateJSON(ctx, "hierarchy", prompt, &draft); err != nil {
		return nil, err
	}
	draft.Nodes = pruneNodes(draft.Nodes)
	if len(draft.Nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes in hierarchy", generation.ErrInvalidResponse)
	}
	if strings.TrimSpace(draft.Title) == "" {
		draft.Title = topic
	}
	return &draft, nil
}

// pruneNodes drops untitled nodes along with their subtrees.
func pruneNodes(nodes []generation.DraftNode) []generation.DraftNode {
	out := nodes[:0]
	for _, n := range nodes {
		if strings.TrimSpace(n.Title) == "" {
			continue
		}
		n.Children = pruneNodes(n.Children)
		out = append(out, n)
	}
	return out
}

// GenerateDistractors implements generation.DistractorGenerator.
func (g *Generator) GenerateDistractors(ctx context.Context, question, answer string, count int) ([]string, error) {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return nil, generation.ErrEmptyInput
	}
	if count < 1 {
		return nil, fmt.Errorf("%w: count must be positive", generation.ErrGenerationFailed)
	}

	prompt, err := renderPrompt(distractorsTemplate, distractorsPrompt{Question: question, Answer: answer, Count: count})
	if err != nil {
		return nil, err
	}

	var resp distractorsResponse
	if err := g.generateJSON(ctx, "distractors", prompt, &resp); err != nil {
		return nil, err
	}

	seen := map[string]bool{strings.ToLower(strings.TrimSpace(answer)): true}
	out := make([]string, 0, count)
	for _, d := range resp.Distractors {
		key := strings.ToLower(strings.TrimSpace(d))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(d))
		if len(out) == count {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no usable distractors in response", generation.ErrInvalidResponse)
	}
	return out, nil
}

// generateJSON calls the model with retries and decodes its JSON reply into v.
func (g *Generator) generateJSON(ctx context.Context, operation, prompt string, v any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveGeneration(operation, err == nil, time.Since(start)) }()

	text, err := g.callWithRetry(ctx, prompt)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), v); err != nil {
		return fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}
	return nil
}

// callWithRetry makes a call to the Gemini API with exponential backoff retry logic.
// API errors are retried up to config.MaxRetries times; blocked and malformed
// responses are returned immediately.
func (g *Generator) callWithRetry(ctx context.Context, prompt string) (string, error) {
	maxRetries := g.config.MaxRetries
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: prompt}},
	}}
	genConfig := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1
		g.logger.DebugContext(ctx, "making Gemini API call",
			slog.Int("attempt", attemptNum),
			slog.Int("max_attempts", maxRetries+1))

		resp, err := g.models.GenerateContent(ctx, g.model, contents, genConfig)
		if err == nil {
			text, perr := responseText(resp)
			if perr != nil {
				g.logger.WarnContext(ctx, "permanent Gemini response error, not retrying",
					slog.String("error", perr.Error()))
				return "", perr
			}
			return text, nil
		}

		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}

		g.logger.ErrorContext(ctx, "Gemini API call failed",
			slog.Int("attempt", attemptNum),
			slog.String("error", err.Error()))

		if attempt >= maxRetries {
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, maxRetries, err)
		}

		// delay = baseDelay * 2^attempt * [0.5, 1.0)
		backoff := float64(g.config.RetryDelaySeconds) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + g.rng.Float64()*0.5) * float64(time.Second))

		g.logger.InfoContext(ctx, "retrying Gemini call after delay",
			slog.Int("attempt", attemptNum),
			slog.Duration("delay", delay))

		if err := g.sleep(ctx, delay); err != nil {
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
		}
	}
}

// responseText extracts the text of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("%w: empty text in response", generation.ErrInvalidResponse)
	}
	return sb.String(), nil
}

// stripCodeFence removes a ```json fence some models wrap JSON in.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
