package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-mail-must-flow/internal/llm"
	"github.com/Veraticus/the-mail-must-flow/internal/mailtext"
	"github.com/Veraticus/the-mail-must-flow/internal/model"
)

const (
	// defaultStageTimeout bounds each individual inference call.
	defaultStageTimeout = 30 * time.Second

	// promptBodyLimit caps how much body text a prompt carries.
	promptBodyLimit = 4000
)

// Analyzer runs the analysis stage sequence against an inference client.
type Analyzer struct {
	client       llm.Client
	logger       *slog.Logger
	stageTimeout time.Duration
}

// NewAnalyzer creates an analyzer backed by the given inference client.
func NewAnalyzer(client llm.Client, logger *slog.Logger) (*Analyzer, error) {
	if client == nil {
		return nil, fmt.Errorf("inference client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		client:       client,
		logger:       logger,
		stageTimeout: defaultStageTimeout,
	}, nil
}

// Analyze runs every stage in order and always returns a complete analysis.
// Stage order is fixed: classify, sentiment, priority, key points, draft,
// confidence. The draft stage sees all prior outputs. A failed stage is
// replaced by its default and recorded in FallbackReasons; any fallback
// forces the record's confidence to zero.
func (a *Analyzer) Analyze(ctx context.Context, rec *model.Record) model.Analysis {
	body := mailtext.Truncate(rec.BodyFull, promptBodyLimit)

	analysis := model.Analysis{
		Category:  model.CategoryGeneral,
		Sentiment: model.SentimentNeutral,
		Tone:      fallbackTone,
		Priority:  fallbackPriority,
		KeyPoints: []string{},
	}

	if category, err := a.classify(ctx, rec.Subject, rec.Sender, body); err != nil {
		a.recordFallback(&analysis, rec, stageClassify, err)
	} else {
		analysis.Category = category
	}

	if sentiment, err := a.sentiment(ctx, rec.Subject, rec.Sender, body); err != nil {
		a.recordFallback(&analysis, rec, stageSentiment, err)
	} else {
		analysis.Sentiment = sentiment
	}

	if priority, err := a.priority(ctx, rec.Subject, rec.Sender, body, analysis.Category); err != nil {
		a.recordFallback(&analysis, rec, stagePriority, err)
	} else {
		analysis.Priority = priority
	}

	if points, err := a.keyPoints(ctx, rec.Subject, body); err != nil {
		a.recordFallback(&analysis, rec, stageKeyPoints, err)
	} else {
		analysis.KeyPoints = points
	}

	if draft, tone, err := a.draft(ctx, rec.Subject, rec.Sender, body, analysis); err != nil {
		a.recordFallback(&analysis, rec, stageDraft, err)
		analysis.Draft = fallbackDraft(rec.Subject)
	} else {
		analysis.Draft = draft
		analysis.Tone = tone
	}

	if confidence, err := a.confidence(ctx, rec.Subject, analysis); err != nil {
		a.recordFallback(&analysis, rec, stageConfidence, err)
	} else {
		analysis.Confidence = confidence
	}

	// Confidence 0.0 is the degraded-analysis marker; it wins over whatever
	// the confidence stage reported.
	if len(analysis.FallbackReasons) > 0 {
		analysis.Confidence = 0.0
	}

	return analysis
}

// Stage names as recorded in FallbackReasons.
const (
	stageClassify   = "classify"
	stageSentiment  = "sentiment"
	stagePriority   = "priority"
	stageKeyPoints  = "key_points"
	stageDraft      = "draft"
	stageConfidence = "confidence"
)

const (
	fallbackPriority = 3
	fallbackTone     = "formal"
)

// fallbackDraft is the acknowledgement sent for review when draft generation
// fails.
func fallbackDraft(subject string) string {
	return fmt.Sprintf("Thank you for your email regarding: %s\n\nI have received your message and will respond shortly.\n\nBest regards", subject)
}

func (a *Analyzer) recordFallback(analysis *model.Analysis, rec *model.Record, stage string, err error) {
	analysis.FallbackReasons = append(analysis.FallbackReasons, stage)
	a.logger.Warn("analysis stage fell back to default",
		"record_id", rec.ID,
		"stage", stage,
		"error", err)
}

// infer runs one inference call under the per-stage timeout.
func (a *Analyzer) infer(ctx context.Context, stage, prompt string) (string, error) {
	stageCtx, cancel := context.WithTimeout(ctx, a.stageTimeout)
	defer cancel()

	response, err := a.client.Infer(stageCtx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s stage: %w", stage, err)
	}
	return response, nil
}

func (a *Analyzer) classify(ctx context.Context, subject, sender, body string) (model.Category, error) {
	raw, err := a.infer(ctx, stageClassify, classifyPrompt(subject, sender, body))
	if err != nil {
		return "", err
	}

	var result struct {
		Category string `json:"category"`
	}
	if err := parseStage(raw, &result); err != nil {
		return "", fmt.Errorf("%s stage: %w", stageClassify, err)
	}

	category := model.Category(result.Category)
	if !category.Valid() {
		return "", fmt.Errorf("%s stage: unknown category %q", stageClassify, result.Category)
	}
	return category, nil
}

func (a *Analyzer) sentiment(ctx context.Context, subject, sender, body string) (model.Sentiment, error) {
	raw, err := a.infer(ctx, stageSentiment, sentimentPrompt(subject, sender, body))
	if err != nil {
		return "", err
	}

	var result struct {
		Sentiment string `json:"sentiment"`
	}
	if err := parseStage(raw, &result); err != nil {
		return "", fmt.Errorf("%s stage: %w", stageSentiment, err)
	}

	sentiment := model.Sentiment(result.Sentiment)
	if !sentiment.Valid() {
		return "", fmt.Errorf("%s stage: unknown sentiment %q", stageSentiment, result.Sentiment)
	}
	return sentiment, nil
}

func (a *Analyzer) priority(ctx context.Context, subject, sender, body string, category model.Category) (int, error) {
	raw, err := a.infer(ctx, stagePriority, priorityPrompt(subject, sender, body, category))
	if err != nil {
		return 0, err
	}

	var result struct {
		Priority int `json:"priority"`
	}
	if err := parseStage(raw, &result); err != nil {
		return 0, fmt.Errorf("%s stage: %w", stagePriority, err)
	}

	if result.Priority < 1 || result.Priority > 5 {
		return 0, fmt.Errorf("%s stage: priority %d outside 1-5", stagePriority, result.Priority)
	}
	return result.Priority, nil
}

func (a *Analyzer) keyPoints(ctx context.Context, subject, body string) ([]string, error) {
	raw, err := a.infer(ctx, stageKeyPoints, keyPointsPrompt(subject, body))
	if err != nil {
		return nil, err
	}

	var result struct {
		KeyPoints []string `json:"key_points"`
	}
	if err := parseStage(raw, &result); err != nil {
		return nil, fmt.Errorf("%s stage: %w", stageKeyPoints, err)
	}

	if result.KeyPoints == nil {
		result.KeyPoints = []string{}
	}
	return result.KeyPoints, nil
}

func (a *Analyzer) draft(ctx context.Context, subject, sender, body string, analysis model.Analysis) (string, string, error) {
	raw, err := a.infer(ctx, stageDraft, draftPrompt(subject, sender, body, analysis))
	if err != nil {
		return "", "", err
	}

	var result struct {
		ResponseBody string `json:"response_body"`
		Tone         string `json:"tone"`
	}
	if err := parseStage(raw, &result); err != nil {
		return "", "", fmt.Errorf("%s stage: %w", stageDraft, err)
	}

	if result.ResponseBody == "" {
		return "", "", fmt.Errorf("%s stage: empty response body", stageDraft)
	}
	if result.Tone == "" {
		result.Tone = fallbackTone
	}
	return result.ResponseBody, result.Tone, nil
}

func (a *Analyzer) confidence(ctx context.Context, subject string, analysis model.Analysis) (float64, error) {
	raw, err := a.infer(ctx, stageConfidence, confidencePrompt(subject, analysis))
	if err != nil {
		return 0, err
	}

	var result struct {
		Confidence float64 `json:"confidence"`
	}
	if err := parseStage(raw, &result); err != nil {
		return 0, fmt.Errorf("%s stage: %w", stageConfidence, err)
	}

	if result.Confidence < 0.0 || result.Confidence > 1.0 {
		return 0, fmt.Errorf("%s stage: confidence %.2f outside [0.0, 1.0]", stageConfidence, result.Confidence)
	}
	return result.Confidence, nil
}
