package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-mail-must-flow/internal/model"
)

// scriptedClient replays canned responses in call order and records the
// prompts it receives, matching the fixed stage sequence.
type scriptedClient struct {
	responses []string
	errs      []error
	prompts   []string
	calls     int
}

func (c *scriptedClient) Infer(_ context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i >= len(c.responses) {
		return "", fmt.Errorf("unexpected inference call %d", i)
	}
	return c.responses[i], nil
}

func goodResponses() []string {
	return []string{
		`{"category": "support"}`,
		`{"sentiment": "negative"}`,
		`{"priority": 4}`,
		`{"key_points": ["order 1234 never arrived", "wants refund"]}`,
		`{"response_body": "Hello,\n\nSorry about the delay.\n\nBest regards", "tone": "empathetic"}`,
		`{"confidence": 0.85}`,
	}
}

func testRecord() *model.Record {
	return &model.Record{
		ID:       "rec-1",
		UserID:   "user-1",
		Subject:  "Missing order",
		Sender:   "customer@example.com",
		BodyFull: "My order 1234 never arrived and I would like a refund.",
	}
}

func newTestAnalyzer(t *testing.T, client *scriptedClient) *Analyzer {
	t.Helper()
	analyzer, err := NewAnalyzer(client, slog.Default())
	require.NoError(t, err)
	return analyzer
}

func TestNewAnalyzer_RequiresClient(t *testing.T) {
	_, err := NewAnalyzer(nil, slog.Default())
	require.Error(t, err)
}

func TestAnalyze_AllStagesSucceed(t *testing.T) {
	client := &scriptedClient{responses: goodResponses()}
	analyzer := newTestAnalyzer(t, client)

	analysis := analyzer.Analyze(context.Background(), testRecord())

	assert.Equal(t, model.CategorySupport, analysis.Category)
	assert.Equal(t, model.SentimentNegative, analysis.Sentiment)
	assert.Equal(t, 4, analysis.Priority)
	assert.Equal(t, []string{"order 1234 never arrived", "wants refund"}, analysis.KeyPoints)
	assert.Equal(t, "Hello,\n\nSorry about the delay.\n\nBest regards", analysis.Draft)
	assert.Equal(t, "empathetic", analysis.Tone)
	assert.InDelta(t, 0.85, analysis.Confidence, 0.0001)
	assert.Empty(t, analysis.FallbackReasons)
	assert.Equal(t, 6, client.calls, "every stage runs exactly once")
}

func TestAnalyze_SingleStageFailure(t *testing.T) {
	client := &scriptedClient{
		responses: goodResponses(),
		errs:      []error{fmt.Errorf("upstream timeout")},
	}
	analyzer := newTestAnalyzer(t, client)

	analysis := analyzer.Analyze(context.Background(), testRecord())

	assert.Equal(t, model.CategoryGeneral, analysis.Category, "failed classify falls back to general")
	assert.Equal(t, model.SentimentNegative, analysis.Sentiment, "later stages still run")
	assert.Equal(t, 4, analysis.Priority)
	assert.Equal(t, []string{stageClassify}, analysis.FallbackReasons)
	assert.Zero(t, analysis.Confidence, "any fallback forces confidence to zero")
	assert.Equal(t, 6, client.calls)
}

func TestAnalyze_AllStagesFail(t *testing.T) {
	errs := make([]error, 6)
	for i := range errs {
		errs[i] = fmt.Errorf("provider down")
	}
	client := &scriptedClient{errs: errs}
	analyzer := newTestAnalyzer(t, client)

	rec := testRecord()
	analysis := analyzer.Analyze(context.Background(), rec)

	assert.Equal(t, model.CategoryGeneral, analysis.Category)
	assert.Equal(t, model.SentimentNeutral, analysis.Sentiment)
	assert.Equal(t, 3, analysis.Priority)
	assert.Empty(t, analysis.KeyPoints)
	assert.Equal(t, fallbackDraft(rec.Subject), analysis.Draft)
	assert.Equal(t, "formal", analysis.Tone)
	assert.Zero(t, analysis.Confidence)
	assert.Len(t, analysis.FallbackReasons, 6)
}

func TestAnalyze_DraftSeesPriorOutputs(t *testing.T) {
	client := &scriptedClient{responses: goodResponses()}
	analyzer := newTestAnalyzer(t, client)

	analyzer.Analyze(context.Background(), testRecord())

	require.Len(t, client.prompts, 6)
	draftPrompt := client.prompts[4]
	assert.Contains(t, draftPrompt, "support")
	assert.Contains(t, draftPrompt, "negative")
	assert.Contains(t, draftPrompt, "Priority: 4")
	assert.Contains(t, draftPrompt, "order 1234 never arrived")
	assert.Contains(t, draftPrompt, "helpful and empathetic", "negative sentiment steers the tone guidance")
}

func TestAnalyze_RejectsInvalidStageValues(t *testing.T) {
	tests := []struct {
		name     string
		stage    int
		response string
		reason   string
	}{
		{
			name:     "unknown category",
			stage:    0,
			response: `{"category": "spam"}`,
			reason:   stageClassify,
		},
		{
			name:     "unknown sentiment",
			stage:    1,
			response: `{"sentiment": "ambivalent"}`,
			reason:   stageSentiment,
		},
		{
			name:     "priority out of range",
			stage:    2,
			response: `{"priority": 9}`,
			reason:   stagePriority,
		},
		{
			name:     "empty draft body",
			stage:    4,
			response: `{"response_body": "", "tone": "friendly"}`,
			reason:   stageDraft,
		},
		{
			name:     "confidence out of range",
			stage:    5,
			response: `{"confidence": 1.5}`,
			reason:   stageConfidence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responses := goodResponses()
			responses[tt.stage] = tt.response
			client := &scriptedClient{responses: responses}
			analyzer := newTestAnalyzer(t, client)

			analysis := analyzer.Analyze(context.Background(), testRecord())

			assert.Equal(t, []string{tt.reason}, analysis.FallbackReasons)
			assert.Zero(t, analysis.Confidence)
		})
	}
}

func TestAnalyze_TruncatesLongBodies(t *testing.T) {
	longBody := ""
	for range 500 {
		longBody += "0123456789"
	}
	rec := testRecord()
	rec.BodyFull = longBody

	client := &scriptedClient{responses: goodResponses()}
	analyzer := newTestAnalyzer(t, client)
	analyzer.Analyze(context.Background(), rec)

	require.NotEmpty(t, client.prompts)
	assert.Less(t, len(client.prompts[0]), len(longBody), "prompt body is truncated")
	assert.Contains(t, client.prompts[0], "[Email truncated due to length]")
}
