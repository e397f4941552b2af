package engine

import (
	"context"
	"sync"

	"github.com/Veraticus/the-mail-must-flow/internal/model"
)

// MockAnalyzer is a test implementation of the Analyzer interface. It
// returns a fixed analysis and records which records it saw.
type MockAnalyzer struct {
	Analysis model.Analysis

	analyzed []string
	mu       sync.Mutex
}

// NewMockAnalyzer creates a mock analyzer returning a plausible analysis.
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{
		Analysis: model.Analysis{
			Category:   model.CategoryWork,
			Sentiment:  model.SentimentNeutral,
			Tone:       "friendly",
			Draft:      "Hello,\n\nThanks for reaching out.\n\nBest regards",
			KeyPoints:  []string{"needs a reply"},
			Priority:   3,
			Confidence: 0.9,
		},
	}
}

// Analyze records the call and returns the configured analysis.
func (m *MockAnalyzer) Analyze(_ context.Context, rec *model.Record) model.Analysis {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyzed = append(m.analyzed, rec.ID)
	return m.Analysis
}

// Analyzed returns the record IDs analyzed so far.
func (m *MockAnalyzer) Analyzed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.analyzed))
	copy(out, m.analyzed)
	return out
}
