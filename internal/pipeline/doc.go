// Package pipeline runs the fixed analysis stage sequence over newly
// ingested messages: classification, sentiment, priority, key points, draft
// generation, and confidence scoring. A stage failure never drops a message;
// the stage falls back to a fixed default and the record's confidence is
// forced to zero so a reviewer can tell the analysis is degraded.
package pipeline
