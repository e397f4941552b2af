package pipeline

import (
	"fmt"
	"strings"

	"github.com/Veraticus/the-mail-must-flow/internal/model"
)

func classifyPrompt(subject, sender, body string) string {
	return fmt.Sprintf(`Classify this email into exactly one category.

Subject: %s
From: %s
Body: %s

Valid categories: "work", "personal", "marketing", "support", "urgent", "general"

Respond with only a JSON object in this exact format:
{"category": "work"}`, subject, sender, body)
}

func sentimentPrompt(subject, sender, body string) string {
	return fmt.Sprintf(`Determine the sender's sentiment in this email.

Subject: %s
From: %s
Body: %s

Valid sentiments: "positive", "neutral", "negative"

Respond with only a JSON object in this exact format:
{"sentiment": "neutral"}`, subject, sender, body)
}

func priorityPrompt(subject, sender, body string, category model.Category) string {
	return fmt.Sprintf(`Score the priority of this email from 1 (lowest) to 5 (highest).

Subject: %s
From: %s
Category: %s
Body: %s

Consider urgency, deadlines, and whether the sender is waiting on a reply.

Respond with only a JSON object in this exact format:
{"priority": 3}`, subject, sender, category, body)
}

func keyPointsPrompt(subject, body string) string {
	return fmt.Sprintf(`Extract the key points from this email as short phrases.

Subject: %s
Body: %s

List at most 5 points. An email with no substantive content has no points.

Respond with only a JSON object in this exact format:
{"key_points": ["first point", "second point"]}`, subject, body)
}

func draftPrompt(subject, sender, body string, analysis model.Analysis) string {
	toneGuidance := "friendly and professional"
	if analysis.Sentiment == model.SentimentNegative {
		toneGuidance = "helpful and empathetic"
	}

	return fmt.Sprintf(`Generate a reply to this email.

Subject: %s
From: %s
Body: %s

Analysis:
Category: %s
Priority: %d
Sentiment: %s
Key Points: %s

Write a reply that acknowledges the email, addresses the key points, and is
appropriate for the category and priority. Maintain a %s tone. Use double
newlines between paragraphs, open with a greeting on its own line, and close
with a sign-off on its own line.

Respond with only a JSON object in this exact format:
{"response_body": "Hello,\n\n...\n\nBest regards", "tone": "friendly"}`,
		subject, sender, body,
		analysis.Category, analysis.Priority, analysis.Sentiment,
		strings.Join(analysis.KeyPoints, ", "), toneGuidance)
}

func confidencePrompt(subject string, analysis model.Analysis) string {
	return fmt.Sprintf(`Rate your confidence that this email analysis and drafted reply are
accurate and ready for a human to approve, from 0.0 to 1.0.

Subject: %s
Category: %s
Priority: %d
Sentiment: %s
Key Points: %s
Drafted reply: %s

Respond with only a JSON object in this exact format:
{"confidence": 0.85}`,
		subject, analysis.Category, analysis.Priority, analysis.Sentiment,
		strings.Join(analysis.KeyPoints, ", "), analysis.Draft)
}
