// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Status tracks where a record is in the approval lifecycle.
type Status string

// Record lifecycle statuses. StatusSending is the transient claim a handler
// holds between winning the approval transition and the provider send
// resolving; it is never returned to callers as a resting state.
const (
	StatusFetched         Status = "fetched"
	StatusAnalyzed        Status = "analyzed"
	StatusPendingApproval Status = "pending_approval"
	StatusSending         Status = "sending"
	StatusSent            Status = "sent"
	StatusRejected        Status = "rejected"
	StatusFailedSend      Status = "failed_send"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusFetched, StatusAnalyzed, StatusPendingApproval,
		StatusSending, StatusSent, StatusRejected, StatusFailedSend:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
// failed_send is terminal for decision operations but may be resurfaced to
// pending_approval by an explicit user retry.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusRejected || s == StatusFailedSend
}

// Category is the pipeline's classification of a message.
type Category string

// Message categories.
const (
	CategoryUrgent    Category = "urgent"
	CategoryWork      Category = "work"
	CategoryPersonal  Category = "personal"
	CategorySupport   Category = "support"
	CategoryMarketing Category = "marketing"
	CategoryGeneral   Category = "general"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryUrgent, CategoryWork, CategoryPersonal,
		CategorySupport, CategoryMarketing, CategoryGeneral:
		return true
	}
	return false
}

// Sentiment is the pipeline's read of the sender's mood.
type Sentiment string

// Sentiment values.
const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether s is a known sentiment.
func (s Sentiment) Valid() bool {
	return s == SentimentPositive || s == SentimentNeutral || s == SentimentNegative
}

// RawMessage is a message as fetched from the mail provider, before any
// record exists for it.
type RawMessage struct {
	ProviderMessageID string
	ThreadID          string
	Subject           string
	Sender            string
	Body              string
	ReceivedAt        time.Time
}

// Record is one tracked email and its analysis and decision state. It is
// created at ingestion and mutated only through status transitions; terminal
// records are retained for history and statistics.
type Record struct {
	CreatedAt         time.Time
	DecidedAt         *time.Time
	SentAt            *time.Time
	ID                string
	UserID            string
	ProviderMessageID string
	ThreadID          string
	Subject           string
	Sender            string
	BodyFull          string
	BodyPreview       string
	Category          Category
	Sentiment         Sentiment
	Tone              string
	DraftResponse     string
	EditedResponse    string
	ResponseSent      string
	Status            Status
	KeyPoints         []string
	FallbackReasons   []string
	Priority          int
	Confidence        float64
}

// RecordID derives the stable record identifier for a message. The same
// (user, provider message) pair always maps to the same ID, which is what
// makes re-fetching idempotent.
func RecordID(userID, providerMessageID string) string {
	hash := sha256.Sum256([]byte(userID + ":" + providerMessageID))
	return fmt.Sprintf("%x", hash)
}

// ResponseText returns the text a send should use: the edited response when
// one has been saved, otherwise the pipeline draft.
func (r *Record) ResponseText() string {
	if r.EditedResponse != "" {
		return r.EditedResponse
	}
	return r.DraftResponse
}

// Analysis is the structured output of the pipeline for one message.
type Analysis struct {
	Category        Category
	Sentiment       Sentiment
	Tone            string
	Draft           string
	KeyPoints       []string
	FallbackReasons []string
	Priority        int
	Confidence      float64
}

// StatsSnapshot is a read-time aggregate over a user's records. It is never
// maintained incrementally; every field is recomputed from the record set.
type StatsSnapshot struct {
	ByStatus         map[Status]int
	ByCategory       map[Category]int
	PendingApprovals int
	ProcessedToday   int
	TotalProcessed   int
}
