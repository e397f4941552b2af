package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/the-mail-must-flow/internal/common"
	"github.com/Veraticus/the-mail-must-flow/internal/model"
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("%w: context cannot be nil", common.ErrValidation)
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", common.ErrValidation, paramName)
	}
	return nil
}

// validateRecord validates a record before insertion.
func validateRecord(record *model.Record) error {
	if record == nil {
		return fmt.Errorf("%w: record cannot be nil", common.ErrValidation)
	}
	if err := validateString(record.ID, "record.ID"); err != nil {
		return err
	}
	if err := validateString(record.UserID, "record.UserID"); err != nil {
		return err
	}
	if err := validateString(record.ProviderMessageID, "record.ProviderMessageID"); err != nil {
		return err
	}
	if !record.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", common.ErrValidation, record.Status)
	}
	if !strings.HasPrefix(record.BodyFull, record.BodyPreview) {
		return fmt.Errorf("%w: body preview must be a prefix of the full body", common.ErrValidation)
	}
	return nil
}

// validateAnalysis validates pipeline output before it is written.
func validateAnalysis(analysis *model.Analysis) error {
	if analysis == nil {
		return fmt.Errorf("%w: analysis cannot be nil", common.ErrValidation)
	}
	if !analysis.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", common.ErrValidation, analysis.Category)
	}
	if !analysis.Sentiment.Valid() {
		return fmt.Errorf("%w: unknown sentiment %q", common.ErrValidation, analysis.Sentiment)
	}
	if analysis.Priority < 1 || analysis.Priority > 5 {
		return fmt.Errorf("%w: priority %d outside 1-5", common.ErrValidation, analysis.Priority)
	}
	if analysis.Confidence < 0.0 || analysis.Confidence > 1.0 {
		return fmt.Errorf("%w: confidence %f outside [0,1]", common.ErrValidation, analysis.Confidence)
	}
	return nil
}
