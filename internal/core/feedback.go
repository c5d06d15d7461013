package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// SubmitFeedback records a human correction and feeds it back into memory.
//
// The feedback row and the relabelled email record are committed first. The
// memory write and the mailbox side effect run afterwards; their failures are
// reported as warnings and never undo the commit.
func (s *HousekeeperService) SubmitFeedback(
	ctx context.Context,
	ownerID string,
	emailRecordID int64,
	userAction Action,
) (*FeedbackResult, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if userAction != ActionKeep && userAction != ActionDelete {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, userAction)
	}
	ctx = WithOwner(ctx, ownerID)

	record, err := s.records.GetEmailRecord(ctx, ownerID, emailRecordID)
	if err != nil {
		return nil, err
	}

	feedback := &FeedbackRecord{
		OwnerID:        ownerID,
		EmailRecordID:  record.ID,
		OriginalAction: record.Action,
		UserAction:     userAction,
		IsOverride:     record.Action != userAction,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.records.ApplyFeedback(ctx, feedback); err != nil {
		return nil, fmt.Errorf("failed to store feedback: %w", err)
	}

	var warnings []string

	if err := s.learnFromFeedback(ctx, ownerID, record, userAction); err != nil {
		s.logger.Warn("Failed to learn from feedback",
			zap.String("owner_id", ownerID),
			zap.Int64("email_record_id", record.ID),
			zap.Error(err))
		warnings = append(warnings, fmt.Sprintf("memory update failed: %v", err))
	}

	if userAction == ActionDelete {
		if err := s.trash(ctx, ownerID, record.EmailID); err != nil {
			s.logger.Warn("Failed to trash email after feedback",
				zap.String("owner_id", ownerID),
				zap.String("email_id", record.EmailID),
				zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("mailbox deletion failed: %v", err))
		}
	}

	message := "Feedback recorded."
	if len(warnings) > 0 {
		message = "Feedback saved, but " + strings.Join(warnings, "; ")
	}

	s.logger.Info("Feedback recorded",
		zap.String("owner_id", ownerID),
		zap.Int64("feedback_id", feedback.ID),
		zap.String("original_action", string(feedback.OriginalAction)),
		zap.String("user_action", string(userAction)),
		zap.Bool("is_override", feedback.IsOverride))

	return &FeedbackResult{
		FeedbackID:     feedback.ID,
		EmailRecordID:  record.ID,
		OriginalAction: feedback.OriginalAction,
		UserAction:     userAction,
		IsOverride:     feedback.IsOverride,
		Message:        message,
		Warnings:       warnings,
	}, nil
}

// learnFromFeedback re-embeds the stored email and saves it under the corrected label
func (s *HousekeeperService) learnFromFeedback(ctx context.Context, ownerID string, record *EmailRecord, userAction Action) error {
	text := record.Text()

	vector, err := s.embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	if _, err := s.reinforcement.StoreFeedbackMemory(ctx, ownerID, text, vector, userAction, record.Priority); err != nil {
		return fmt.Errorf("memory upsert failed: %w", err)
	}
	return nil
}

func (s *HousekeeperService) trash(ctx context.Context, ownerID, emailID string) error {
	if s.mailboxes == nil {
		return errors.New("no mailbox configured")
	}

	ctx, cancel := s.stepContext(ctx)
	defer cancel()

	mailbox, err := s.mailboxes.Mailbox(ctx, ownerID)
	if err != nil {
		return err
	}
	return mailbox.Trash(ctx, emailID)
}
