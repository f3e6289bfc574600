package db

import (
	"context"
	"fmt"
	"time"
)

const (
	AttemptStatusPending = "pending"
	AttemptStatusSent    = "sent"
	AttemptStatusFailed  = "failed"
)

// EligibleSubscriber is an active subscriber whose effective threshold was met.
type EligibleSubscriber struct {
	SubscriberID   int64
	SubscriberUUID string
	TelegramChatID int64
	Threshold      int16
}

// SubscriberStatus is the read model behind the bot /status and /settings commands.
type SubscriberStatus struct {
	SubscriberUUID      string
	TelegramChatID      int64
	TelegramUsername    *string
	DefaultThreshold    int16
	Active              bool
	ActiveSubscriptions int64
	CreatedAt           time.Time
}

const eligibleSubscribersSQL = `
SELECT
	s.subscriber_id,
	s.subscriber_uuid::text,
	s.telegram_chat_id,
	COALESCE(sub.threshold, s.default_threshold) AS threshold
FROM portalerts.subscriptions sub
JOIN portalerts.subscribers s
	ON s.subscriber_id = sub.subscriber_id
WHERE sub.entity_id = $1
  AND sub.active
  AND s.active
  AND COALESCE(sub.threshold, s.default_threshold) <= $2
ORDER BY s.subscriber_id ASC
`

// ListEligibleSubscribers returns subscribers of the entity whose effective threshold is <= score.
// A subscription without its own threshold uses the subscriber default.
func (p *Pool) ListEligibleSubscribers(ctx context.Context, entityID int64, score int16) ([]EligibleSubscriber, error) {
	rows, err := p.Query(ctx, eligibleSubscribersSQL, entityID, score)
	if err != nil {
		return nil, fmt.Errorf("query eligible subscribers: %w", err)
	}
	defer rows.Close()

	items := make([]EligibleSubscriber, 0, 8)
	for rows.Next() {
		var row EligibleSubscriber
		if err := rows.Scan(&row.SubscriberID, &row.SubscriberUUID, &row.TelegramChatID, &row.Threshold); err != nil {
			return nil, fmt.Errorf("scan subscriber row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriber rows: %w", err)
	}
	return items, nil
}

// ClaimNotificationAttempt reserves the (post, subscriber) pair. false means another
// invocation already claimed it and nothing must be sent.
func (p *Pool) ClaimNotificationAttempt(ctx context.Context, postID, subscriberID, entityID int64, at time.Time) (bool, error) {
	const q = `
INSERT INTO portalerts.notification_attempts (
	post_id,
	subscriber_id,
	entity_id,
	status,
	attempted_at
)
VALUES ($1, $2, $3, 'pending', $4)
ON CONFLICT (post_id, subscriber_id) DO NOTHING
`
	tag, err := p.Exec(ctx, q, postID, subscriberID, entityID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("claim notification attempt: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteNotificationAttempt records the send outcome on a claimed attempt.
func (p *Pool) CompleteNotificationAttempt(
	ctx context.Context,
	postID int64,
	subscriberID int64,
	status string,
	providerMessageID *string,
	errorMessage *string,
	at time.Time,
) error {
	switch status {
	case AttemptStatusSent, AttemptStatusFailed:
	default:
		return fmt.Errorf("unsupported attempt status %q", status)
	}

	const q = `
UPDATE portalerts.notification_attempts
SET
	status = $3,
	provider_message_id = $4,
	error_message = $5,
	attempted_at = $6
WHERE post_id = $1
  AND subscriber_id = $2
`
	tag, err := p.Exec(ctx, q, postID, subscriberID, status, providerMessageID, errorMessage, at.UTC())
	if err != nil {
		return fmt.Errorf("complete notification attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification attempt post_id=%d subscriber_id=%d not found", postID, subscriberID)
	}
	return nil
}

// GetSubscriberByChatID returns ErrNoRows when the chat is not linked to a subscriber.
func (p *Pool) GetSubscriberByChatID(ctx context.Context, chatID int64) (*SubscriberStatus, error) {
	const q = `
SELECT
	s.subscriber_uuid::text,
	s.telegram_chat_id,
	s.telegram_username,
	s.default_threshold,
	s.active,
	(
		SELECT COUNT(*)
		FROM portalerts.subscriptions sub
		WHERE sub.subscriber_id = s.subscriber_id
		  AND sub.active
	) AS active_subscriptions,
	s.created_at
FROM portalerts.subscribers s
WHERE s.telegram_chat_id = $1
`
	var out SubscriberStatus
	if err := p.QueryRow(ctx, q, chatID).Scan(
		&out.SubscriberUUID,
		&out.TelegramChatID,
		&out.TelegramUsername,
		&out.DefaultThreshold,
		&out.Active,
		&out.ActiveSubscriptions,
		&out.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &out, nil
}
