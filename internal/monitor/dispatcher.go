package monitor

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"horse.fit/portalerts/internal/db"
	"horse.fit/portalerts/internal/messenger"
)

// Sender delivers one chat message.
type Sender interface {
	Send(ctx context.Context, msg messenger.Message) (messenger.SendResult, error)
}

type SubscriberStore interface {
	ListEligibleSubscribers(ctx context.Context, entityID int64, score int16) ([]db.EligibleSubscriber, error)
	ClaimNotificationAttempt(ctx context.Context, postID, subscriberID, entityID int64, at time.Time) (bool, error)
	CompleteNotificationAttempt(ctx context.Context, postID, subscriberID int64, status string, providerMessageID, errorMessage *string, at time.Time) error
}

type DispatcherOptions struct {
	SendTimeout time.Duration
	RatePerSec  float64
}

// Dispatcher fans a stored post out to eligible subscribers. Each
// (post, subscriber) pair is claimed before sending, so it is attempted at most once.
type Dispatcher struct {
	store   SubscriberStore
	sender  Sender
	limiter *rate.Limiter
	timeout time.Duration
	now     func() time.Time
}

func NewDispatcher(store SubscriberStore, sender Sender, opts DispatcherOptions, now func() time.Time) *Dispatcher {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	return &Dispatcher{
		store:   store,
		sender:  sender,
		limiter: limiter,
		timeout: opts.SendTimeout,
		now:     now,
	}
}

// Dispatch returns the number of messages delivered. Only a failed subscriber
// lookup is returned as an error; per-recipient failures are logged and recorded.
func (d *Dispatcher) Dispatch(ctx context.Context, logger zerolog.Logger, entity Entity, post StoredPost) (int, error) {
	if d == nil || d.sender == nil {
		return 0, nil
	}

	subscribers, err := d.store.ListEligibleSubscribers(ctx, entity.ID, int16(post.Score))
	if err != nil {
		return 0, fmt.Errorf("list eligible subscribers: %w", err)
	}
	if len(subscribers) == 0 {
		return 0, nil
	}

	text := ComposeMessage(entity, post)
	sent := 0
	for _, subscriber := range subscribers {
		subLogger := logger.With().
			Int64("post_id", post.ID).
			Int64("subscriber_id", subscriber.SubscriberID).
			Logger()

		claimed, err := d.store.ClaimNotificationAttempt(ctx, post.ID, subscriber.SubscriberID, entity.ID, d.now())
		if err != nil {
			subLogger.Error().Err(err).Msg("claim notification attempt failed")
			continue
		}
		if !claimed {
			subLogger.Debug().Msg("notification already attempted")
			continue
		}

		if err := d.limiter.Wait(ctx); err != nil {
			d.complete(ctx, subLogger, post.ID, subscriber.SubscriberID, "", err)
			continue
		}

		messageID, err := d.send(ctx, subscriber.TelegramChatID, text)
		d.complete(ctx, subLogger, post.ID, subscriber.SubscriberID, messageID, err)
		if err != nil {
			subLogger.Warn().Err(err).Msg("notification send failed")
			continue
		}
		sent++
	}
	return sent, nil
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, text string) (string, error) {
	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	result, err := d.sender.Send(sendCtx, messenger.Message{
		ChatID: chatID,
		Text:   text,
		Format: messenger.FormatHTML,
	})
	if err != nil {
		return "", err
	}
	return result.MessageID, nil
}

func (d *Dispatcher) complete(ctx context.Context, logger zerolog.Logger, postID, subscriberID int64, messageID string, sendErr error) {
	status := db.AttemptStatusSent
	var providerMessageID, errorMessage *string
	if messageID != "" {
		providerMessageID = &messageID
	}
	if sendErr != nil {
		status = db.AttemptStatusFailed
		msg := sendErr.Error()
		errorMessage = &msg
	}

	// The attempt row must reflect the outcome even when the run context was cancelled mid-send.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.store.CompleteNotificationAttempt(recordCtx, postID, subscriberID, status, providerMessageID, errorMessage, d.now()); err != nil {
		logger.Error().Err(err).Str("status", status).Msg("record notification attempt failed")
	}
}

// ComposeMessage renders the HTML alert for one post.
func ComposeMessage(entity Entity, post StoredPost) string {
	var sb strings.Builder

	title := html.EscapeString(entity.Name)
	if entity.Symbol != "" {
		title += " ($" + html.EscapeString(strings.ToUpper(entity.Symbol)) + ")"
	}
	fmt.Fprintf(&sb, "🔔 <b>%s</b>\n", title)
	fmt.Fprintf(&sb, "Importance: <b>%d/10</b> · %s\n\n", post.Score, html.EscapeString(string(post.Category)))
	sb.WriteString(html.EscapeString(post.Summary))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "By %s", html.EscapeString(post.AuthorLabel))
	if post.SourceURL != "" {
		fmt.Fprintf(&sb, "\n<a href=\"%s\">View source</a>", html.EscapeString(post.SourceURL))
	}
	return sb.String()
}
