package gmail

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/credentials"
	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	defaultSubject = "(No Subject)"
	defaultSender  = "(Unknown)"
)

// Mailbox is the Gmail inbox of one owner
type Mailbox struct {
	service *gmailapi.Service
	user    string
	window  time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewMailbox wraps an authenticated Gmail service
func NewMailbox(service *gmailapi.Service, user string, window time.Duration, logger *zap.Logger) *Mailbox {
	if user == "" {
		user = "me"
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Mailbox{
		service: service,
		user:    user,
		window:  window,
		logger:  logger,
		now:     time.Now,
	}
}

// FetchRecent lists primary inbox messages received inside the window.
// Messages whose details cannot be loaded are skipped.
func (m *Mailbox) FetchRecent(ctx context.Context, max int) ([]core.Email, error) {
	query := fmt.Sprintf("after:%d category:primary", m.now().Add(-m.window).Unix())

	resp, err := m.service.Users.Messages.List(m.user).
		Q(query).
		LabelIds("INBOX").
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list Gmail messages: %w", err)
	}

	m.logger.Info("Fetched Gmail message list",
		zap.String("query", query),
		zap.Int("count", len(resp.Messages)))

	emails := make([]core.Email, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		msg, err := m.service.Users.Messages.Get(m.user, ref.Id).
			Format("metadata").
			MetadataHeaders("Subject", "From").
			Context(ctx).
			Do()
		if err != nil {
			m.logger.Warn("Failed to fetch Gmail message details",
				zap.String("email_id", ref.Id),
				zap.Error(err))
			continue
		}

		emails = append(emails, core.Email{
			EmailID: ref.Id,
			Subject: header(msg.Payload, "Subject", defaultSubject),
			Sender:  header(msg.Payload, "From", defaultSender),
			Snippet: html.UnescapeString(msg.Snippet),
		})
	}

	return emails, nil
}

// Trash moves a message to the Gmail trash
func (m *Mailbox) Trash(ctx context.Context, emailID string) error {
	if _, err := m.service.Users.Messages.Trash(m.user, emailID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to trash Gmail message %s: %w", emailID, err)
	}
	m.logger.Info("Email moved to trash", zap.String("email_id", emailID))
	return nil
}

func header(part *gmailapi.MessagePart, name, fallback string) string {
	if part == nil {
		return fallback
	}
	for _, h := range part.Headers {
		if h.Name == name && h.Value != "" {
			return h.Value
		}
	}
	return fallback
}

// Provider opens owner mailboxes with the gmail credential each owner stored
type Provider struct {
	resolver *credentials.Resolver
	oauth    OAuthClient
	user     string
	window   time.Duration
	logger   *zap.Logger
	options  []option.ClientOption
}

// NewProvider creates a new Gmail mailbox provider.
// Extra client options are appended to every service, e.g. an endpoint override.
func NewProvider(
	resolver *credentials.Resolver,
	oauth OAuthClient,
	user string,
	window time.Duration,
	logger *zap.Logger,
	opts ...option.ClientOption,
) *Provider {
	return &Provider{
		resolver: resolver,
		oauth:    oauth,
		user:     user,
		window:   window,
		logger:   logger,
		options:  opts,
	}
}

// Mailbox returns the authenticated mailbox of ownerID
func (p *Provider) Mailbox(ctx context.Context, ownerID string) (core.Mailbox, error) {
	secret, err := p.resolver.Resolve(ctx, ownerID, credentials.ServiceGmail)
	if err != nil {
		return nil, err
	}

	// Refreshes may happen after the request that opened the mailbox is gone
	ts, refreshable := p.oauth.tokenSource(context.WithoutCancel(ctx), secret)
	if !refreshable {
		p.logger.Warn("Using a Gmail token without refresh support",
			zap.String("owner_id", ownerID))
	}

	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, p.options...)
	service, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return NewMailbox(service, p.user, p.window, p.logger.With(zap.String("owner_id", ownerID))), nil
}
