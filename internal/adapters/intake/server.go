package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/utils"
	"go.uber.org/zap"
)

const snippetSize = 300

// Config holds the SMTP listener settings
type Config struct {
	ListenAddress   string
	Domain          string
	MaxMessageBytes int64
	MaxRecipients   int
	BufferSize      int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// Intake is an SMTP listener that buffers delivered messages per owner.
// The owner of a message is the local part of each recipient address.
type Intake struct {
	cfg    Config
	tp     *utils.TextProcessor
	logger *zap.Logger

	server   *smtp.Server
	listener net.Listener

	mu     sync.Mutex
	queues map[string][]core.Email
}

// New creates a new SMTP intake
func New(cfg Config, tp *utils.TextProcessor, logger *zap.Logger) *Intake {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 500
	}
	if cfg.MaxRecipients <= 0 {
		cfg.MaxRecipients = 50
	}
	if cfg.Domain == "" {
		cfg.Domain = "localhost"
	}

	return &Intake{
		cfg:    cfg,
		tp:     tp,
		logger: logger,
		queues: make(map[string][]core.Email),
	}
}

// Name identifies the frontend in logs
func (i *Intake) Name() string {
	return "smtp-intake"
}

// Start binds the listener and serves SMTP in the background
func (i *Intake) Start() error {
	i.server = smtp.NewServer(&backend{intake: i})
	i.server.Addr = i.cfg.ListenAddress
	i.server.Domain = i.cfg.Domain
	i.server.ReadTimeout = i.cfg.ReadTimeout
	i.server.WriteTimeout = i.cfg.WriteTimeout
	i.server.MaxMessageBytes = i.cfg.MaxMessageBytes
	i.server.MaxRecipients = i.cfg.MaxRecipients

	ln, err := net.Listen("tcp", i.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", i.cfg.ListenAddress, err)
	}
	i.listener = ln

	i.logger.Info("SMTP intake started", zap.String("address", ln.Addr().String()))

	go func() {
		if err := i.server.Serve(ln); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			i.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop closes the listener and all open sessions
func (i *Intake) Stop() error {
	if i.server != nil {
		return i.server.Close()
	}
	return nil
}

// Addr returns the bound address once started
func (i *Intake) Addr() net.Addr {
	if i.listener == nil {
		return nil
	}
	return i.listener.Addr()
}

// Deliver parses a raw message and queues it for each owner
func (i *Intake) Deliver(envelopeFrom string, owners []string, raw io.Reader) (*core.Email, error) {
	parsed, err := ParseMessage(raw)
	if err != nil {
		return nil, err
	}

	email := core.Email{
		EmailID: parsed.MessageID,
		Subject: parsed.Subject,
		Sender:  parsed.From,
		Snippet: i.tp.Snippet(parsed.Body, snippetSize),
	}
	if email.EmailID == "" {
		email.EmailID = uuid.NewString()
	}
	if email.Sender == "" {
		email.Sender = envelopeFrom
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for _, owner := range owners {
		queue := append(i.queues[owner], email)
		if overflow := len(queue) - i.cfg.BufferSize; overflow > 0 {
			i.logger.Warn("Intake buffer full, dropping oldest messages",
				zap.String("owner_id", owner),
				zap.Int("dropped", overflow))
			queue = queue[overflow:]
		}
		i.queues[owner] = queue

		i.logger.Info("Message queued",
			zap.String("owner_id", owner),
			zap.String("email_id", email.EmailID),
			zap.Int("queued", len(queue)))
	}

	return &email, nil
}

// Pending returns the number of buffered messages of an owner
func (i *Intake) Pending(ownerID string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.queues[ownerID])
}

// drain removes and returns up to max buffered messages, oldest first
func (i *Intake) drain(ownerID string, max int) []core.Email {
	i.mu.Lock()
	defer i.mu.Unlock()

	queue := i.queues[ownerID]
	if max > len(queue) {
		max = len(queue)
	}

	emails := make([]core.Email, max)
	copy(emails, queue[:max])

	if max == len(queue) {
		delete(i.queues, ownerID)
	} else {
		i.queues[ownerID] = queue[max:]
	}
	return emails
}

// Mailbox returns the buffered mailbox of an owner
func (i *Intake) Mailbox(_ context.Context, ownerID string) (core.Mailbox, error) {
	return &mailbox{intake: i, owner: ownerKey(ownerID)}, nil
}

type mailbox struct {
	intake *Intake
	owner  string
}

// FetchRecent drains the owner's buffer
func (m *mailbox) FetchRecent(_ context.Context, max int) ([]core.Email, error) {
	return m.intake.drain(m.owner, max), nil
}

// Trash is not possible for delivered copies
func (m *mailbox) Trash(_ context.Context, emailID string) error {
	return fmt.Errorf("%w: %s was delivered over SMTP", core.ErrTrashUnsupported, emailID)
}

// ownerKey maps a recipient address to the owner it belongs to
func ownerKey(recipient string) string {
	recipient = strings.ToLower(strings.Trim(strings.TrimSpace(recipient), "<>"))
	if at := strings.LastIndex(recipient, "@"); at >= 0 {
		recipient = recipient[:at]
	}
	return recipient
}

// backend implements the go-smtp Backend interface
type backend struct {
	intake *Intake
}

// NewSession creates a new SMTP session
func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{intake: b.intake}, nil
}

// session implements the go-smtp Session interface
type session struct {
	intake *Intake
	from   string
	owners []string
}

// Reset resets the session state
func (s *session) Reset() {
	s.from = ""
	s.owners = nil
}

// Mail sets the sender address
func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

// Rcpt adds the owner of a recipient
func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	owner := ownerKey(to)
	if owner == "" {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "Recipient has no local part",
		}
	}
	for _, existing := range s.owners {
		if existing == owner {
			return nil
		}
	}
	s.owners = append(s.owners, owner)
	return nil
}

// Data parses and queues the message
func (s *session) Data(r io.Reader) error {
	email, err := s.intake.Deliver(s.from, s.owners, r)
	if err != nil {
		s.intake.logger.Error("Failed to accept message",
			zap.String("from", s.from),
			zap.Error(err))
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Message could not be parsed",
		}
	}

	s.intake.logger.Debug("Message accepted",
		zap.String("from", s.from),
		zap.String("email_id", email.EmailID),
		zap.Strings("owners", s.owners))
	return nil
}

// Logout ends the session
func (s *session) Logout() error {
	return nil
}
