package factory

import (
	"fmt"

	"github.com/mikey/email-housekeeper/internal/adapters/gmail"
	"github.com/mikey/email-housekeeper/internal/adapters/intake"
	"github.com/mikey/email-housekeeper/internal/config"
	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/credentials"
	"github.com/mikey/email-housekeeper/internal/utils"
	"go.uber.org/zap"
)

// MailboxFactory creates the mailbox provider based on configuration
type MailboxFactory struct {
	cfg      *config.Config
	logger   *zap.Logger
	resolver *credentials.Resolver
	tp       *utils.TextProcessor
}

// NewMailboxFactory creates a new mailbox factory
func NewMailboxFactory(cfg *config.Config, logger *zap.Logger, resolver *credentials.Resolver, tp *utils.TextProcessor) *MailboxFactory {
	return &MailboxFactory{
		cfg:      cfg,
		logger:   logger,
		resolver: resolver,
		tp:       tp,
	}
}

// CreateMailboxProvider returns the provider for mail.provider.
// The SMTP intake is returned as well when it is the provider so that it can be started.
func (f *MailboxFactory) CreateMailboxProvider() (core.MailboxProvider, *intake.Intake, error) {
	provider := f.cfg.GetMailProvider()

	f.logger.Info("Creating mailbox provider", zap.String("provider", provider))

	switch provider {
	case "gmail":
		gmailCfg := f.cfg.GetGmail()
		return gmail.NewProvider(
			f.resolver,
			gmail.OAuthClient{ClientID: gmailCfg.ClientID, ClientSecret: gmailCfg.ClientSecret},
			gmailCfg.User,
			gmailCfg.Window,
			f.logger,
		), nil, nil
	case "intake":
		intakeCfg := f.cfg.GetIntake()
		in := intake.New(intake.Config{
			ListenAddress:   intakeCfg.ListenAddress,
			Domain:          intakeCfg.Domain,
			MaxMessageBytes: intakeCfg.MaxMessageBytes,
			BufferSize:      intakeCfg.BufferSize,
			ReadTimeout:     intakeCfg.ReadTimeout,
			WriteTimeout:    intakeCfg.WriteTimeout,
		}, f.tp, f.logger)
		return in, in, nil
	case "none":
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}
