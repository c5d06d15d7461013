package factory

import (
	"github.com/mikey/email-housekeeper/internal/adapters/httpapi"
	"github.com/mikey/email-housekeeper/internal/adapters/intake"
	"github.com/mikey/email-housekeeper/internal/adapters/scheduler"
	"github.com/mikey/email-housekeeper/internal/config"
	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/credentials"
	"github.com/mikey/email-housekeeper/internal/ports"
	"go.uber.org/zap"
)

// FrontendFactory creates the inbound surfaces of the daemon based on configuration
type FrontendFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.HousekeeperService
	keys    credentials.Store
	intake  *intake.Intake
}

// NewFrontendFactory creates a new frontend factory.
// in is the SMTP intake when it is the configured mailbox, or nil.
func NewFrontendFactory(
	cfg *config.Config,
	logger *zap.Logger,
	service *core.HousekeeperService,
	keys credentials.Store,
	in *intake.Intake,
) *FrontendFactory {
	return &FrontendFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
		keys:    keys,
		intake:  in,
	}
}

// CreateFrontends creates every enabled frontend
func (f *FrontendFactory) CreateFrontends() ([]ports.Frontend, error) {
	var frontends []ports.Frontend

	if f.intake != nil {
		frontends = append(frontends, f.intake)
	}

	if serverCfg := f.cfg.GetServer(); serverCfg.Enabled {
		server, err := httpapi.NewServer(f.service, f.keys, f.logger, httpapi.Config{
			ListenAddress:   serverCfg.ListenAddress,
			ShutdownTimeout: serverCfg.ShutdownTimeout,
		})
		if err != nil {
			return nil, err
		}
		frontends = append(frontends, server)
	}

	if schedulerCfg := f.cfg.GetScheduler(); schedulerCfg.Enabled {
		if len(schedulerCfg.Owners) == 0 {
			f.logger.Warn("Scheduler enabled without owners, it will not process anything")
		}
		frontends = append(frontends, scheduler.New(f.service, scheduler.Config{
			Interval:  schedulerCfg.Interval,
			Owners:    schedulerCfg.Owners,
			AutoMode:  schedulerCfg.AutoMode,
			MaxEmails: schedulerCfg.MaxEmails,
		}, f.logger))
	}

	return frontends, nil
}
