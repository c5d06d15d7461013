package ports

import (
	"github.com/mikey/email-housekeeper/internal/core"
	"github.com/mikey/email-housekeeper/internal/credentials"
)

// RecordStore is the relational store: processed emails, feedback and owner credentials
type RecordStore interface {
	core.RecordRepository
	credentials.Store

	// Stop stops background cleanup and closes the store
	Stop()
}
