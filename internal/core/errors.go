package core

import "errors"

var (
	// ErrRecordNotFound is returned when an email record does not exist or belongs to another owner
	ErrRecordNotFound = errors.New("email record not found or does not belong to this owner")
	// ErrInvalidAction is returned when feedback carries an action other than keep or delete
	ErrInvalidAction = errors.New("invalid user action")
	// ErrInvalidBatchSize is returned when max emails is outside the accepted range
	ErrInvalidBatchSize = errors.New("max emails must be between 1 and 100")
	// ErrOwnerRequired is returned when an operation is called without an owner id
	ErrOwnerRequired = errors.New("owner id is required")
	// ErrCredentialMissing is returned when no usable credential exists for a service
	ErrCredentialMissing = errors.New("credential not configured")
	// ErrTrashUnsupported is returned by mailboxes that cannot trash messages
	ErrTrashUnsupported = errors.New("mailbox does not support trashing messages")
)
