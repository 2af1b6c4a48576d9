package overdue

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid overdue configuration")
	ErrFailedToLoadConfig   = errors.New("failed to load overdue configuration")
	ErrUnknownState         = errors.New("unknown overdue state")
	ErrStoreStateFailed     = errors.New("failed to store overdue blocking state")
	ErrCancellationFailed   = errors.New("failed to cancel entitlements for overdue account")
	ErrTagLookupFailed      = errors.New("failed to look up account control tags")
)
