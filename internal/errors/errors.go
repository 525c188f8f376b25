package errors

import (
	"errors"
)

// Common error types
var (
	ErrNotFound              = errors.New("not found")
	ErrNoPrivileges          = errors.New("no privileges")
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	ErrRateLimited           = errors.New("rate limited")
	ErrDuplicateProcessing   = errors.New("message already being processed")
	ErrReportResolved        = errors.New("report already resolved")
	ErrDatabaseError         = errors.New("database error")
)
