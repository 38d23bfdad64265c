package errors

import "fmt"

var (
	ErrValidation       = fmt.Errorf("invalid payload")
	ErrStoreUnavailable = fmt.Errorf("message store unavailable")
	ErrSessionGone      = fmt.Errorf("session gone")
	ErrSenderMismatch   = fmt.Errorf("sender does not match session principal")
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrEmptyWords       = fmt.Errorf("no words have been found")
)
