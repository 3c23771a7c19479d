package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrInvalidPayload   = fmt.Errorf("invalid event payload")
	ErrConnection       = fmt.Errorf("connection failed")
	ErrLoggedOut        = fmt.Errorf("session logged out")
	ErrTransportClosed  = fmt.Errorf("transport closed")
	ErrPersistence      = fmt.Errorf("persistence failure")
	ErrNormalization    = fmt.Errorf("event cannot be normalized")
	ErrNotFound         = fmt.Errorf("record not found")
	ErrInvalidAuthValue = fmt.Errorf("auth value cannot be encoded losslessly")
)
