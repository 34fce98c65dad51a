package errors

import "fmt"

var (
	ErrUserAlreadyExists  = fmt.Errorf("username already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid username or password")
	ErrMissingToken       = fmt.Errorf("authorization token is missing")
	ErrInvalidToken       = fmt.Errorf("invalid or expired token")
	ErrMissingGroupID     = fmt.Errorf("message has no group id")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)
