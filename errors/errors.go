package errors

import "fmt"

var (
	// Core chat taxonomy.
	ErrInvalidIdentity    = fmt.Errorf("invalid identity")
	ErrUnknownPeer        = fmt.Errorf("unknown peer")
	ErrStorageUnavailable = fmt.Errorf("storage unavailable")

	// Identity provider surface.
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidUsername    = fmt.Errorf("invalid username")
	ErrInvalidPassword    = fmt.Errorf("invalid password")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	// Supervision.
	ErrWorkerPanic = fmt.Errorf("worker panic")
)
