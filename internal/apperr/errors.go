package apperr

import "errors"

// Sentinel errors for the ledger and report operations. Callers match
// with errors.Is; context is attached with fmt.Errorf("...: %w", err).
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidState    = errors.New("invalid state")
	ErrPolicyViolation = errors.New("policy violation")
	ErrInvalidArgument = errors.New("invalid argument")
)
