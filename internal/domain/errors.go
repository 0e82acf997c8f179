package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by registries,
// repositories and services to communicate domain-specific error conditions.
// -----------------------------------------------------------------------------

// Card errors
var (
	ErrNilCard                   = errors.New("card is nil")
	ErrCardNotFound              = errors.New("card not found")
	ErrFixtureNotFound           = errors.New("fixture not found")
	ErrReferenceSolutionNotFound = errors.New("reference solution not found")
)

// Review queue errors
var (
	ErrSnapshotNotFound = errors.New("verification snapshot not found")
)
