package health

import "errors"

var (
	// ErrCheckTimeout indicates a health check did not finish in time.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates a checker was not found.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrProbeMismatch indicates a store returned different bytes than were saved.
	ErrProbeMismatch = errors.New("health: probe data mismatch")
)
