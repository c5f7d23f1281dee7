package domain

import "errors"

// Fatal conditions abort a simulation and surface to the caller.
var (
	// ErrDataUnavailable means no viable price history exists for the benchmark or any asset.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNotCompleted is returned when results are read before the simulation completed.
	ErrNotCompleted = errors.New("simulation not completed")
	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("invalid simulator state")
	// ErrNotFound is returned by repositories for unknown identifiers.
	ErrNotFound = errors.New("not found")
)

// Non-fatal conditions are recorded on the year they affect.
var (
	ErrInsufficientWindow    = errors.New("insufficient window")
	ErrInfeasibleConstraints = errors.New("infeasible constraints")
	ErrAssetExcluded         = errors.New("asset excluded")
	ErrNoEligibleAssets      = errors.New("no eligible assets")
)

// Optimizer construction errors.
var (
	ErrMissingObjective  = errors.New("objective required")
	ErrUnsupportedOption = errors.New("option not supported by optimizer")
)

// ConditionCodeFor maps a non-fatal error to the condition code recorded on a snapshot.
func ConditionCodeFor(err error) ConditionCode {
	switch {
	case errors.Is(err, ErrInfeasibleConstraints):
		return ConditionInfeasibleConstraints
	case errors.Is(err, ErrInsufficientWindow):
		return ConditionInsufficientWindow
	case errors.Is(err, ErrAssetExcluded):
		return ConditionAssetExcluded
	default:
		return ConditionOptimizerFailed
	}
}
