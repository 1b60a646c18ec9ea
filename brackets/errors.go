package brackets

import "errors"

var (
	ErrInvalidStructure    = errors.New("invalid template structure")
	ErrUnitCountOutOfRange = errors.New("unit count is outside the template range")

	ErrNoEligibleUnits      = errors.New("no eligible units to draw")
	ErrDrawNotFinished      = errors.New("drawing is not finished")
	ErrDrawNotInProgress    = errors.New("drawing is not in progress")
	ErrDrawAlreadyConfirmed = errors.New("drawing has already been confirmed")
	ErrAssignmentsMismatch  = errors.New("submitted assignments do not match the drawn order")

	// ErrConnectionLost is reported by the broadcast channel only; it never reaches the orchestrator.
	ErrConnectionLost = errors.New("broadcast connection lost")
)
