package services

import (
	"errors"

	"github.com/LegalDragon/pickleball-community/brackets"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")

	// Ошибки структуры шаблонов и расписания
	ErrInvalidStructure      = brackets.ErrInvalidStructure
	ErrUnitCountOutOfRange   = brackets.ErrUnitCountOutOfRange
	ErrScheduleAlreadyExists = errors.New("division already has a schedule")
	ErrScheduleNotFound      = errors.New("division has no schedule")

	// Ошибки жеребьёвки
	ErrNoEligibleUnits        = brackets.ErrNoEligibleUnits
	ErrDrawNotFinished        = brackets.ErrDrawNotFinished
	ErrDrawNotInProgress      = brackets.ErrDrawNotInProgress
	ErrDrawAlreadyConfirmed   = brackets.ErrDrawAlreadyConfirmed
	ErrAssignmentsMismatch    = brackets.ErrAssignmentsMismatch
	ErrConcurrentDrawConflict = errors.New("drawing was changed or confirmed concurrently")
	ErrDrawingSessionNotFound = errors.New("drawing session not found")

	// Ошибки конфликтов
	ErrTemplateNameConflict = errors.New("template name is already in use")
	ErrTemplateInUse        = errors.New("template cannot be deleted as it is used by a schedule")
	ErrUnitAlreadyPlaced    = errors.New("unit already holds a slot in this phase")

	// Ошибки авторизации
	ErrForbiddenOperation  = errors.New("operation not allowed for the current user")
	ErrSystemTemplateFixed = errors.New("system templates cannot be modified")

	// Ошибки, специфичные для сущностей
	ErrTemplateNotFound    = errors.New("template not found")
	ErrDivisionNotFound    = errors.New("division not found")
	ErrPhaseNotFound       = errors.New("phase not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrUnitNotInDivision   = errors.New("unit is not registered in this division")
	ErrMatchFormatNotFound = errors.New("match format not found")
)
