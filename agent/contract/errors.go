package contract

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrModelInvoke        = errors.New("model invoke failed")
	ErrSchemaViolation    = errors.New("model response violates schema")
	ErrCapabilityNotFound = errors.New("capability not found")
	ErrDraftState         = errors.New("draft not ready")
)
