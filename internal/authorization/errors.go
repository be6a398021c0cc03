package authorization

import "github.com/merceton/merceton/internal/apperror"

var (
	ErrForbidden     = apperror.Forbidden("forbidden", "forbidden")
	ErrInvalidActor  = apperror.Unauthorized("invalid_actor", "unknown or inactive actor")
	ErrInvalidObject = apperror.Validation("invalid_object", "authorization object is required")
	ErrInvalidAction = apperror.Validation("invalid_action", "authorization action is required")
)
