package summary

import "sundayschool-points/pkg/errutil"

var (
	ErrUserRequired   = errutil.ValidationFailed("user id is required", nil)
	ErrChurchRequired = errutil.ValidationFailed("church id is required", nil)
	ErrInvalidCursor  = errutil.BadRequest("invalid cursor", nil)
)
