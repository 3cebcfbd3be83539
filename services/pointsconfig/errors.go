package pointsconfig

import "sundayschool-points/pkg/errutil"

var (
	ErrConfigNotFound   = errutil.NotFound("points configuration not found for church", nil)
	ErrFeatureDisabled  = errutil.UnprocessableEntity("feature is disabled for this church", nil)
	ErrInvalidConfig    = errutil.ValidationFailed("invalid points configuration", nil)
	ErrInvalidCondition = errutil.ValidationFailed("invalid award condition", nil)
)
