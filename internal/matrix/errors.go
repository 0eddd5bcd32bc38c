package matrix

import "errors"

var (
	ErrInvalidDefinition    = errors.New("invalid specimen definition")
	ErrInvalidFeature       = errors.New("invalid feature toggle")
	ErrContradictoryFeature = errors.New("feature is both enabled and disabled")
	ErrDuplicateName        = errors.New("duplicate specimen name")
)
