package models

import "errors"

// Error taxonomy for the region domain. Handlers and the import pipeline
// branch on these with errors.Is, so everything raised below wraps one of them.
var (
	ErrInvalidGeometry      = errors.New("invalid geometry")
	ErrInvalidStatus        = errors.New("invalid fiber status")
	ErrMalformedFeature     = errors.New("malformed feature")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrDuplicateName        = errors.New("duplicate region name")
	ErrRegionNotFound       = errors.New("region not found")
)
