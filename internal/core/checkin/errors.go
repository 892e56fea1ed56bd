package checkin

import "errors"

var (
	// ErrAddressWriteFailed indicates step 1 of the publish pipeline failed.
	// Nothing referenced was left behind; the whole publish aborted.
	ErrAddressWriteFailed = errors.New("address record write failed")

	// ErrCheckinWriteFailed indicates step 2 failed. The address record from
	// step 1 is valid and reusable by URI on retry.
	ErrCheckinWriteFailed = errors.New("checkin record write failed")

	// ErrValidation indicates the request failed local validation before any
	// network call.
	ErrValidation = errors.New("checkin validation failed")
)
