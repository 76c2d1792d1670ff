package analytics

import "errors"

var (
	// ErrStoreUnavailable is returned when the backing store cannot serve a
	// fetch. No partial result accompanies it.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidRange is returned when offset/limit select hours outside the day.
	ErrInvalidRange = errors.New("invalid hour range")

	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidThreshold = errors.New("invalid gap threshold")
)
