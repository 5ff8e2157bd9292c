package usecase

import "errors"

var (
	// ErrInvalidWindow is returned when the trailing window has no days.
	ErrInvalidWindow = errors.New("usecase: window must cover at least one day")
	// ErrRunInProgress is returned when a scheduled run overlaps the previous one.
	ErrRunInProgress = errors.New("usecase: pipeline run already in progress")
)
