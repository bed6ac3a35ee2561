package analysis

import "errors"

var (
	// ErrNotFound indicates the requested analysis record does not exist.
	ErrNotFound = errors.New("analysis record not found")
	// ErrAlreadyReviewed indicates a verification was attempted on a reviewed record.
	ErrAlreadyReviewed = errors.New("analysis record already reviewed")
	// ErrImageNotFound indicates the scan image object is missing.
	ErrImageNotFound = errors.New("scan image not found")
)
