package repository

import "errors"

var (
	// ErrImageNotFound indicates the image id is unknown to the store
	ErrImageNotFound = errors.New("image not found")

	// ErrResultNotFound indicates no result was persisted for the job
	ErrResultNotFound = errors.New("analysis result not found")

	// ErrJobNotFound indicates the job id is unknown to the registry
	ErrJobNotFound = errors.New("analysis job not found")

	// ErrJobExists indicates a job id was registered twice
	ErrJobExists = errors.New("analysis job already exists")

	// ErrInvalidTransition indicates a status change the lifecycle forbids
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrJobActive indicates the job has not reached a terminal state
	ErrJobActive = errors.New("analysis job is still active")

	// ErrReadOnly indicates the store does not accept writes
	ErrReadOnly = errors.New("image store is read-only")

	// ErrRepositoryUnavailable indicates the backing store cannot be reached
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)

// IsNotFound reports whether err means a missing image, result or job
func IsNotFound(err error) bool {
	return errors.Is(err, ErrImageNotFound) ||
		errors.Is(err, ErrResultNotFound) ||
		errors.Is(err, ErrJobNotFound)
}
