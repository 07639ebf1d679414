package errors

import "errors"

var (
	// Queue errors
	ErrQueueClosed = errors.New("task queue is closed")

	// Branch errors
	ErrBranchShutdown = errors.New("branch is shutting down")
	ErrBatchTooShort  = errors.New("sequential batch needs at least two callables")

	// Supervisor errors
	ErrInvalidBounds = errors.New("supervisor bounds invalid: require 1 <= L <= U")

	// Workspace errors
	ErrWorkspaceShutdown   = errors.New("workspace is shutting down")
	ErrUnknownBranchID     = errors.New("unknown branch id")
	ErrUnknownSupervisorID = errors.New("unknown supervisor id")
	ErrNoBranchesAttached  = errors.New("workspace has no attached branches")

	// Future/result errors
	ErrFutureAlreadySettled = errors.New("future already settled")
)
