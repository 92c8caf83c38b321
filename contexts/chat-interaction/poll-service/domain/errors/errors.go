package errors

import "errors"

var (
	ErrUsage              = errors.New("poll command requires a title and at least two options")
	ErrPollNotFound       = errors.New("poll not found")
	ErrInvalidOption      = errors.New("option index out of range")
	ErrInvalidVoteInput   = errors.New("invalid vote input")
	ErrInvalidActionValue = errors.New("invalid vote action value")
	ErrVersionConflict    = errors.New("poll version conflict")
	ErrContention         = errors.New("poll is busy, try again")
	ErrAlreadyExists      = errors.New("poll already exists")
)
