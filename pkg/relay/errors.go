package relay

import "errors"

// Join rejections, the text goes to the client as is.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidToken  = errors.New("invalid token")
	ErrFull          = errors.New("full")
	ErrAlreadyJoined = errors.New("already joined")
)

var (
	// ErrGone is returned for connections that have already been disconnected.
	ErrGone             = errors.New("connection is gone")
	ErrAlreadyAssigned  = errors.New("connection already has a role")
	ErrIdSpaceExhausted = errors.New("couldn't find a free session id")
)
