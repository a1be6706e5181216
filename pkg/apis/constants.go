package apis

import (
	"errors"
)

const (
	// HTTP Request Fields
	IfMatch     = "If-Match"
	IfNoneMatch = "If-None-Match"

	// HTTP Response Fields
	Location = "Location"
	ETag     = "ETag"

	// Self-defined Fields
	Filter  = "filter"
	Channel = "channel"
)

var (
	ErrMismatch     = errors.New("resource mismatch")
	ErrInternal     = errors.New("internal error")
	ErrInvalidValue = errors.New("invalid value")
)
