package entity

import "errors"

var (
	ErrNotFound      = errors.New("entity not found")
	ErrUnknownType   = errors.New("unknown entity type")
	ErrInvalidRef    = errors.New("invalid entity reference")
	ErrInvalidParent = errors.New("invalid parent reference")
)
