package remote

import "errors"

var (
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidParent   = errors.New("invalid parent reference")
	ErrParentNotFound  = errors.New("parent entity not found")
	ErrUploadNotFound  = errors.New("upload not found")
	ErrUploadExpired   = errors.New("upload token expired")
	ErrUploadUsed      = errors.New("upload token already used")
	ErrDigestMismatch  = errors.New("upload digest mismatch")
	ErrInvalidFileName = errors.New("invalid file name")
)
