package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateEmail       = errors.New("email already exists")
	ErrUsernameExists       = errors.New("username already exists")
	ErrInvalidAccount       = errors.New("account is missing or incomplete")
	ErrVersionConflict      = errors.New("version is outdated or invalid")
	ErrPreconditionRequired = errors.New("If-Match header is required")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrPeerUnavailable      = errors.New("peer service unavailable")
)
