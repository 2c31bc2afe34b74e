package domain

import (
	"errors"
)

var (
	// ErrItemNotFound is returned when no entry exists for a client-supplied key.
	ErrItemNotFound = errors.New("cache item not found")

	// ErrCacheUnavailable classifies every backend communication failure
	// (timeout, connection refused, protocol error). Details stay in the logs.
	ErrCacheUnavailable = errors.New("cache backend error")

	// ErrCorruptedEntry means a stored value exists but is not a valid CachedItem.
	ErrCorruptedEntry = errors.New("cached value has invalid structure")

	// ErrInvalidEncoding means a stored value is not valid UTF-8 text.
	ErrInvalidEncoding = errors.New("cached value has invalid encoding")

	// ErrMissingRequestBody is returned when a put request carries no body.
	ErrMissingRequestBody = errors.New("missing request body")

	// ErrInvalidRequestBody is returned by put-batch validation.
	ErrInvalidRequestBody = errors.New("invalid request body")

	// ErrCredentialsUnavailable is returned when the signing identity cannot be resolved.
	ErrCredentialsUnavailable = errors.New("cache credentials unavailable")
)

// Error messages returned to clients. Bodies never carry anything else.
const (
	MsgNotFound            = "Not found"
	MsgMethodNotAllowed    = "Method not allowed"
	MsgInternalServerError = "Internal server error"
	MsgMissingUUID         = "Missing uuid parameter"
	MsgUUIDNotFound        = "Uuid not found"
	MsgInvalidEncoding     = "Invalid encoding in cached value"
	MsgInvalidStructure    = "Invalid cached value structure"
	MsgCacheError          = "Cache error"
	MsgMissingBody         = "Missing request body"
	MsgInvalidBody         = "Invalid request body"
)
