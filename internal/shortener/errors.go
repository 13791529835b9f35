package shortener

import "errors"

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrQuotaExceeded = errors.New("link quota exceeded")
	ErrNotFound      = errors.New("link not found")
	// ErrCodeSpaceExhausted means no free code was found at any permitted
	// length. It is a server fault, not a client error.
	ErrCodeSpaceExhausted = errors.New("unable to allocate a unique short code")
)
