package data

import "errors"

// Shared sentinel errors for the in-process stores.
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrJobExists       = errors.New("job already exists")
	ErrServiceNotFound = errors.New("service not found")
	ErrNilRecord       = errors.New("record cannot be nil")
)
